// Package models содержит доменную модель пользователя маркетплейса:
// учётные данные, состояние блокировки, роли и подписки.
// Структуры используются в бизнес‑логике, хранилище и кэше.
package models

import (
	"slices"
	"time"
)

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID                string         `json:"id"`                  // Уникальный идентификатор (uuid)
	SequenceID        int64          `json:"sequence_id"`         // Порядковый номер пользователя
	Username          string         `json:"username"`            // Имя пользователя (уникальное)
	Email             string         `json:"email"`               // Электронная почта (уникальная)
	EmailConfirmed    bool           `json:"email_confirmed"`     // Подтверждена ли почта
	PasswordHash      string         `json:"password_hash"`       // bcrypt‑хэш пароля
	SecurityStamp     string         `json:"security_stamp"`      // Меняется при смене учётных данных
	LockoutEnabled    bool           `json:"lockout_enabled"`     // Разрешена ли блокировка
	LockoutEnd        *time.Time     `json:"lockout_end"`         // Окончание блокировки
	AccessFailedCount int            `json:"access_failed_count"` // Неудачные попытки входа подряд
	RegisterDate      time.Time      `json:"register_date"`       // Дата регистрации
	LastLoginDate     time.Time      `json:"last_login_date"`     // Дата последнего входа
	Roles             []Role         `json:"roles"`               // Выданные роли
	Subscriptions     []Subscription `json:"subscriptions"`       // Подписки, по возрастанию даты начала
}

// IsLockedOut сообщает, заблокирован ли пользователь в момент now.
func (u *User) IsLockedOut(now time.Time) bool {
	return u.LockoutEnabled && u.LockoutEnd != nil && u.LockoutEnd.After(now)
}

// HasRole проверяет наличие роли у пользователя.
func (u *User) HasRole(role Role) bool {
	return slices.Contains(u.Roles, role)
}

// HasActiveSubscription сообщает, есть ли у пользователя хотя бы одна активная подписка.
func (u *User) HasActiveSubscription(now time.Time) bool {
	for i := range u.Subscriptions {
		if u.Subscriptions[i].IsActive(now) {
			return true
		}
	}
	return false
}

// InfoResponse — публичные сведения о пользователе.
type InfoResponse struct {
	UserID       string    `json:"user_id"`
	SequenceID   int64     `json:"sequence_id"`
	Username     string    `json:"username"`
	Roles        []Role    `json:"roles"`
	RegisterDate time.Time `json:"register_date"`
}

// ExtendedInfoResponse — расширенные сведения для владельца аккаунта и администратора.
type ExtendedInfoResponse struct {
	InfoResponse
	Email         string                 `json:"email"`
	IsLockedOut   bool                   `json:"is_locked_out"`
	Subscriptions []SubscriptionResponse `json:"subscriptions"`
}

// NewInfoResponse собирает InfoResponse из пользователя.
func NewInfoResponse(u *User) InfoResponse {
	roles := u.Roles
	if roles == nil {
		roles = []Role{}
	}
	return InfoResponse{
		UserID:       u.ID,
		SequenceID:   u.SequenceID,
		Username:     u.Username,
		Roles:        roles,
		RegisterDate: u.RegisterDate,
	}
}

// NewExtendedInfoResponse собирает ExtendedInfoResponse на момент now.
func NewExtendedInfoResponse(u *User, now time.Time) ExtendedInfoResponse {
	subs := make([]SubscriptionResponse, 0, len(u.Subscriptions))
	for i := range u.Subscriptions {
		subs = append(subs, NewSubscriptionResponse(&u.Subscriptions[i], now))
	}
	return ExtendedInfoResponse{
		InfoResponse:  NewInfoResponse(u),
		Email:         u.Email,
		IsLockedOut:   u.IsLockedOut(now),
		Subscriptions: subs,
	}
}

