package models

import "fmt"

// Role — тег возможности пользователя. Набор ролей закрыт.
type Role string

const (
	// RoleAdmin — администратор маркетплейса.
	RoleAdmin Role = "Admin"
	// RoleUser — базовая роль любого вошедшего пользователя.
	RoleUser Role = "User"
	// RoleSubscriber — есть хотя бы одна активная подписка.
	RoleSubscriber Role = "Subscriber"
)

// AllRoles возвращает все известные роли.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleUser, RoleSubscriber}
}

// ParseRole разбирает строку в Role.
func ParseRole(s string) (Role, error) {
	for _, r := range AllRoles() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Principal — данные, зашитые в access‑токен при его выпуске.
// Роли не перечитываются из хранилища на каждый запрос.
type Principal struct {
	UserID        string
	Username      string
	Roles         []Role
	SecurityStamp string
}

// HasRole проверяет наличие роли среди claims.
func (p *Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AccessTokenResponse — пара токенов, выдаваемая при входе и обновлении.
type AccessTokenResponse struct {
	TokenType        string `json:"token_type"`
	AccessToken      string `json:"access_token"`
	ExpiresInSeconds int64  `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
}
