package auth

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrInvalidCredentials — неверное имя пользователя или пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotConfirmed — почта не подтверждена, письмо отправлено повторно.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrLockedOut — учётная запись заблокирована.
	ErrLockedOut = errors.New("user locked out")
	// ErrChallenge — токен недействителен, нужен повторный вход.
	ErrChallenge = errors.New("authentication required")
	// ErrInvalidCode — одноразовый код не подошёл.
	ErrInvalidCode = errors.New("invalid code")
)

// ValidationError описывает ошибки входных данных по полям.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError создаёт ошибку с одним полем.
func NewValidationError(field string, messages ...string) *ValidationError {
	v := &ValidationError{}
	for _, m := range messages {
		v.Add(field, m)
	}
	return v
}

// Add добавляет сообщение для поля.
func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], message)
}

// Empty сообщает, что ошибок нет.
func (v *ValidationError) Empty() bool {
	return len(v.Fields) == 0
}

func (v *ValidationError) Error() string {
	fields := make([]string, 0, len(v.Fields))
	for f := range v.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(v.Fields[f], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
