// Package password хэширует пароли bcrypt и проверяет их на соответствие
// минимальным требованиям.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinLength — минимальная длина пароля.
const MinLength = 8

// ErrMismatch возвращается, если пароль не совпадает с хэшем.
var ErrMismatch = errors.New("password mismatch")

// GetHash принимает пароль пользователя и возвращает его bcrypt‑хэш.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash сравнивает bcrypt‑хэш с введённым паролем.
//
// Возвращает ErrMismatch, если пароль не подходит.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// Validate возвращает список нарушенных требований к паролю.
func Validate(password string) []string {
	var problems []string
	if len(password) < MinLength {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters", MinLength))
	}
	if len(password) > 72 {
		problems = append(problems, "password must be at most 72 bytes")
	}
	return problems
}
