package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Назначения одноразовых кодов.
const (
	PurposeConfirmEmail  = "confirm_email"
	PurposeResetPassword = "reset_password"
)

// newCode возвращает случайный base64url‑код и его хэш для хранения.
func newCode() (code, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("auth.newCode: %w", err)
	}
	code = base64.RawURLEncoding.EncodeToString(buf)
	return code, hashCode(code), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// validCodeFormat проверяет, что код — корректный base64url.
func validCodeFormat(code string) bool {
	if code == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(code)
	return err == nil
}
