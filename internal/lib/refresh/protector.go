// Package refresh запечатывает refresh‑токены с помощью XChaCha20‑Poly1305.
//
// Токен — это base64url(nonce || ciphertext) над JSON с идентификатором
// пользователя, его security stamp и сроком действия. Подделать или
// изменить токен без ключа нельзя, поэтому хранить выданные токены не нужно:
// смена security stamp отзывает все ранее выпущенные токены пользователя.
package refresh

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
)

var (
	// ErrMalformed — токен не удалось расшифровать или разобрать.
	ErrMalformed = errors.New("malformed refresh token")
	// ErrExpired — срок действия токена истёк.
	ErrExpired = errors.New("refresh token expired")
)

// Ticket — содержимое refresh‑токена.
type Ticket struct {
	UserID        string    `json:"uid"`
	SecurityStamp string    `json:"stamp"`
	IssuedAt      time.Time `json:"iat"`
	ExpiresAt     time.Time `json:"exp"`
}

// Protector выпускает и вскрывает refresh‑токены.
type Protector struct {
	key   []byte
	ttl   time.Duration
	clock clock.Clock
}

// NewProtector создаёт Protector. key должен быть длиной chacha20poly1305.KeySize.
func NewProtector(key []byte, ttl time.Duration, clk clock.Clock) (*Protector, error) {
	const op = "refresh.NewProtector"
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%s: key must be %d bytes", op, chacha20poly1305.KeySize)
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Protector{key: key, ttl: ttl, clock: clk}, nil
}

// Protect выпускает токен для пользователя с указанным security stamp.
func (p *Protector) Protect(userID, securityStamp string) (string, error) {
	const op = "refresh.Protect"
	now := p.clock.Now()
	plain, err := json.Marshal(Ticket{
		UserID:        userID,
		SecurityStamp: securityStamp,
		IssuedAt:      now,
		ExpiresAt:     now.Add(p.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	aead, err := chacha20poly1305.NewX(p.key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	sealed := aead.Seal(nonce, nonce, plain, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Unprotect вскрывает токен и проверяет срок действия.
// Security stamp сверяет вызывающая сторона.
func (p *Protector) Unprotect(token string) (*Ticket, error) {
	const op = "refresh.Unprotect"
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}
	aead, err := chacha20poly1305.NewX(p.key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}
	var t Ticket
	if err := json.Unmarshal(plain, &t); err != nil || t.UserID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}
	if !p.clock.Now().Before(t.ExpiresAt) {
		return nil, fmt.Errorf("%s: %w", op, ErrExpired)
	}
	return &t, nil
}
