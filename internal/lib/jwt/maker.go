// Package jwt выпускает и разбирает access‑токены маркетплейса.
//
// Токен подписывается HS256 и несёт идентификатор пользователя (sub),
// имя, роли и security stamp на момент выпуска.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
)

// ErrInvalidToken возвращается для любого непринятого токена.
var ErrInvalidToken = errors.New("invalid token")

// Maker описывает выпуск и разбор access‑токенов.
type Maker interface {
	GenerateToken(p *models.Principal) (token string, expiresAt time.Time, err error)
	ParseToken(tokenStr string) (*models.Principal, error)
}

// CustomClaims описывает данные, хранящиеся в JWT.
type CustomClaims struct {
	Username             string   `json:"username"` // Имя пользователя
	Roles                []string `json:"roles"`    // Роли на момент выпуска
	SecurityStamp        string   `json:"stamp"`    // Security stamp пользователя
	jwt.RegisteredClaims          // Subject = id пользователя
}

// MakerImpl реализует Maker с использованием секретного ключа и TTL.
type MakerImpl struct {
	secretKey []byte
	tokenTTL  time.Duration
	clock     clock.Clock
}

// NewJWTMaker создаёт MakerImpl. Если clk равен nil, используется системное время.
func NewJWTMaker(secretKey string, ttl time.Duration, clk clock.Clock) *MakerImpl {
	if clk == nil {
		clk = clock.System{}
	}
	return &MakerImpl{
		secretKey: []byte(secretKey),
		tokenTTL:  ttl,
		clock:     clk,
	}
}

// TTL возвращает время жизни выпускаемых токенов.
func (j *MakerImpl) TTL() time.Duration {
	return j.tokenTTL
}

// GenerateToken подписывает токен для principal.
func (j *MakerImpl) GenerateToken(p *models.Principal) (string, time.Time, error) {
	const op = "jwt.GenerateToken"
	now := j.clock.Now()
	expiresAt := now.Add(j.tokenTTL)
	roles := make([]string, 0, len(p.Roles))
	for _, r := range p.Roles {
		roles = append(roles, string(r))
	}
	claims := CustomClaims{
		Username:      p.Username,
		Roles:         roles,
		SecurityStamp: p.SecurityStamp,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return token, expiresAt, nil
}

// ParseToken проверяет подпись и срок действия и возвращает principal.
// Неизвестные роли в токене отбрасываются.
func (j *MakerImpl) ParseToken(tokenStr string) (*models.Principal, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{},
		func(_ *jwt.Token) (any, error) {
			return j.secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	p := &models.Principal{
		UserID:        claims.Subject,
		Username:      claims.Username,
		SecurityStamp: claims.SecurityStamp,
	}
	for _, r := range claims.Roles {
		if role, err := models.ParseRole(r); err == nil {
			p.Roles = append(p.Roles, role)
		}
	}
	return p, nil
}
