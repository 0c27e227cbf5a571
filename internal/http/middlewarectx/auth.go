// Package middlewarectx содержит HTTP middleware маркетплейса.
//
// AuthMiddleware проверяет bearer‑токен и кладёт principal в контекст.
// Для эндпоинтов с требованием авторизации затем последовательно работают
// два фильтра: LockoutMiddleware (пользователь существует и не заблокирован)
// и SubscriptionStatusMiddleware (у principal есть нужная роль на момент
// выпуска токена). Любой отказ — общий ответ 401 без подробностей.
package middlewarectx

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/software-marketplace/internal/http/response"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
)

// TokenParser разбирает access‑токен.
type TokenParser interface {
	ParseAccessToken(token string) (*models.Principal, error)
}

// AuthMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
//
// Если токен валиден, principal добавляется в контекст запроса, иначе
// возвращается 401 с заголовком WWW-Authenticate.
func AuthMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.AuthMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Debug("missing or invalid authorization header")
				response.Unauthorized(w, r, true)
				return
			}
			tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			principal, err := parser.ParseAccessToken(tokenStr)
			if err != nil {
				log.Info("invalid or expired token")
				response.Unauthorized(w, r, true)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}
