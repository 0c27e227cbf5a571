package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/software-marketplace/internal/http/response"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
)

// UserLookup находит пользователя, по возможности через кэш.
type UserLookup interface {
	GetUser(ctx context.Context, id string, useCache bool) (*models.User, error)
}

// LockoutMiddleware отклоняет запрос, если пользователя из principal не
// удалось найти или он сейчас заблокирован.
func LockoutMiddleware(users UserLookup, clk clock.Clock, log *slog.Logger) func(http.Handler) http.Handler {
	if clk == nil {
		clk = clock.System{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.LockoutMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				log.Error("principal missing in context")
				response.Unauthorized(w, r, false)
				return
			}
			user, err := users.GetUser(r.Context(), principal.UserID, true)
			if err != nil {
				log.Warn("failed to resolve principal", sl.UserID(principal.UserID), sl.Err(err))
				response.Unauthorized(w, r, false)
				return
			}
			if user.IsLockedOut(clk.Now()) {
				log.Info("request from locked out user rejected", sl.UserID(user.ID))
				response.Unauthorized(w, r, false)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
