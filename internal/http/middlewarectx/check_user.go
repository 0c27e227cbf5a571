package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/software-marketplace/internal/http/response"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
)

// Requirement — требование эндпоинта к ролям вызывающего.
type Requirement int

const (
	// RequireAuthenticated — достаточно валидного токена.
	RequireAuthenticated Requirement = iota
	// RequireSubscriber — нужна роль Subscriber.
	RequireSubscriber
	// RequireAdmin — нужна роль Admin.
	RequireAdmin
)

// Role возвращает роль, которую требует r. ok=false, если роль не нужна.
func (r Requirement) Role() (models.Role, bool) {
	switch r {
	case RequireSubscriber:
		return models.RoleSubscriber, true
	case RequireAdmin:
		return models.RoleAdmin, true
	default:
		return "", false
	}
}

func (r Requirement) String() string {
	if role, ok := r.Role(); ok {
		return string(role)
	}
	return "Authenticated"
}

// SubscriptionStatusMiddleware проверяет роли, зашитые в токен при выпуске.
// Отклоняется только отсутствие требуемой роли; лишние роли не мешают.
// Роль не перечитывается из хранилища, поэтому отозванная роль действует
// до обновления токена.
func SubscriptionStatusMiddleware(req Requirement, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.SubscriptionStatusMiddleware"

			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				log.Error("principal missing in context", slog.String("op", op))
				response.Unauthorized(w, r, false)
				return
			}
			if role, need := req.Role(); need && !principal.HasRole(role) {
				log.Info("required role claim missing",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("requirement", req.String()),
					sl.UserID(principal.UserID))
				response.Unauthorized(w, r, false)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
