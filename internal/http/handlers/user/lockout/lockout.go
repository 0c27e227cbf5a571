// Package lockout реализует HTTP-обработчик бессрочной блокировки пользователя администратором.
package lockout

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/software-marketplace/internal/http/response"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/services/user"
)

// Service блокирует пользователя.
type Service interface {
	LockOutUser(ctx context.Context, userID string) error
}

// Handler обрабатывает POST /user/{userID}/lockout.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Блокировка пользователя
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Param userID path string true "Идентификатор пользователя"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /user/{userID}/lockout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.lockout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := chi.URLParam(r, "userID")
	if err := h.service.LockOutUser(r.Context(), userID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error(response.MsgNotFound))
			return
		}
		log.Error("failed to lock out user", sl.UserID(userID), sl.Err(err))
		response.BadRequest(w, r, response.MsgBadRequest)
		return
	}
	render.JSON(w, r, response.OK())
}
