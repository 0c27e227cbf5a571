// Package subscriptions реализует HTTP-обработчик списка подписок текущего пользователя.
package subscriptions

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/software-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/software-marketplace/internal/http/response"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
)

// Service находит пользователя вместе с подписками.
type Service interface {
	GetUser(ctx context.Context, id string, useCache bool) (*models.User, error)
}

// Handler обрабатывает GET /user/subscriptions.
type Handler struct {
	log     *slog.Logger
	service Service
	clock   clock.Clock
}

// New создает Handler.
func New(log *slog.Logger, service Service, clk clock.Clock) *Handler {
	return &Handler{
		log:     log,
		service: service,
		clock:   clk,
	}
}

// ServeHTTP godoc
// @Summary Подписки текущего пользователя
// @Tags User
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.SubscriptionResponse}
// @Failure 401 {object} response.ErrorResponse
// @Router /user/subscriptions [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.subscriptions"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal, ok := middlewarectx.PrincipalFrom(r.Context())
	if !ok {
		response.Unauthorized(w, r, false)
		return
	}
	u, err := h.service.GetUser(r.Context(), principal.UserID, true)
	if err != nil {
		log.Error("failed to get user", sl.UserID(principal.UserID), sl.Err(err))
		response.BadRequest(w, r, response.MsgBadRequest)
		return
	}

	now := h.clock.Now()
	subs := make([]models.SubscriptionResponse, 0, len(u.Subscriptions))
	for i := range u.Subscriptions {
		subs = append(subs, models.NewSubscriptionResponse(&u.Subscriptions[i], now))
	}
	render.JSON(w, r, response.StatusOKWithData(subs))
}
