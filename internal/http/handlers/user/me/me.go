// Package me реализует HTTP-обработчик сведений о текущем пользователе.
package me

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

// Service находит пользователя.
type Service interface {
	GetUser(ctx context.Context, id string, useCache bool) (*models.User, error)
}

// Handler возвращает расширенные сведения о вызывающем.
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
// @Summary Текущий пользователь
// @Tags User
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.ExtendedInfoResponse}
// @Failure 401 {object} response.ErrorResponse
// @Router /user/me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.me"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal, ok := middlewarectx.PrincipalFrom(r.Context())
	if !ok {
		response.Unauthorized(w, r, false)
		return
	}
	user, err := h.service.GetUser(r.Context(), principal.UserID, true)
	if err != nil {
		log.Error("failed to get user", sl.UserID(principal.UserID), sl.Err(err))
		response.BadRequest(w, r, response.MsgBadRequest)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(models.NewExtendedInfoResponse(user, h.clock.Now())))
}
