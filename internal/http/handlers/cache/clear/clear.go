// Package clear реализует HTTP-обработчик полной очистки кэша пользователей.
package clear

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/software-marketplace/internal/http/response"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
)

// Service очищает кэш.
type Service interface {
	ClearCache(ctx context.Context) error
}

// Handler обрабатывает POST /cache/clear.
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
// @Summary Очистка кэша
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /cache/clear [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cache.clear"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if err := h.service.ClearCache(r.Context()); err != nil {
		log.Error("failed to clear cache", sl.Err(err))
		response.BadRequest(w, r, response.MsgBadRequest)
		return
	}
	render.JSON(w, r, response.OK())
}
