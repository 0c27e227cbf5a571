// Package bysequence реализует HTTP-обработчик поиска пользователя по порядковому номеру.
//
// Владелец аккаунта и администратор получают расширенные сведения,
// остальные — публичные.
package bysequence

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/software-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/software-marketplace/internal/http/response"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
	"github.com/magabrotheeeer/software-marketplace/internal/services/user"
)

// Service находит пользователя по порядковому номеру.
type Service interface {
	GetUserBySequenceID(ctx context.Context, seq int64, useCache bool) (*models.User, error)
}

// Handler обрабатывает GET /user/{sequenceID}.
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
// @Summary Пользователь по порядковому номеру
// @Tags User
// @Produce  json
// @Security BearerAuth
// @Param sequenceID path int true "Порядковый номер"
// @Success 200 {object} response.Response{data=models.InfoResponse}
// @Failure 404 {object} response.ErrorResponse
// @Router /user/{sequenceID} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.bysequence"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	seq, err := strconv.ParseInt(chi.URLParam(r, "sequenceID"), 10, 64)
	if err != nil || seq <= 0 {
		log.Info("failed to decode sequence id from url", sl.Err(err))
		response.BadRequest(w, r, "invalid sequence id")
		return
	}

	u, err := h.service.GetUserBySequenceID(r.Context(), seq, true)
	if errors.Is(err, user.ErrUserNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(response.MsgNotFound))
		return
	}
	if err != nil {
		log.Error("failed to get user", slog.Int64("sequence_id", seq), sl.Err(err))
		response.BadRequest(w, r, response.MsgBadRequest)
		return
	}

	principal, _ := middlewarectx.PrincipalFrom(r.Context())
	if principal != nil && (principal.UserID == u.ID || principal.HasRole(models.RoleAdmin)) {
		render.JSON(w, r, response.StatusOKWithData(models.NewExtendedInfoResponse(u, h.clock.Now())))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(models.NewInfoResponse(u)))
}
