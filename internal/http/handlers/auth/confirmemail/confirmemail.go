// Package confirmemail реализует HTTP-обработчик подтверждения почты по коду из письма.
package confirmemail

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/software-marketplace/internal/http/response"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/services/auth"
)

// Request — идентификатор пользователя и код из ссылки.
type Request struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Code   string `json:"code" validate:"required"`
}

// Service погашает код подтверждения.
type Service interface {
	ConfirmEmail(ctx context.Context, userID, code string) error
}

// Handler обрабатывает запросы подтверждения почты.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Подтверждение почты
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Код подтверждения"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /user/confirm-email [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.confirmemail"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.BadRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.service.ConfirmEmail(r.Context(), req.UserID, req.Code); err != nil {
		if errors.Is(err, auth.ErrInvalidCode) {
			log.Info("invalid confirmation code", sl.UserID(req.UserID))
			response.BadRequest(w, r, "invalid code")
			return
		}
		log.Error("failed to confirm email", sl.Err(err))
		response.BadRequest(w, r, response.MsgBadRequest)
		return
	}

	log.Info("email confirmed", sl.UserID(req.UserID))
	render.JSON(w, r, response.OK())
}
