// Package refresh реализует HTTP-обработчик обновления пары токенов.
package refresh

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
	"github.com/magabrotheeeer/software-marketplace/internal/models"
	"github.com/magabrotheeeer/software-marketplace/internal/services/auth"
)

// Request — refresh‑токен, выданный при входе.
type Request struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Service обновляет пару токенов.
type Service interface {
	Refresh(ctx context.Context, refreshToken string) (*models.AccessTokenResponse, error)
}

// Handler обрабатывает запросы обновления токенов.
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
// @Summary Обновление токенов
// @Description Выдаёт новую пару токенов. Недействительный refresh‑токен требует повторного входа.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Refresh‑токен"
// @Success 200 {object} response.Response{data=models.AccessTokenResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse "Требуется повторный вход"
// @Router /user/refresh [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.refresh"

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

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrChallenge):
		log.Info("refresh token rejected")
		response.Unauthorized(w, r, true)
		return
	case errors.Is(err, auth.ErrLockedOut):
		log.Info("refresh for locked out user")
		response.Unauthorized(w, r, false)
		return
	default:
		log.Error("refresh failed", sl.Err(err))
		response.BadRequest(w, r, response.MsgBadRequest)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(tokens))
}
