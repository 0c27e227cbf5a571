// Package add реализует HTTP-обработчик выдачи подписки пользователю администратором.
//
// Подписка начинается в момент запроса и длится столько суток, сколько задано
// типом подписки. Пользователь сразу получает роль Subscriber.
package add

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
	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
	"github.com/magabrotheeeer/software-marketplace/internal/services/user"
)

// Request — пользователь и тип подписки.
type Request struct {
	UserID             string `json:"user_id" validate:"required,uuid"`
	SubscriptionTypeID int64  `json:"subscription_type_id" validate:"required,gt=0"`
}

// Service выдаёт подписки.
type Service interface {
	AddSubscriptionToUser(ctx context.Context, userID string, subscriptionTypeID int64) (*models.Subscription, error)
}

// Handler обрабатывает POST /subscription.
type Handler struct {
	log      *slog.Logger
	service  Service
	clock    clock.Clock
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, service Service, clk clock.Clock) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		clock:    clk,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Выдача подписки
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Подписка"
// @Success 201 {object} response.Response{data=models.SubscriptionResponse}
// @Failure 400 {object} response.ValidationErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /subscription [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.add"

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

	sub, err := h.service.AddSubscriptionToUser(r.Context(), req.UserID, req.SubscriptionTypeID)
	switch {
	case err == nil:
	case errors.Is(err, user.ErrUserNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	case errors.Is(err, user.ErrSubscriptionTypeNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("subscription type not found"))
		return
	default:
		log.Error("failed to add subscription", sl.UserID(req.UserID), sl.Err(err))
		response.BadRequest(w, r, response.MsgBadRequest)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(models.NewSubscriptionResponse(sub, h.clock.Now())))
}
