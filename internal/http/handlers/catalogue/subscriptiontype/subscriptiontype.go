// Package subscriptiontype реализует HTTP-обработчик добавления тарифа к программе.
package subscriptiontype

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/software-marketplace/internal/http/response"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
	"github.com/magabrotheeeer/software-marketplace/internal/services/user"
)

// Request — тариф программы.
type Request struct {
	Name         string `json:"name" validate:"required,max=200"`
	LengthInDays int    `json:"length_in_days" validate:"required,gt=0"`
}

// Service добавляет тарифы.
type Service interface {
	AddSubscriptionType(ctx context.Context, softwareID int64, name string, lengthInDays int) (*models.SubscriptionType, error)
}

// Handler обрабатывает POST /software/{softwareID}/subscription-types.
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
// @Summary Добавление тарифа
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param softwareID path int true "Идентификатор программы"
// @Param request body Request true "Тариф"
// @Success 201 {object} response.Response{data=models.SubscriptionType}
// @Failure 400 {object} response.ValidationErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /software/{softwareID}/subscription-types [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.catalogue.subscriptiontype"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	softwareID, err := strconv.ParseInt(chi.URLParam(r, "softwareID"), 10, 64)
	if err != nil {
		log.Info("failed to decode software id from url", sl.Err(err))
		response.BadRequest(w, r, "invalid software id")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.BadRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	st, err := h.service.AddSubscriptionType(r.Context(), softwareID, req.Name, req.LengthInDays)
	if err != nil {
		if errors.Is(err, user.ErrSoftwareNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("software not found"))
			return
		}
		log.Error("failed to add subscription type", sl.Err(err))
		response.BadRequest(w, r, response.MsgBadRequest)
		return
	}
	log.Info("subscription type added", slog.Int64("subscription_type_id", st.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(st))
}
