// Package software реализует HTTP-обработчик добавления программы в каталог.
package software

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/software-marketplace/internal/http/response"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
)

// Request — название программы.
type Request struct {
	Name string `json:"name" validate:"required,max=200"`
}

// Service добавляет программы.
type Service interface {
	AddSoftware(ctx context.Context, name string) (*models.Software, error)
}

// Handler обрабатывает POST /software.
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
// @Summary Добавление программы
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Программа"
// @Success 201 {object} response.Response{data=models.Software}
// @Failure 400 {object} response.ValidationErrorResponse
// @Router /software [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.catalogue.software"

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
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	sw, err := h.service.AddSoftware(r.Context(), req.Name)
	if err != nil {
		log.Error("failed to add software", sl.Err(err))
		response.BadRequest(w, r, response.MsgBadRequest)
		return
	}
	log.Info("software added", slog.Int64("software_id", sw.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(sw))
}
