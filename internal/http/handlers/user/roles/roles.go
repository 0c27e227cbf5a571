// Package roles реализует HTTP-обработчик замены ролей пользователя.
package roles

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/software-marketplace/internal/http/response"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
	"github.com/magabrotheeeer/software-marketplace/internal/services/user"
)

// Request — новый набор ролей.
type Request struct {
	Roles []string `json:"roles" validate:"required,dive,oneof=Admin User Subscriber"`
}

// Service меняет роли пользователя.
type Service interface {
	UpdateUserRoles(ctx context.Context, userID string, roles []models.Role) (*models.User, error)
}

// Handler обрабатывает PUT /user/{userID}/roles.
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
// @Summary Замена ролей пользователя
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param userID path string true "Идентификатор пользователя"
// @Param request body Request true "Роли"
// @Success 200 {object} response.Response{data=models.InfoResponse}
// @Failure 400 {object} response.ValidationErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /user/{userID}/roles [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.roles"

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

	roles := make([]models.Role, 0, len(req.Roles))
	for _, name := range req.Roles {
		role, err := models.ParseRole(name)
		if err != nil {
			response.BadRequest(w, r, err.Error())
			return
		}
		roles = append(roles, role)
	}

	userID := chi.URLParam(r, "userID")
	u, err := h.service.UpdateUserRoles(r.Context(), userID, roles)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error(response.MsgNotFound))
			return
		}
		log.Error("failed to update roles", sl.UserID(userID), sl.Err(err))
		response.BadRequest(w, r, response.MsgBadRequest)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(models.NewInfoResponse(u)))
}
