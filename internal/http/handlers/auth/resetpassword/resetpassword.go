// Package resetpassword реализует HTTP-обработчик сброса пароля.
//
// Запрос без кода отправляет письмо со ссылкой; запрос с кодом и новым
// паролем меняет пароль. Ответ на запрос ссылки не раскрывает, существует
// ли пользователь.
package resetpassword

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/software-marketplace/internal/http/response"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/services/auth"
)

// Request — данные сброса пароля.
type Request struct {
	Email       string `json:"email,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Code        string `json:"code,omitempty"`
	NewPassword string `json:"new_password,omitempty"`
}

// Service сбрасывает пароль.
type Service interface {
	ResetPassword(ctx context.Context, req auth.ResetPasswordRequest) error
}

// Handler обрабатывает запросы сброса пароля.
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
// @Summary Сброс пароля
// @Description Без кода отправляет ссылку для сброса, с кодом и новым паролем меняет пароль.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные сброса"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ValidationErrorResponse
// @Router /user/reset-password [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.resetpassword"

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

	err := h.service.ResetPassword(r.Context(), auth.ResetPasswordRequest{
		Email:       req.Email,
		UserID:      req.UserID,
		Code:        req.Code,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.FieldErrors(verr.Fields))
		case errors.Is(err, auth.ErrInvalidCode):
			log.Info("invalid reset code")
			response.BadRequest(w, r, "invalid code")
		default:
			log.Error("failed to reset password", sl.Err(err))
			response.BadRequest(w, r, response.MsgBadRequest)
		}
		return
	}

	render.JSON(w, r, response.OK())
}
