// Package login реализует HTTP-обработчик входа по имени пользователя и паролю.
//
// При успехе возвращается пара токенов. Неверные учётные данные и блокировка
// дают общий 401, неподтверждённая почта — отдельный ответ 400.
package login

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

// MsgConfirmEmail — ответ для неподтверждённой почты.
const MsgConfirmEmail = "please confirm your email"

// Request — структура входных данных для авторизации.
type Request struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required"`
}

// Service описывает интерфейс бизнес-логики аутентификации.
type Service interface {
	Login(ctx context.Context, username, password string) (*models.AccessTokenResponse, error)
}

// Handler обрабатывает HTTP-запросы для авторизации.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис токенов
	validate *validator.Validate // Валидатор для проверки входных данных
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Авторизация пользователя
// @Description Аутентифицирует пользователя по имени и паролю. Возвращает access и refresh токены.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные пользователя"
// @Success 200 {object} response.Response{data=models.AccessTokenResponse}
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос или неподтверждённая почта"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Router /user/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	tokens, err := h.service.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrLockedOut):
		log.Info("login rejected", slog.String("username", req.Username))
		response.Unauthorized(w, r, false)
		return
	case errors.Is(err, auth.ErrEmailNotConfirmed):
		log.Info("login with unconfirmed email", slog.String("username", req.Username))
		response.BadRequest(w, r, MsgConfirmEmail)
		return
	default:
		log.Error("login failed", sl.Err(err))
		response.BadRequest(w, r, response.MsgBadRequest)
		return
	}

	log.Info("login success", slog.String("username", req.Username))
	render.JSON(w, r, response.StatusOKWithData(tokens))
}
