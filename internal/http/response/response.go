// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков: успешных ответов, ошибок
// и ошибок валидации с разбивкой по полям.
package response

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Error — текст ошибки (опционально, при неуспехе).
// Поле Data — данные ответа (опционально, при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"bad request"`
}

// ValidationErrorResponse — ошибка валидации с сообщениями по полям.
type ValidationErrorResponse struct {
	Status string              `json:"status" example:"Error"`
	Error  string              `json:"error" example:"validation failed"`
	Fields map[string][]string `json:"fields"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// Общие тексты ошибок.
const (
	MsgBadRequest   = "bad request"
	MsgUnauthorized = "unauthorized"
	MsgNotFound     = "not found"
)

// OK возвращает успешный Response без данных.
func OK() Response {
	return Response{Status: StatusOK}
}

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// FieldErrors формирует ответ валидации из готовой карты поле → сообщения.
func FieldErrors(fields map[string][]string) ValidationErrorResponse {
	return ValidationErrorResponse{
		Status: StatusError,
		Error:  "validation failed",
		Fields: fields,
	}
}

// ValidationError формирует ответ валидации на основе ошибок validator.
func ValidationError(errs validator.ValidationErrors) ValidationErrorResponse {
	fields := make(map[string][]string, len(errs))
	for _, err := range errs {
		var msg string
		switch err.ActualTag() {
		case "required":
			msg = fmt.Sprintf("field %s is a required field", err.Field())
		case "email":
			msg = fmt.Sprintf("field %s must be a valid email", err.Field())
		case "uuid":
			msg = fmt.Sprintf("field %s can contain only uuid", err.Field())
		case "min":
			msg = fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param())
		case "max":
			msg = fmt.Sprintf("field %s must be at most %s", err.Field(), err.Param())
		case "gt":
			msg = fmt.Sprintf("field %s must be greater than %s", err.Field(), err.Param())
		case "oneof":
			msg = fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param())
		default:
			msg = fmt.Sprintf("field %s is not a valid", err.Field())
		}
		fields[err.Field()] = append(fields[err.Field()], msg)
	}
	return FieldErrors(fields)
}

// Unauthorized пишет общий ответ 401. При challenge добавляется
// заголовок WWW-Authenticate, требующий повторного входа.
func Unauthorized(w http.ResponseWriter, r *http.Request, challenge bool) {
	if challenge {
		w.Header().Set("WWW-Authenticate", `Bearer`)
	}
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, Error(MsgUnauthorized))
}

// BadRequest пишет ответ 400 с сообщением msg.
func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, Error(msg))
}
