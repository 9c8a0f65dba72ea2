// Package response единый формат JSON-ответов HTTP-обработчиков.
// Ошибка всегда отдаётся как {error, code}, где code стабильная машинная строка.
package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"
)

// Коды ошибок.
const (
	CodeConfigError      = "CONFIG_ERROR"
	CodeInvalidFormat    = "INVALID_FORMAT"
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeInvalidInitData  = "INVALID_INITDATA"
	CodeUserCreateError  = "USER_CREATE_ERROR"
	CodeRefreshFailed    = "REFRESH_FAILED"
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeSessionExpired   = "SESSION_EXPIRED"
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeTokenInvalid     = "TOKEN_INVALID"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotFound         = "NOT_FOUND"
	CodeTooManyRequests  = "TOO_MANY_REQUESTS"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse тело ответа с ошибкой.
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
	Code  string `json:"code" example:"INVALID_FORMAT"`
}

// OKResponse тело ответа без данных.
type OKResponse struct {
	OK bool `json:"ok" example:"true"`
}

// Error собирает ErrorResponse.
func Error(code, msg string) ErrorResponse {
	return ErrorResponse{Error: msg, Code: code}
}

// Fail пишет статус и ErrorResponse.
func Fail(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	render.Status(r, status)
	render.JSON(w, r, Error(code, msg))
}

// OK пишет {"ok": true}.
func OK(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, OKResponse{OK: true})
}

// ValidationError формирует ErrorResponse с кодом INVALID_FORMAT из ошибок валидатора.
func ValidationError(errs validator.ValidationErrors) ErrorResponse {
	var msgs []string
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "numeric":
			msgs = append(msgs, fmt.Sprintf("field %s can contain only numbers", err.Field()))
		case "gt", "min":
			msgs = append(msgs, fmt.Sprintf("field %s is too small", err.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	return Error(CodeInvalidFormat, strings.Join(msgs, ", "))
}
