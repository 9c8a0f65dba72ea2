// Package read HTTP-обработчик состояния подписки текущего пользователя.
package read

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/outcastsdev-svg/outlivion-api/internal/http/middlewarectx"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/response"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/subscription"
)

// Service описывает интерфейс чтения подписки.
type Service interface {
	Current(ctx context.Context, userID string) (*subscription.Status, error)
}

// Handler обрабатывает GET /subscription.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Состояние подписки
// @Description Последняя подписка пользователя. Активность считается по дате окончания.
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} subscription.Status
// @Failure 401 {object} response.ErrorResponse "TOKEN_EXPIRED | TOKEN_INVALID"
// @Failure 500 {object} response.ErrorResponse
// @Router /subscription [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		response.Fail(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	res, err := h.service.Current(r.Context(), userID)
	if err != nil {
		log.Error("failed to read subscription", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, response.CodeInternal, "could not read subscription")
		return
	}
	render.JSON(w, r, res)
}
