// Package paymentlist HTTP-обработчик истории платежей пользователя.
package paymentlist

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/outcastsdev-svg/outlivion-api/internal/http/middlewarectx"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/response"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/payment"
)

// Service отдаёт платежи пользователя.
type Service interface {
	List(ctx context.Context, userID string) ([]payment.View, error)
}

// Response история платежей.
type Response struct {
	Count    int            `json:"count"`
	Payments []payment.View `json:"payments"`
}

// Handler обрабатывает GET /payments.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary История платежей
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 401 {object} response.ErrorResponse "TOKEN_EXPIRED | TOKEN_INVALID"
// @Failure 500 {object} response.ErrorResponse
// @Router /payments [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		response.Fail(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	payments, err := h.service.List(r.Context(), userID)
	if err != nil {
		log.Error("failed to list payments", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, response.CodeInternal, "internal error")
		return
	}

	log.Debug("list payments", slog.Int("count", len(payments)))
	render.JSON(w, r, Response{Count: len(payments), Payments: payments})
}
