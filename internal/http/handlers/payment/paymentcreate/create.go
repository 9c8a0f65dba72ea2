// Package paymentcreate HTTP-обработчик оформления платежа за тариф.
package paymentcreate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/outcastsdev-svg/outlivion-api/internal/http/middlewarectx"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/response"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/payment"
)

// Request выбранный тариф.
type Request struct {
	Plan string `json:"plan" validate:"required"`
}

// Service создаёт платёж.
type Service interface {
	Create(ctx context.Context, userID, plan string) (*payment.Checkout, error)
}

// Handler обрабатывает POST /payments.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать платёж
// @Description Создаёт платёж в шлюзе за выбранный тариф и возвращает ссылку на оплату.
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Тариф"
// @Success 200 {object} payment.Checkout
// @Failure 400 {object} response.ErrorResponse "INVALID_FORMAT"
// @Failure 401 {object} response.ErrorResponse "TOKEN_EXPIRED | TOKEN_INVALID"
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /payments [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		response.Fail(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Info("failed to decode request", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidFormat, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidFormat, "invalid request")
		return
	}

	checkout, err := h.service.Create(r.Context(), userID, req.Plan)
	if errors.Is(err, payment.ErrUnknownPlan) {
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidFormat, "unknown plan")
		return
	}
	if err != nil {
		log.Error("failed to create payment", sl.Err(err))
		response.Fail(w, r, http.StatusBadGateway, response.CodeInternal, "payment provider error")
		return
	}
	render.JSON(w, r, checkout)
}
