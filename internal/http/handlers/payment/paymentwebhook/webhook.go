// Package paymentwebhook HTTP-обработчик вебхуков платёжного шлюза.
//
// Подпись проверяется до разбора тела. Идемпотентность обеспечивает сверка по
// сохранённому статусу платежа; отметка в Redis лишь срезает повторные доставки раньше.
package paymentwebhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/outcastsdev-svg/outlivion-api/internal/http/response"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	"github.com/outcastsdev-svg/outlivion-api/internal/metrics"
	"github.com/outcastsdev-svg/outlivion-api/internal/paymentgateway"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/reconciler"
)

const maxBodyBytes = 1 << 20

// Parser проверяет подпись и разбирает тело вебхука.
type Parser interface {
	ParseWebhook(body []byte, signature string) (*paymentgateway.WebhookEvent, error)
}

// Reconciler применяет событие к платежу.
type Reconciler interface {
	Process(ctx context.Context, ev reconciler.Event) (*reconciler.Result, error)
}

// Dedup отметки об уже обработанных вебхуках.
type Dedup interface {
	WebhookProcessed(ctx context.Context, orderID, status string) (bool, error)
	MarkWebhookProcessed(ctx context.Context, orderID, status string, ttl time.Duration) error
}

// Handler обрабатывает POST /payments/webhook.
type Handler struct {
	log        *slog.Logger
	parser     Parser
	reconciler Reconciler
	dedup      Dedup
	dedupTTL   time.Duration
}

// New создаёт Handler. dedup может быть nil.
func New(log *slog.Logger, parser Parser, rec Reconciler, dedup Dedup, dedupTTL time.Duration) *Handler {
	return &Handler{
		log:        log,
		parser:     parser,
		reconciler: rec,
		dedup:      dedup,
		dedupTTL:   dedupTTL,
	}
}

// ServeHTTP godoc
// @Summary Вебхук платёжного шлюза
// @Description Проверяет подпись X-Api-Signature и применяет результат платежа к подписке. Повторная доставка отвечает 200 без изменений.
// @Tags Payments
// @Accept json
// @Produce json
// @Param X-Api-Signature header string true "base64(HMAC-SHA256) тела"
// @Success 200 {object} response.OKResponse
// @Failure 400 {object} response.ErrorResponse "INVALID_FORMAT"
// @Failure 401 {object} response.ErrorResponse "INVALID_SIGNATURE"
// @Failure 404 {object} response.ErrorResponse "NOT_FOUND"
// @Failure 500 {object} response.ErrorResponse
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Info("failed to read webhook body", sl.Err(err))
		metrics.WebhooksReceived.WithLabelValues("bad_body").Inc()
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidFormat, "invalid request body")
		return
	}

	event, err := h.parser.ParseWebhook(body, r.Header.Get(paymentgateway.SignatureHeader))
	switch {
	case errors.Is(err, paymentgateway.ErrInvalidSignature):
		log.Warn("invalid or missing webhook signature")
		metrics.WebhooksReceived.WithLabelValues("bad_signature").Inc()
		response.Fail(w, r, http.StatusUnauthorized, response.CodeInvalidSignature, "invalid signature")
		return
	case err != nil:
		log.Info("failed to parse webhook payload", sl.Err(err))
		metrics.WebhooksReceived.WithLabelValues("bad_body").Inc()
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidFormat, "invalid webhook payload")
		return
	}

	log = log.With(slog.String("event", event.Event), slog.String("order_id", event.OrderID))
	if event.Status == "" {
		log.Info("ignored webhook event")
		metrics.WebhooksReceived.WithLabelValues("ignored").Inc()
		response.OK(w, r)
		return
	}

	status := string(event.Status)
	if h.dedup != nil {
		seen, err := h.dedup.WebhookProcessed(r.Context(), event.OrderID, status)
		if err != nil {
			log.Warn("webhook dedup lookup failed", sl.Err(err))
		}
		if seen {
			log.Info("webhook already processed")
			metrics.WebhooksReceived.WithLabelValues("duplicate").Inc()
			response.OK(w, r)
			return
		}
	}

	res, err := h.reconciler.Process(r.Context(), reconciler.Event{OrderID: event.OrderID, Status: event.Status})
	switch {
	case errors.Is(err, reconciler.ErrPaymentNotFound):
		metrics.WebhooksReceived.WithLabelValues("not_found").Inc()
		response.Fail(w, r, http.StatusNotFound, response.CodeNotFound, "payment not found")
		return
	case errors.Is(err, reconciler.ErrUnknownPlan), errors.Is(err, reconciler.ErrUnsupportedStatus):
		log.Error("payment cannot be reconciled", sl.Err(err))
		metrics.WebhooksReceived.WithLabelValues("rejected").Inc()
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidFormat, "payment cannot be reconciled")
		return
	case err != nil:
		log.Error("failed to process webhook", sl.Err(err))
		metrics.WebhooksReceived.WithLabelValues("error").Inc()
		response.Fail(w, r, http.StatusInternalServerError, response.CodeInternal, "internal error")
		return
	}

	if h.dedup != nil {
		if err := h.dedup.MarkWebhookProcessed(r.Context(), event.OrderID, status, h.dedupTTL); err != nil {
			log.Warn("failed to mark webhook processed", sl.Err(err))
		}
	}
	metrics.WebhooksReceived.WithLabelValues("processed").Inc()
	log.Info("webhook processed", slog.String("outcome", string(res.Outcome)))
	response.OK(w, r)
}
