package paymentgateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/outcastsdev-svg/outlivion-api/internal/models"
)

// SignatureHeader заголовок с подписью тела вебхука.
const SignatureHeader = "X-Api-Signature"

var (
	// ErrInvalidSignature подпись отсутствует или не совпадает.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrInvalidPayload тело вебхука не удалось разобрать.
	ErrInvalidPayload = errors.New("invalid webhook payload")
)

// События шлюза, которые меняют статус платежа.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentCanceled  = "payment.canceled"
)

// WebhookEvent разобранный и проверенный вебхук.
type WebhookEvent struct {
	Event   string
	OrderID string
	// Status терминальный статус платежа; пустой для событий, которые статус не меняют.
	Status   models.PaymentStatus
	Amount   int64
	Currency string
	Metadata map[string]string
}

type webhookPayload struct {
	Event  string `json:"event"`
	Object struct {
		ID       string            `json:"id"`
		Status   string            `json:"status"`
		Amount   amount            `json:"amount"`
		Metadata map[string]string `json:"metadata"`
	} `json:"object"`
}

// ParseWebhook проверяет base64(HMAC-SHA256) подпись тела и разбирает событие.
func (c *Client) ParseWebhook(body []byte, signature string) (*WebhookEvent, error) {
	const op = "paymentgateway.ParseWebhook"
	if len(c.webhookSecret) == 0 || signature == "" || !c.validSignature(body, signature) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidPayload, err)
	}
	if payload.Object.ID == "" {
		return nil, fmt.Errorf("%s: %w: empty object id", op, ErrInvalidPayload)
	}

	event := &WebhookEvent{
		Event:    strings.ToLower(payload.Event),
		OrderID:  payload.Object.ID,
		Currency: payload.Object.Amount.Currency,
		Metadata: payload.Object.Metadata,
	}
	switch event.Event {
	case EventPaymentSucceeded:
		event.Status = models.PaymentCompleted
	case EventPaymentCanceled:
		event.Status = models.PaymentFailed
	}
	if payload.Object.Amount.Value != "" {
		minor, err := ToMinorUnits(payload.Object.Amount.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidPayload, err)
		}
		event.Amount = minor
	}
	return event, nil
}

// Sign возвращает подпись тела так же, как её считает шлюз.
func (c *Client) Sign(body []byte) string {
	mac := hmac.New(sha256.New, c.webhookSecret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Client) validSignature(body []byte, signature string) bool {
	return hmac.Equal([]byte(c.Sign(body)), []byte(signature))
}
