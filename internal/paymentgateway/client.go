// Package paymentgateway клиент платёжного шлюза в стиле ЮKassa: создание платежа и разбор вебхуков.
package paymentgateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/outcastsdev-svg/outlivion-api/internal/config"
)

// Client клиент HTTP API шлюза.
type Client struct {
	shopID        string
	secretKey     string
	webhookSecret []byte
	apiURL        string
	httpClient    *http.Client
}

// NewClient создаёт клиент по настройкам шлюза.
func NewClient(cfg config.PaymentGateway) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		shopID:        cfg.ShopID,
		secretKey:     cfg.SecretKey,
		webhookSecret: []byte(cfg.WebhookSecret),
		apiURL:        cfg.APIURL,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// CreatePaymentParams параметры нового платежа.
type CreatePaymentParams struct {
	Amount    int64 // в копейках
	Currency  string
	UserID    string
	Plan      string
	ReturnURL string
}

// CreatedPayment платёж, созданный в шлюзе.
type CreatedPayment struct {
	ID         string
	PaymentURL string
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type createPaymentRequest struct {
	Amount       amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation map[string]string `json:"confirmation"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata"`
}

type createPaymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		Type            string `json:"type"`
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

// CreatePayment создаёт платёж и возвращает ссылку на страницу оплаты.
func (c *Client) CreatePayment(ctx context.Context, p CreatePaymentParams) (*CreatedPayment, error) {
	const op = "paymentgateway.CreatePayment"

	reqBody := createPaymentRequest{
		Amount:  amount{Value: FormatMinorUnits(p.Amount), Currency: p.Currency},
		Capture: true,
		Confirmation: map[string]string{
			"type":       "redirect",
			"return_url": p.ReturnURL,
		},
		Description: "Subscription " + p.Plan,
		Metadata: map[string]string{
			"user_id": p.UserID,
			"plan":    p.Plan,
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/payments", &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.shopID + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%s: unexpected status %s: %s", op, resp.Status, body)
	}

	var out createPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%s: empty payment id in response", op)
	}
	return &CreatedPayment{ID: out.ID, PaymentURL: out.Confirmation.ConfirmationURL}, nil
}
