package paymentgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outcastsdev-svg/outlivion-api/internal/config"
	"github.com/outcastsdev-svg/outlivion-api/internal/models"
)

func newTestClient(apiURL string) *Client {
	return NewClient(config.PaymentGateway{
		APIURL:        apiURL,
		ShopID:        "shop",
		SecretKey:     "secret",
		WebhookSecret: "whsec_test",
	})
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "299.00", want: 29900},
		{in: "299", want: 29900},
		{in: "0.01", want: 1},
		{in: "1499.9", want: 149990},
		{in: "10.005", wantErr: true},
		{in: "-1.00", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToMinorUnits(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatMinorUnits(t *testing.T) {
	assert.Equal(t, "299.00", FormatMinorUnits(29900))
	assert.Equal(t, "0.05", FormatMinorUnits(5))
}

func TestParseWebhook(t *testing.T) {
	c := newTestClient("")

	succeeded := []byte(`{"event":"payment.succeeded","object":{"id":"2d0b1f5a","status":"succeeded","amount":{"value":"299.00","currency":"RUB"},"metadata":{"user_id":"u-1"}}}`)
	canceled := []byte(`{"event":"payment.canceled","object":{"id":"2d0b1f5b","status":"canceled","amount":{"value":"299.00","currency":"RUB"}}}`)
	waiting := []byte(`{"event":"payment.waiting_for_capture","object":{"id":"2d0b1f5c"}}`)

	t.Run("succeeded", func(t *testing.T) {
		ev, err := c.ParseWebhook(succeeded, c.Sign(succeeded))
		require.NoError(t, err)
		assert.Equal(t, "2d0b1f5a", ev.OrderID)
		assert.Equal(t, models.PaymentCompleted, ev.Status)
		assert.Equal(t, int64(29900), ev.Amount)
		assert.Equal(t, "u-1", ev.Metadata["user_id"])
	})

	t.Run("canceled", func(t *testing.T) {
		ev, err := c.ParseWebhook(canceled, c.Sign(canceled))
		require.NoError(t, err)
		assert.Equal(t, models.PaymentFailed, ev.Status)
	})

	t.Run("status neutral event", func(t *testing.T) {
		ev, err := c.ParseWebhook(waiting, c.Sign(waiting))
		require.NoError(t, err)
		assert.Empty(t, ev.Status)
	})

	tests := []struct {
		name      string
		body      []byte
		signature string
		wantErr   error
	}{
		{name: "missing signature", body: succeeded, signature: "", wantErr: ErrInvalidSignature},
		{name: "wrong signature", body: succeeded, signature: c.Sign(canceled), wantErr: ErrInvalidSignature},
		{name: "malformed json", body: []byte(`{`), signature: c.Sign([]byte(`{`)), wantErr: ErrInvalidPayload},
		{name: "empty id", body: []byte(`{"event":"payment.succeeded","object":{}}`), signature: c.Sign([]byte(`{"event":"payment.succeeded","object":{}}`)), wantErr: ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ParseWebhook(tt.body, tt.signature)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("no secret configured", func(t *testing.T) {
		noSecret := NewClient(config.PaymentGateway{})
		_, err := noSecret.ParseWebhook(succeeded, c.Sign(succeeded))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestCreatePayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "shop", user)
		assert.Equal(t, "secret", pass)
		assert.NotEmpty(t, r.Header.Get("Idempotence-Key"))

		var body createPaymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "299.00", body.Amount.Value)
		assert.Equal(t, "RUB", body.Amount.Currency)
		assert.Equal(t, "u-1", body.Metadata["user_id"])
		assert.Equal(t, models.PlanOneMonth, body.Metadata["plan"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pay-1","status":"pending","confirmation":{"type":"redirect","confirmation_url":"https://pay.example/1"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.CreatePayment(context.Background(), CreatePaymentParams{
		Amount: 29900, Currency: "RUB", UserID: "u-1", Plan: models.PlanOneMonth, ReturnURL: "https://t.me/bot",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay-1", got.ID)
	assert.Equal(t, "https://pay.example/1", got.PaymentURL)
}

func TestCreatePayment_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"type":"error","code":"invalid_credentials"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreatePayment(context.Background(), CreatePaymentParams{Amount: 100, Currency: "RUB"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
