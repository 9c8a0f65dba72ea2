package paymentwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/outcastsdev-svg/outlivion-api/internal/cache"
	"github.com/outcastsdev-svg/outlivion-api/internal/config"
	"github.com/outcastsdev-svg/outlivion-api/internal/models"
	"github.com/outcastsdev-svg/outlivion-api/internal/paymentgateway"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/reconciler"
)

type ReconcilerMock struct {
	mock.Mock
}

func (m *ReconcilerMock) Process(ctx context.Context, ev reconciler.Event) (*reconciler.Result, error) {
	args := m.Called(ctx, ev)
	res, _ := args.Get(0).(*reconciler.Result)
	return res, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

const (
	succeeded = `{"event":"payment.succeeded","object":{"id":"order-1","status":"succeeded","amount":{"value":"199.00","currency":"RUB"}}}`
	canceled  = `{"event":"payment.canceled","object":{"id":"order-1","status":"canceled"}}`
	waiting   = `{"event":"payment.waiting_for_capture","object":{"id":"order-1","status":"waiting_for_capture"}}`
)

func newGateway() *paymentgateway.Client {
	return paymentgateway.NewClient(config.PaymentGateway{WebhookSecret: "whsec"})
}

func newCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func send(h http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(paymentgateway.SignatureHeader, signature)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func code(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	c, _ := body["code"].(string)
	return c
}

func TestHandler_ServeHTTP(t *testing.T) {
	gw := newGateway()
	completed := reconciler.Event{OrderID: "order-1", Status: models.PaymentCompleted}

	tests := []struct {
		name       string
		body       string
		signature  string
		setup      func(m *ReconcilerMock)
		wantStatus int
		wantCode   string
	}{
		{
			name:      "completed payment",
			body:      succeeded,
			signature: gw.Sign([]byte(succeeded)),
			setup: func(m *ReconcilerMock) {
				m.On("Process", mock.Anything, completed).Return(&reconciler.Result{Outcome: reconciler.OutcomeCreated}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:      "canceled payment",
			body:      canceled,
			signature: gw.Sign([]byte(canceled)),
			setup: func(m *ReconcilerMock) {
				m.On("Process", mock.Anything, reconciler.Event{OrderID: "order-1", Status: models.PaymentFailed}).
					Return(&reconciler.Result{Outcome: reconciler.OutcomeFailed}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "non terminal event ignored",
			body:       waiting,
			signature:  gw.Sign([]byte(waiting)),
			setup:      func(*ReconcilerMock) {},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing signature",
			body:       succeeded,
			setup:      func(*ReconcilerMock) {},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_SIGNATURE",
		},
		{
			name:       "signature of another body",
			body:       succeeded,
			signature:  gw.Sign([]byte(canceled)),
			setup:      func(*ReconcilerMock) {},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_SIGNATURE",
		},
		{
			name:       "signed garbage",
			body:       `{"event":`,
			signature:  gw.Sign([]byte(`{"event":`)),
			setup:      func(*ReconcilerMock) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_FORMAT",
		},
		{
			name:      "unknown payment",
			body:      succeeded,
			signature: gw.Sign([]byte(succeeded)),
			setup: func(m *ReconcilerMock) {
				m.On("Process", mock.Anything, completed).Return(nil, reconciler.ErrPaymentNotFound)
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:      "storage failure asks for redelivery",
			body:      succeeded,
			signature: gw.Sign([]byte(succeeded)),
			setup: func(m *ReconcilerMock) {
				m.On("Process", mock.Anything, completed).Return(nil, errors.New("tx aborted"))
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(ReconcilerMock)
			tt.setup(rec)
			h := New(newNoopLogger(), gw, rec, nil, time.Hour)

			rr := send(h, tt.body, tt.signature)
			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, code(t, rr))
			}
			rec.AssertExpectations(t)
		})
	}
}

func TestHandler_DedupSkipsRedelivery(t *testing.T) {
	gw := newGateway()
	rec := new(ReconcilerMock)
	rec.On("Process", mock.Anything, reconciler.Event{OrderID: "order-1", Status: models.PaymentCompleted}).
		Return(&reconciler.Result{Outcome: reconciler.OutcomeExtended}, nil).Once()
	h := New(newNoopLogger(), gw, rec, newCache(t), time.Hour)

	sig := gw.Sign([]byte(succeeded))
	assert.Equal(t, http.StatusOK, send(h, succeeded, sig).Code)
	assert.Equal(t, http.StatusOK, send(h, succeeded, sig).Code)
	rec.AssertNumberOfCalls(t, "Process", 1)
}

func TestHandler_FailedProcessingIsNotMarked(t *testing.T) {
	gw := newGateway()
	rec := new(ReconcilerMock)
	ev := reconciler.Event{OrderID: "order-1", Status: models.PaymentCompleted}
	rec.On("Process", mock.Anything, ev).Return(nil, errors.New("tx aborted")).Once()
	rec.On("Process", mock.Anything, ev).Return(&reconciler.Result{Outcome: reconciler.OutcomeCreated}, nil).Once()
	h := New(newNoopLogger(), gw, rec, newCache(t), time.Hour)

	sig := gw.Sign([]byte(succeeded))
	assert.Equal(t, http.StatusInternalServerError, send(h, succeeded, sig).Code)
	assert.Equal(t, http.StatusOK, send(h, succeeded, sig).Code)
	rec.AssertNumberOfCalls(t, "Process", 2)
}
