package paymentcreate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/outcastsdev-svg/outlivion-api/internal/http/middlewarectx"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/payment"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Create(ctx context.Context, userID, plan string) (*payment.Checkout, error) {
	args := m.Called(ctx, userID, plan)
	res, _ := args.Get(0).(*payment.Checkout)
	return res, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		body       string
		setup      func(m *ServiceMock)
		wantStatus int
		wantCode   string
	}{
		{
			name:   "checkout created",
			userID: "u-1",
			body:   `{"plan":"1_month"}`,
			setup: func(m *ServiceMock) {
				m.On("Create", mock.Anything, "u-1", "1_month").Return(&payment.Checkout{
					PaymentID: 9, OrderID: "o-9", PaymentURL: "https://pay.example/o-9", Plan: "1_month", Amount: 19900, Currency: "RUB",
				}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{name: "no user", body: `{"plan":"1_month"}`, setup: func(*ServiceMock) {}, wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "bad json", userID: "u-1", body: `{`, setup: func(*ServiceMock) {}, wantStatus: http.StatusBadRequest, wantCode: "INVALID_FORMAT"},
		{name: "missing plan", userID: "u-1", body: `{}`, setup: func(*ServiceMock) {}, wantStatus: http.StatusUnprocessableEntity, wantCode: "INVALID_FORMAT"},
		{
			name:   "unknown plan",
			userID: "u-1",
			body:   `{"plan":"lifetime"}`,
			setup: func(m *ServiceMock) {
				m.On("Create", mock.Anything, "u-1", "lifetime").Return(nil, fmt.Errorf("payment.Create: %w", payment.ErrUnknownPlan))
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_FORMAT",
		},
		{
			name:   "gateway failure",
			userID: "u-1",
			body:   `{"plan":"1_month"}`,
			setup: func(m *ServiceMock) {
				m.On("Create", mock.Anything, "u-1", "1_month").Return(nil, errors.New("timeout"))
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setup(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(tt.body))
			if tt.userID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, tt.userID))
			}
			rr := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["code"])
			} else {
				assert.Equal(t, "https://pay.example/o-9", body["paymentUrl"])
				assert.Equal(t, float64(19900), body["amount"])
			}
			svc.AssertExpectations(t)
		})
	}
}
