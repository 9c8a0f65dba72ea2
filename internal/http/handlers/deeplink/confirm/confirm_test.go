package confirm

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

	"github.com/outcastsdev-svg/outlivion-api/internal/models"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/loginsession"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Confirm(ctx context.Context, req loginsession.ConfirmRequest) error {
	return m.Called(ctx, req).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestHandler_ServeHTTP(t *testing.T) {
	ref := int64(9)
	valid := loginsession.ConfirmRequest{
		Token:              "tok",
		Profile:            models.Profile{TelegramID: 42, Username: "neo", FirstName: "Thomas"},
		ReferrerTelegramID: &ref,
	}
	validBody := `{"token":"tok","telegramId":42,"username":"neo","firstName":"Thomas","ref":9}`

	tests := []struct {
		name       string
		body       string
		svcErr     error
		callSvc    bool
		wantStatus int
		wantCode   string
	}{
		{name: "approved", body: validBody, callSvc: true, wantStatus: http.StatusOK},
		{name: "not found", body: validBody, callSvc: true, svcErr: fmt.Errorf("x: %w", loginsession.ErrSessionNotFound), wantStatus: http.StatusNotFound, wantCode: "SESSION_NOT_FOUND"},
		{name: "expired", body: validBody, callSvc: true, svcErr: loginsession.ErrSessionExpired, wantStatus: http.StatusBadRequest, wantCode: "SESSION_EXPIRED"},
		{name: "resolver failure", body: validBody, callSvc: true, svcErr: errors.New("db down"), wantStatus: http.StatusInternalServerError, wantCode: "USER_CREATE_ERROR"},
		{name: "invalid json", body: `{"token":`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_FORMAT"},
		{name: "missing telegram id", body: `{"token":"tok"}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callSvc {
				svc.On("Confirm", mock.Anything, valid).Return(tt.svcErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/deeplink/confirm", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["code"])
			} else {
				assert.Equal(t, true, body["ok"])
			}
			svc.AssertExpectations(t)
		})
	}
}
