package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outcastsdev-svg/outlivion-api/internal/config"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/handlers/auth/refresh"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/handlers/auth/telegram"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/handlers/deeplink/confirm"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/handlers/deeplink/create"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/handlers/deeplink/poll"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/handlers/health"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/handlers/payment/paymentcreate"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/handlers/payment/paymentlist"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/handlers/payment/paymentwebhook"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/handlers/subscription/read"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/handlers/user/me"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/middlewarectx"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/jwt"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/password"
	tg "github.com/outcastsdev-svg/outlivion-api/internal/lib/telegram"
	"github.com/outcastsdev-svg/outlivion-api/internal/models"
	"github.com/outcastsdev-svg/outlivion-api/internal/paymentgateway"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type userStub struct{}

func (userStub) CurrentUser(_ context.Context, id string) (*models.PublicUser, error) {
	return &models.PublicUser{ID: id, TelegramID: 42}, nil
}

type resolverStub struct{}

func (resolverStub) Resolve(_ context.Context, p models.Profile, _ *int64) (*models.User, bool, error) {
	return &models.User{ID: "u-bot", TelegramID: p.TelegramID}, true, nil
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

// newRouter собирает маршруты почти без сервисов: проверяются отказы до их вызова.
// Вход через Telegram настоящий, с разрешённым claim'ом бота.
func newRouter(t *testing.T) (http.Handler, *jwt.Maker) {
	t.Helper()
	log := newNoopLogger()
	tokens, err := jwt.NewMaker(testSecret, time.Hour, 24*time.Hour)
	require.NoError(t, err)
	hash, err := password.Hash("bot-key")
	require.NoError(t, err)
	guard, err := middlewarectx.WebhookGuard(middlewarectx.WebhookGuardOptions{}, log)
	require.NoError(t, err)
	verifier, err := tg.NewVerifier(tg.Options{BotToken: "123:abc", AllowBotSentinel: true})
	require.NoError(t, err)
	authService := auth.New(log, verifier, resolverStub{}, tokens, nil, nil)

	r := chi.NewRouter()
	RegisterRoutes(r, log, Handlers{
		Telegram:     telegram.New(log, authService),
		TelegramBot:  telegram.NewTrusted(log, authService),
		Refresh:      refresh.New(log, nil),
		Create:       create.New(log, nil),
		Confirm:      confirm.New(log, nil),
		Poll:         poll.New(log, nil),
		Me:           me.New(log, userStub{}),
		Payment:      paymentcreate.New(log, nil),
		Payments:     paymentlist.New(log, nil),
		Sub:          read.New(log, nil),
		Webhook:      paymentwebhook.New(log, paymentgateway.NewClient(config.PaymentGateway{WebhookSecret: "whsec"}), nil, nil, time.Hour),
		Health:       health.New(log, nil),
		Access:       tokens,
		BotKeyHash:   hash,
		WebhookGuard: guard,
		StrictLimit:  middlewarectx.NewIPRateLimiter(100, 100),
		PollLimit:    middlewarectx.NewIPRateLimiter(100, 100),
	})
	return r, tokens
}

func TestRegisterRoutes(t *testing.T) {
	router, tokens := newRouter(t)
	pair, err := tokens.IssuePair("u-1", 42)
	require.NoError(t, err)
	const sentinelBody = `{"id": "777", "auth_date": "1", "hash": "bot_created_user"}`

	tests := []struct {
		name       string
		method     string
		path       string
		header     map[string]string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "health", method: http.MethodGet, path: "/api/v1/health", wantStatus: http.StatusOK, wantBody: `"ok"`},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "me without token", method: http.MethodGet, path: "/api/v1/me", wantStatus: http.StatusUnauthorized, wantBody: "TOKEN_INVALID"},
		{
			name:       "me with access token",
			method:     http.MethodGet,
			path:       "/api/v1/me",
			header:     map[string]string{"Authorization": "Bearer " + pair.AccessToken},
			wantStatus: http.StatusOK,
			wantBody:   `"u-1"`,
		},
		{
			name:       "me with refresh token",
			method:     http.MethodGet,
			path:       "/api/v1/me",
			header:     map[string]string{"Authorization": "Bearer " + pair.RefreshToken},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "TOKEN_INVALID",
		},
		{name: "subscription without token", method: http.MethodGet, path: "/api/v1/subscription", wantStatus: http.StatusUnauthorized, wantBody: "TOKEN_INVALID"},
		{name: "payments without token", method: http.MethodGet, path: "/api/v1/payments", wantStatus: http.StatusUnauthorized, wantBody: "TOKEN_INVALID"},
		{name: "checkout without token", method: http.MethodPost, path: "/api/v1/payments", wantStatus: http.StatusUnauthorized, wantBody: "TOKEN_INVALID"},
		{name: "confirm without bot key", method: http.MethodPost, path: "/api/v1/auth/deeplink/confirm", wantStatus: http.StatusUnauthorized, wantBody: "UNAUTHORIZED"},
		{
			name:       "confirm with wrong bot key",
			method:     http.MethodPost,
			path:       "/api/v1/auth/deeplink/confirm",
			header:     map[string]string{middlewarectx.BotKeyHeader: "guess"},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "UNAUTHORIZED",
		},
		{name: "poll without token", method: http.MethodGet, path: "/api/v1/auth/deeplink/poll", wantStatus: http.StatusBadRequest, wantBody: "INVALID_FORMAT"},
		{
			name:       "bot claim on public route",
			method:     http.MethodPost,
			path:       "/api/v1/auth/telegram",
			body:       sentinelBody,
			wantStatus: http.StatusUnauthorized,
			wantBody:   "INVALID_SIGNATURE",
		},
		{
			name:       "bot claim on public route with bot key",
			method:     http.MethodPost,
			path:       "/api/v1/auth/telegram",
			header:     map[string]string{middlewarectx.BotKeyHeader: "bot-key"},
			body:       sentinelBody,
			wantStatus: http.StatusUnauthorized,
			wantBody:   "INVALID_SIGNATURE",
		},
		{
			name:       "bot route without bot key",
			method:     http.MethodPost,
			path:       "/api/v1/auth/telegram/bot",
			body:       sentinelBody,
			wantStatus: http.StatusUnauthorized,
			wantBody:   "UNAUTHORIZED",
		},
		{
			name:       "bot route with bot key",
			method:     http.MethodPost,
			path:       "/api/v1/auth/telegram/bot",
			header:     map[string]string{middlewarectx.BotKeyHeader: "bot-key"},
			body:       sentinelBody,
			wantStatus: http.StatusOK,
			wantBody:   `"accessToken"`,
		},
		{name: "unsigned webhook", method: http.MethodPost, path: "/api/v1/payments/webhook", wantStatus: http.StatusUnauthorized, wantBody: "INVALID_SIGNATURE"},
		{name: "unknown route", method: http.MethodGet, path: "/api/v1/subscriptions/1", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRegisterRoutes_StrictLimit(t *testing.T) {
	log := newNoopLogger()
	hash, err := password.Hash("bot-key")
	require.NoError(t, err)
	guard, err := middlewarectx.WebhookGuard(middlewarectx.WebhookGuardOptions{}, log)
	require.NoError(t, err)

	r := chi.NewRouter()
	RegisterRoutes(r, log, Handlers{
		Telegram:     telegram.New(log, nil),
		TelegramBot:  telegram.NewTrusted(log, nil),
		Refresh:      refresh.New(log, nil),
		Create:       create.New(log, nil),
		Confirm:      confirm.New(log, nil),
		Poll:         poll.New(log, nil),
		Me:           me.New(log, userStub{}),
		Payment:      paymentcreate.New(log, nil),
		Payments:     paymentlist.New(log, nil),
		Sub:          read.New(log, nil),
		Webhook:      paymentwebhook.New(log, nil, nil, nil, time.Hour),
		Health:       health.New(log, nil),
		BotKeyHash:   hash,
		WebhookGuard: guard,
		StrictLimit:  middlewarectx.NewIPRateLimiter(0.001, 1),
		PollLimit:    middlewarectx.NewIPRateLimiter(100, 100),
	})

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/deeplink/confirm", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusUnauthorized, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}
