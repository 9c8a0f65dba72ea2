// Package api собирает HTTP-приложение: вход через Telegram, deep-link сессии и вебхуки платежей.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/outcastsdev-svg/outlivion-api/internal/cache"
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
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	tg "github.com/outcastsdev-svg/outlivion-api/internal/lib/telegram"
	"github.com/outcastsdev-svg/outlivion-api/internal/migrations"
	"github.com/outcastsdev-svg/outlivion-api/internal/paymentgateway"
	"github.com/outcastsdev-svg/outlivion-api/internal/provisioning"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/auth"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/identity"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/loginsession"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/payment"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/reconciler"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/subscription"
	"github.com/outcastsdev-svg/outlivion-api/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// App HTTP-сервер и его ресурсы.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	cache  *cache.Cache
}

// New подключает хранилища, применяет миграции и собирает маршруты.
// Ошибки конфигурации, кроме отсутствующего токена бота, не дают приложению стартовать.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.api.New"

	tokens, err := jwt.NewMaker(cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	verifier, err := tg.NewVerifier(tg.Options{
		BotToken:         cfg.BotToken,
		AllowBotSentinel: cfg.AllowBotSentinel,
		Production:       cfg.IsProduction(),
	})
	switch {
	case errors.Is(err, tg.ErrMissingBotToken):
		logger.Warn("telegram bot token is not set, telegram auth will answer CONFIG_ERROR")
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	case verifier.SentinelAllowed():
		logger.Warn("trusted bot sentinel auth is enabled")
	}

	whGuard, err := middlewarectx.WebhookGuard(middlewarectx.WebhookGuardOptions{
		CheckIP:        cfg.Webhook.CheckIP,
		AllowList:      cfg.IPAllowList,
		CheckTimestamp: cfg.CheckTimestamp,
		Tolerance:      cfg.TimestampTolerance,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.WebhookSecret == "" {
		logger.Warn("payment webhook secret is not set, every webhook will be rejected")
	}
	if cfg.BotAPIKeyHash == "" {
		logger.Warn("bot api key hash is not set, deep-link confirm will be rejected")
	}

	db, err := storage.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var refreshStore auth.RefreshStore
	if cfg.SingleUseRefresh {
		refreshStore = cacheRedis
	}

	var provisioner reconciler.Provisioner
	if cfg.Provisioning.BaseURL != "" {
		provisioner = provisioning.NewClient(cfg.Provisioning)
	} else {
		logger.Warn("provisioning panel is not configured, paid users will not be provisioned")
	}

	var authVerifier auth.Verifier
	if verifier != nil {
		authVerifier = verifier
	}

	resolver := identity.New(db, logger)
	authService := auth.New(logger, authVerifier, resolver, tokens, db, refreshStore)
	sessionService := loginsession.New(logger, db, resolver, tokens, loginsession.Options{
		BotUsername: cfg.BotUsername,
		TTL:         cfg.LoginSessionTTL,
		MaxAge:      cfg.SessionMaxAge,
	})
	reconcilerService := reconciler.New(logger, db, provisioner, reconciler.Options{
		BonusAmount:   cfg.BonusAmount,
		DataLimitByte: cfg.DataLimitByte,
	})
	gateway := paymentgateway.NewClient(cfg.PaymentGateway)
	paymentService := payment.New(logger, db, gateway, payment.Options{
		Currency:  cfg.Currency,
		Prices:    cfg.Prices,
		ReturnURL: cfg.ReturnURL,
	})

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Handlers{
		Telegram:    telegram.New(logger, authService),
		TelegramBot: telegram.NewTrusted(logger, authService),
		Refresh:     refresh.New(logger, authService),
		Create:      create.New(logger, sessionService),
		Confirm:     confirm.New(logger, sessionService),
		Poll:        poll.New(logger, sessionService),
		Me:          me.New(logger, authService),
		Payment:     paymentcreate.New(logger, paymentService),
		Payments:    paymentlist.New(logger, paymentService),
		Sub:         read.New(logger, subscription.New(db)),
		Webhook:     paymentwebhook.New(logger, gateway, reconcilerService, cacheRedis, cfg.DedupTTL),
		Health: health.New(logger, map[string]health.Pinger{
			"postgres": db,
			"redis":    cacheRedis,
		}),
		Access:       tokens,
		BotKeyHash:   cfg.BotAPIKeyHash,
		WebhookGuard: whGuard,
		StrictLimit:  middlewarectx.NewIPRateLimiter(cfg.StrictRPS, cfg.StrictBurst),
		PollLimit:    middlewarectx.NewIPRateLimiter(cfg.PollRPS, cfg.PollBurst).ExemptSuccessful(),
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем плавно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
