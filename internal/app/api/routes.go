package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	// Регистрация описания API для /docs.
	_ "github.com/outcastsdev-svg/outlivion-api/internal/docs"
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
	"github.com/outcastsdev-svg/outlivion-api/internal/metrics"
)

// Handlers обработчики и middleware, собранные в New.
type Handlers struct {
	Telegram    *telegram.Handler
	TelegramBot *telegram.Handler
	Refresh     *refresh.Handler
	Create      *create.Handler
	Confirm     *confirm.Handler
	Poll        *poll.Handler
	Me          *me.Handler
	Payment     *paymentcreate.Handler
	Payments    *paymentlist.Handler
	Sub         *read.Handler
	Webhook     *paymentwebhook.Handler
	Health      *health.Handler

	Access       middlewarectx.AccessParser
	BotKeyHash   string
	WebhookGuard func(http.Handler) http.Handler
	StrictLimit  *middlewarectx.IPRateLimiter
	PollLimit    *middlewarectx.IPRateLimiter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, h Handlers) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		metrics.Middleware,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health.ServeHTTP)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(h.StrictLimit.Middleware(logger))
				r.Post("/telegram", h.Telegram.ServeHTTP)
				r.Post("/refresh", h.Refresh.ServeHTTP)
				r.Post("/deeplink", h.Create.ServeHTTP)
			})
			// claim без подписи от собственного бота принимается только с ключом бота
			r.With(h.StrictLimit.Middleware(logger), middlewarectx.BotAPIKey(h.BotKeyHash, logger)).
				Post("/telegram/bot", h.TelegramBot.ServeHTTP)
			// Бот подтверждает сессию ключом; лимит общий со входом.
			r.With(h.StrictLimit.Middleware(logger), middlewarectx.BotAPIKey(h.BotKeyHash, logger)).
				Post("/deeplink/confirm", h.Confirm.ServeHTTP)
			r.With(h.PollLimit.Middleware(logger)).Get("/deeplink/poll", h.Poll.ServeHTTP)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(h.Access, logger))
			r.Get("/me", h.Me.ServeHTTP)
			r.Get("/subscription", h.Sub.ServeHTTP)
			r.Post("/payments", h.Payment.ServeHTTP)
			r.Get("/payments", h.Payments.ServeHTTP)
		})

		r.With(h.WebhookGuard).Post("/payments/webhook", h.Webhook.ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
