// Package metrics счётчики Prometheus для входа, вебхуков, сверки платежей и фоновых задач.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AuthAttempts результаты входа по способу подтверждения.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Telegram auth attempts by mode and result",
		},
		[]string{"mode", "result"},
	)

	// WebhooksReceived вебхуки шлюза по результату обработки.
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Payment webhooks by result",
		},
		[]string{"result"},
	)

	// Reconciliations исходы сверки платежа с подпиской.
	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_reconciliations_total",
			Help: "Payment reconciliations by outcome",
		},
		[]string{"outcome"},
	)

	ReferralBonuses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "referral_bonuses_paid_total",
		Help: "Referral bonuses credited to referrers",
	})

	// ProvisioningFailures ошибки вызовов панели по операции.
	ProvisioningFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioning_failures_total",
			Help: "Failed best-effort provisioning panel calls",
		},
		[]string{"operation"},
	)

	SubscriptionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_expired_total",
		Help: "Subscriptions transitioned to expired by the sweeper",
	})

	LoginSessionsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "login_sessions_deleted_total",
		Help: "Login sessions removed by cleanup",
	})
)

// Middleware считает запросы по шаблону маршрута chi, чтобы токены в query и path не раздували метки.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
