package middlewarectx

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/outcastsdev-svg/outlivion-api/internal/http/response"
	"github.com/outcastsdev-svg/outlivion-api/internal/metrics"
)

// TimestampHeader заголовок с unix-временем отправки вебхука.
const TimestampHeader = "X-Webhook-Timestamp"

// WebhookGuardOptions проверки вебхука до разбора тела. Каждая включается отдельно.
type WebhookGuardOptions struct {
	CheckIP        bool
	AllowList      []string // IP или CIDR
	CheckTimestamp bool
	Tolerance      time.Duration
	Now            func() time.Time
}

// WebhookGuard отсекает вебхуки с чужих адресов и с временем отправки вне окна Tolerance.
// Пустой список адресов пропускает всех.
func WebhookGuard(opts WebhookGuardOptions, log *slog.Logger) (func(http.Handler) http.Handler, error) {
	nets, err := parseAllowList(opts.AllowList)
	if err != nil {
		return nil, err
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.WebhookGuard"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if opts.CheckIP && len(nets) > 0 {
				ip := net.ParseIP(clientIP(r))
				if ip == nil || !contains(nets, ip) {
					log.Warn("webhook from address outside allow-list", slog.String("ip", clientIP(r)))
					metrics.WebhooksReceived.WithLabelValues("forbidden_ip").Inc()
					response.Fail(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "address not allowed")
					return
				}
			}

			if opts.CheckTimestamp {
				ts, err := strconv.ParseInt(r.Header.Get(TimestampHeader), 10, 64)
				if err != nil {
					log.Warn("webhook without valid timestamp")
					metrics.WebhooksReceived.WithLabelValues("bad_timestamp").Inc()
					response.Fail(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "missing or invalid timestamp")
					return
				}
				skew := opts.Now().Sub(time.Unix(ts, 0))
				if skew > opts.Tolerance || skew < -opts.Tolerance {
					log.Warn("webhook timestamp outside tolerance", slog.Duration("skew", skew))
					metrics.WebhooksReceived.WithLabelValues("bad_timestamp").Inc()
					response.Fail(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "timestamp outside tolerance")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

func parseAllowList(entries []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				return nil, fmt.Errorf("middlewarectx: invalid allow-list entry %q", e)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			return nil, fmt.Errorf("middlewarectx: invalid allow-list entry %q: %w", e, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func contains(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
