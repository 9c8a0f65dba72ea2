package middlewarectx

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/middleware"
	"golang.org/x/time/rate"

	"github.com/outcastsdev-svg/outlivion-api/internal/http/response"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter ограничивает частоту запросов с одного IP.
type IPRateLimiter struct {
	rps   rate.Limit
	burst int
	// exemptSuccess расходует токен только на ответы не из 2xx.
	exemptSuccess bool

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastPrune time.Time
	now       func() time.Time
}

// NewIPRateLimiter создаёт лимитер: rps запросов в секунду с запасом burst на каждый IP.
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// ExemptSuccessful включает режим, в котором успешные ответы лимит не расходуют.
func (l *IPRateLimiter) ExemptSuccessful() *IPRateLimiter {
	l.exemptSuccess = true
	return l
}

// Allow сообщает, можно ли пропустить ещё один запрос с ip, и расходует токен.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	return l.visitor(ip, now).AllowN(now, 1)
}

// available сообщает, есть ли у ip токен, не расходуя его.
func (l *IPRateLimiter) available(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	return l.visitor(ip, now).TokensAt(now) >= 1
}

// visitor возвращает лимитер ip и чистит давно молчащие. Вызывается под l.mu.
func (l *IPRateLimiter) visitor(ip string, now time.Time) *rate.Limiter {
	if now.Sub(l.lastPrune) > limiterIdleTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastPrune = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Middleware отвечает 429, когда IP исчерпал лимит.
func (l *IPRateLimiter) Middleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			var ok bool
			if l.exemptSuccess {
				ok = l.available(ip)
			} else {
				ok = l.Allow(ip)
			}
			if !ok {
				log.Warn("too many requests",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
				response.Fail(w, r, http.StatusTooManyRequests, response.CodeTooManyRequests, "too many requests")
				return
			}
			if !l.exemptSuccess {
				next.ServeHTTP(w, r)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			// без WriteHeader net/http отвечает 200
			if status := ww.Status(); status != 0 && (status < 200 || status >= 300) {
				l.Allow(ip)
			}
		})
	}
}

// clientIP адрес клиента. За middleware.RealIP RemoteAddr уже содержит IP без порта.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
