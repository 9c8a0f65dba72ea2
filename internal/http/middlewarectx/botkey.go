package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/outcastsdev-svg/outlivion-api/internal/http/response"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/password"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
)

// BotKeyHeader заголовок, в котором бот передаёт свой ключ.
const BotKeyHeader = "X-Bot-Api-Key"

// BotAPIKey пропускает только запросы с ключом, совпадающим с bcrypt-хэшем hash.
// Пустой hash закрывает маршрут полностью.
func BotAPIKey(hash string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := password.Verify(hash, r.Header.Get(BotKeyHeader)); err != nil {
				log.Warn("bot api key rejected",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					sl.Err(err),
				)
				response.Fail(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "invalid bot api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
