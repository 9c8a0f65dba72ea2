// Package middlewarectx HTTP middleware: проверка access токена, ключа бота,
// ограничение частоты запросов и защита эндпоинта вебхуков.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/outcastsdev-svg/outlivion-api/internal/http/response"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/jwt"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserID ключ ID пользователя в контексте.
	UserID Key = "user_id"
	// TelegramID ключ Telegram ID пользователя в контексте.
	TelegramID Key = "telegram_id"
)

// AccessParser проверяет access токен.
type AccessParser interface {
	ParseAccess(token string) (*jwt.AccessClaims, error)
}

// JWTMiddleware проверяет Bearer токен в заголовке Authorization и кладёт владельца в контекст.
// Истёкший токен отдаёт 401 TOKEN_EXPIRED, любой другой отказ 401 TOKEN_INVALID.
func JWTMiddleware(tokens AccessParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Info("missing or invalid authorization header")
				response.Fail(w, r, http.StatusUnauthorized, response.CodeTokenInvalid, "missing or invalid authorization header")
				return
			}

			claims, err := tokens.ParseAccess(strings.TrimPrefix(authHeader, "Bearer "))
			if errors.Is(err, jwt.ErrTokenExpired) {
				log.Info("access token expired")
				response.Fail(w, r, http.StatusUnauthorized, response.CodeTokenExpired, "token expired")
				return
			}
			if err != nil {
				log.Info("invalid access token", sl.Err(err))
				response.Fail(w, r, http.StatusUnauthorized, response.CodeTokenInvalid, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserID, claims.UserID())
			ctx = context.WithValue(ctx, TelegramID, claims.TelegramID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFrom достаёт ID пользователя, положенный JWTMiddleware.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserID).(string)
	return id, ok && id != ""
}
