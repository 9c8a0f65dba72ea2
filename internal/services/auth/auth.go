// Package auth связывает проверку данных Telegram, разрешение пользователя и выпуск токенов.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/outcastsdev-svg/outlivion-api/internal/lib/jwt"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/telegram"
	"github.com/outcastsdev-svg/outlivion-api/internal/metrics"
	"github.com/outcastsdev-svg/outlivion-api/internal/models"
)

var (
	// ErrNotConfigured токен бота не задан, проверять подписи нечем.
	ErrNotConfigured = errors.New("telegram auth is not configured")
	// ErrNoCredentials в запросе нет ни initData, ни полей виджета.
	ErrNoCredentials = errors.New("no telegram credentials in request")
	// ErrUserCreate не удалось найти или создать пользователя.
	ErrUserCreate = errors.New("failed to resolve user")
	// ErrRefreshFailed refresh токен не принят.
	ErrRefreshFailed = errors.New("refresh failed")
)

// Verifier проверяет данные входа Telegram.
type Verifier interface {
	VerifyWidget(fields map[string]string) (*telegram.Claim, error)
	VerifyInitData(raw string) (*telegram.Claim, error)
	VerifyBotClaim(fields map[string]string) (*telegram.Claim, error)
}

// Resolver находит или создаёт пользователя.
type Resolver interface {
	Resolve(ctx context.Context, p models.Profile, referrerTelegramID *int64) (*models.User, bool, error)
}

// TokenMaker выпускает и разбирает токены.
type TokenMaker interface {
	IssuePair(userID string, telegramID int64) (*jwt.Pair, error)
	ParseRefresh(token string) (*jwt.RefreshClaims, error)
}

// UserRepository чтение пользователей.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// RefreshStore отмечает использованные refresh токены.
type RefreshStore interface {
	ConsumeRefreshToken(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

// Request данные входа: либо initData мини-приложения, либо поля виджета.
type Request struct {
	InitData           string
	Widget             map[string]string
	ReferrerTelegramID *int64
	// Trusted выставляет только маршрут, проверивший ключ бота. Лишь тогда поля виджета
	// проверяются как claim доверенного бота.
	Trusted bool
}

// Result пара токенов и публичная проекция пользователя.
type Result struct {
	jwt.Pair
	User models.PublicUser `json:"user"`
}

// Service сценарии входа и обновления токенов.
type Service struct {
	verifier Verifier
	resolver Resolver
	tokens   TokenMaker
	users    UserRepository
	refresh  RefreshStore
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт Service. verifier == nil означает, что бот не настроен и вход вернёт ErrNotConfigured.
// refresh == nil отключает одноразовость refresh токенов.
func New(log *slog.Logger, verifier Verifier, resolver Resolver, tokens TokenMaker, users UserRepository, refresh RefreshStore) *Service {
	return &Service{
		verifier: verifier,
		resolver: resolver,
		tokens:   tokens,
		users:    users,
		refresh:  refresh,
		log:      log,
		now:      time.Now,
	}
}

// Authenticate проверяет данные входа, находит пользователя и выпускает токены.
func (s *Service) Authenticate(ctx context.Context, req Request) (*Result, error) {
	const op = "auth.Authenticate"
	if s.verifier == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	var (
		claim *telegram.Claim
		err   error
		mode  = telegram.ModeWidget
	)
	switch {
	case req.Trusted && len(req.Widget) > 0:
		mode = telegram.ModeBotCreated
		claim, err = s.verifier.VerifyBotClaim(req.Widget)
	case req.InitData != "":
		mode = telegram.ModeMiniApp
		claim, err = s.verifier.VerifyInitData(req.InitData)
	case len(req.Widget) > 0:
		claim, err = s.verifier.VerifyWidget(req.Widget)
	default:
		metrics.AuthAttempts.WithLabelValues("unknown", "rejected").Inc()
		return nil, fmt.Errorf("%s: %w", op, ErrNoCredentials)
	}
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(string(mode), "rejected").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log := s.log.With(sl.Op(op), slog.Int64("telegram_id", claim.TelegramID), slog.String("auth_mode", string(claim.Mode)))
	if claim.Mode == telegram.ModeBotCreated {
		log.Warn("trusted bot sentinel accepted")
	}

	referrer := claim.ReferrerTelegramID
	if referrer == nil {
		referrer = req.ReferrerTelegramID
	}
	profile := models.Profile{
		TelegramID: claim.TelegramID,
		Username:   claim.Username,
		FirstName:  claim.FirstName,
		LastName:   claim.LastName,
		PhotoURL:   claim.PhotoURL,
	}
	user, isNew, err := s.resolver.Resolve(ctx, profile, referrer)
	if err != nil {
		log.Error("failed to resolve user", sl.Err(err))
		metrics.AuthAttempts.WithLabelValues(string(claim.Mode), "error").Inc()
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUserCreate, err)
	}

	pair, err := s.tokens.IssuePair(user.ID, user.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.AuthAttempts.WithLabelValues(string(claim.Mode), "ok").Inc()
	log.Info("user authenticated", slog.String("user_id", user.ID), slog.Bool("is_new", isNew))

	return &Result{Pair: *pair, User: user.Public(isNew)}, nil
}

// Refresh выпускает новую пару по refresh токену. telegramID == 0 пропускает сверку владельца.
// Ошибка всегда оборачивает ErrRefreshFailed, а для истёкшего токена ещё и jwt.ErrTokenExpired.
func (s *Service) Refresh(ctx context.Context, refreshToken string, telegramID int64) (*jwt.Pair, error) {
	const op = "auth.Refresh"

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrRefreshFailed, err)
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrRefreshFailed, err)
	}
	if telegramID != 0 && user.TelegramID != telegramID {
		return nil, fmt.Errorf("%s: %w: telegram id mismatch", op, ErrRefreshFailed)
	}

	if s.refresh != nil {
		ttl := claims.ExpiresAt.Time.Sub(s.now())
		if ttl <= 0 {
			ttl = time.Second
		}
		first, err := s.refresh.ConsumeRefreshToken(ctx, claims.ID, ttl)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrRefreshFailed, err)
		}
		if !first {
			s.log.Warn("refresh token reused", sl.Op(op), slog.String("user_id", user.ID))
			return nil, fmt.Errorf("%s: %w: token already used", op, ErrRefreshFailed)
		}
	}

	pair, err := s.tokens.IssuePair(user.ID, user.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrRefreshFailed, err)
	}
	return pair, nil
}

// CurrentUser возвращает публичную проекцию пользователя по ID из access токена.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	const op = "auth.CurrentUser"
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	pub := user.Public(false)
	return &pub, nil
}
