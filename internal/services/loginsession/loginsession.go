// Package loginsession реализует вход через deep-link: сайт создаёт сессию,
// бот подтверждает её от имени пользователя, сайт опрашивает статус и получает токены.
package loginsession

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/outcastsdev-svg/outlivion-api/internal/lib/jwt"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	"github.com/outcastsdev-svg/outlivion-api/internal/metrics"
	"github.com/outcastsdev-svg/outlivion-api/internal/models"
	"github.com/outcastsdev-svg/outlivion-api/internal/storage"
)

const tokenBytes = 32

var (
	// ErrSessionNotFound сессии нет или она уже не ожидает подтверждения.
	ErrSessionNotFound = errors.New("login session not found")
	// ErrSessionExpired срок сессии вышел до подтверждения.
	ErrSessionExpired = errors.New("login session expired")
)

// PollStatus статус, который видит опрашивающий клиент.
type PollStatus string

const (
	StatusPending  PollStatus = "pending"
	StatusApproved PollStatus = "approved"
	StatusExpired  PollStatus = "expired"
	StatusNotFound PollStatus = "not_found"
)

// Repository хранилище сессий и пользователей.
type Repository interface {
	CreateLoginSession(ctx context.Context, token string, expiresAt time.Time) error
	GetLoginSession(ctx context.Context, token string) (*models.LoginSession, error)
	ApproveLoginSession(ctx context.Context, token string, telegramID int64, userID string, now time.Time) (bool, error)
	ExpireLoginSession(ctx context.Context, token string) error
	DeleteLoginSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Resolver находит или создаёт пользователя.
type Resolver interface {
	Resolve(ctx context.Context, p models.Profile, referrerTelegramID *int64) (*models.User, bool, error)
}

// TokenMaker выпускает пару токенов.
type TokenMaker interface {
	IssuePair(userID string, telegramID int64) (*jwt.Pair, error)
}

// Options параметры сервиса.
type Options struct {
	BotUsername string
	TTL         time.Duration
	MaxAge      time.Duration
}

// Created ответ на создание сессии.
type Created struct {
	Token          string    `json:"token"`
	BotDeepLinkURL string    `json:"botDeepLinkUrl"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// ConfirmRequest подтверждение сессии ботом.
type ConfirmRequest struct {
	Token              string
	Profile            models.Profile
	ReferrerTelegramID *int64
}

// PollResult результат опроса. Токены и пользователь заполнены только для approved.
type PollResult struct {
	Status PollStatus `json:"status"`
	*jwt.Pair
	User *models.PublicUser `json:"user,omitempty"`
}

// Service сценарии deep-link входа.
type Service struct {
	repo     Repository
	resolver Resolver
	tokens   TokenMaker
	opts     Options
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт Service.
func New(log *slog.Logger, repo Repository, resolver Resolver, tokens TokenMaker, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = time.Hour
	}
	return &Service{
		repo:     repo,
		resolver: resolver,
		tokens:   tokens,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Create заводит новую ожидающую сессию и возвращает ссылку на бота.
func (s *Service) Create(ctx context.Context) (*Created, error) {
	const op = "loginsession.Create"

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	expiresAt := s.now().Add(s.opts.TTL).UTC()
	if err := s.repo.CreateLoginSession(ctx, token, expiresAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Created{
		Token:          token,
		BotDeepLinkURL: fmt.Sprintf("https://t.me/%s?start=login_%s", s.opts.BotUsername, token),
		ExpiresAt:      expiresAt,
	}, nil
}

// Confirm привязывает пользователя к ожидающей сессии. Подтвердить сессию можно только один раз.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) error {
	const op = "loginsession.Confirm"
	log := s.log.With(sl.Op(op), slog.Int64("telegram_id", req.Profile.TelegramID))

	sess, err := s.repo.GetLoginSession(ctx, req.Token)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if sess.Status != models.LoginSessionPending {
		return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}
	now := s.now()
	if sess.IsExpiredAt(now) {
		if err := s.repo.ExpireLoginSession(ctx, req.Token); err != nil {
			log.Error("failed to mark session expired", sl.Err(err))
		}
		return fmt.Errorf("%s: %w", op, ErrSessionExpired)
	}

	user, _, err := s.resolver.Resolve(ctx, req.Profile, req.ReferrerTelegramID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ok, err := s.repo.ApproveLoginSession(ctx, req.Token, user.TelegramID, user.ID, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}
	log.Info("login session approved", slog.String("user_id", user.ID))
	return nil
}

// Poll сообщает статус сессии. Для подтверждённой сессии выпускается свежая пара токенов.
func (s *Service) Poll(ctx context.Context, token string) (*PollResult, error) {
	const op = "loginsession.Poll"

	sess, err := s.repo.GetLoginSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return &PollResult{Status: StatusNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch sess.Status {
	case models.LoginSessionExpired:
		return &PollResult{Status: StatusExpired}, nil
	case models.LoginSessionPending:
		if !sess.IsExpiredAt(s.now()) {
			return &PollResult{Status: StatusPending}, nil
		}
		if err := s.repo.ExpireLoginSession(ctx, token); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &PollResult{Status: StatusExpired}, nil
	case models.LoginSessionApproved:
	default:
		return nil, fmt.Errorf("%s: unknown session status %q", op, sess.Status)
	}

	if sess.UserID == nil {
		return nil, fmt.Errorf("%s: approved session without user", op)
	}
	user, err := s.repo.GetUserByID(ctx, *sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	pair, err := s.tokens.IssuePair(user.ID, user.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	pub := user.Public(false)
	return &PollResult{Status: StatusApproved, Pair: pair, User: &pub}, nil
}

// Cleanup удаляет сессии старше MaxAge независимо от статуса.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	const op = "loginsession.Cleanup"
	n, err := s.repo.DeleteLoginSessionsBefore(ctx, s.now().Add(-s.opts.MaxAge))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	metrics.LoginSessionsDeleted.Add(float64(n))
	return n, nil
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
