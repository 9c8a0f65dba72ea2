// Package identity находит или создаёт пользователя по подтверждённому Telegram ID.
// Через него проходят все способы входа и подтверждение deep-link сессии.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	"github.com/outcastsdev-svg/outlivion-api/internal/models"
	"github.com/outcastsdev-svg/outlivion-api/internal/storage"
)

// Repository хранилище пользователей.
type Repository interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	InsertUser(ctx context.Context, u *models.User) (bool, error)
	UpdateProfile(ctx context.Context, p models.Profile) (*models.User, error)
}

// Service разрешает Telegram-профиль в пользователя.
type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

// New создаёт Service.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// Resolve возвращает пользователя с данным Telegram ID, создавая его при первом входе.
// isNew == true только для пользователя, созданного этим вызовом.
// Пригласивший задаётся один раз при создании; неизвестный пригласивший молча игнорируется.
func (s *Service) Resolve(ctx context.Context, p models.Profile, referrerTelegramID *int64) (user *models.User, isNew bool, err error) {
	const op = "identity.Resolve"
	log := s.log.With(sl.Op(op), slog.Int64("telegram_id", p.TelegramID))

	_, err = s.repo.GetUserByTelegramID(ctx, p.TelegramID)
	switch {
	case err == nil:
		user, err = s.repo.UpdateProfile(ctx, p)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}
		return user, false, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	referrerID, err := s.lookupReferrer(ctx, p.TelegramID, referrerTelegramID)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	user = &models.User{
		ID:         uuid.NewString(),
		TelegramID: p.TelegramID,
		Username:   p.Username,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		PhotoURL:   p.PhotoURL,
		ReferrerID: referrerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	created, err := s.repo.InsertUser(ctx, user)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !created {
		// параллельный первый вход успел вставить строку раньше
		log.Debug("user inserted concurrently, updating profile")
		user, err = s.repo.UpdateProfile(ctx, p)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}
		return user, false, nil
	}

	log.Info("user created", slog.String("user_id", user.ID), slog.Bool("referred", referrerID != nil))
	return user, true, nil
}

func (s *Service) lookupReferrer(ctx context.Context, telegramID int64, referrerTelegramID *int64) (*string, error) {
	if referrerTelegramID == nil || *referrerTelegramID == telegramID {
		return nil, nil
	}
	referrer, err := s.repo.GetUserByTelegramID(ctx, *referrerTelegramID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &referrer.ID, nil
}
