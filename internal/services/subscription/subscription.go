// Package subscription текущее состояние подписки пользователя.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/outcastsdev-svg/outlivion-api/internal/models"
	"github.com/outcastsdev-svg/outlivion-api/internal/storage"
)

// Repository чтение подписок.
type Repository interface {
	LatestSubscription(ctx context.Context, userID string) (*models.Subscription, error)
}

// Status то, что клиент показывает пользователю.
type Status struct {
	Active    bool                      `json:"active"`
	Plan      string                    `json:"plan,omitempty"`
	Status    models.SubscriptionStatus `json:"status,omitempty"`
	StartDate *time.Time                `json:"startDate,omitempty"`
	EndDate   *time.Time                `json:"endDate,omitempty"`
	DaysLeft  int                       `json:"daysLeft"`
}

// Service чтение подписки.
type Service struct {
	repo Repository
	now  func() time.Time
}

// New создаёт Service.
func New(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Current возвращает состояние последней подписки. Пользователь без подписок получает неактивный статус.
// Активность считается по времени: подписка, которую ещё не обработал планировщик, уже неактивна после EndDate.
func (s *Service) Current(ctx context.Context, userID string) (*Status, error) {
	const op = "subscription.Current"

	sub, err := s.repo.LatestSubscription(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	st := &Status{
		Active:    sub.IsActiveAt(now),
		Plan:      sub.Plan,
		Status:    sub.Status,
		StartDate: &sub.StartDate,
		EndDate:   &sub.EndDate,
	}
	if st.Active {
		st.DaysLeft = int(sub.EndDate.Sub(now).Hours()/24) + 1
	}
	return st, nil
}
