// Package scheduler фоновые задачи: истечение подписок, предупреждения об окончании
// и очистка старых deep-link сессий.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/outcastsdev-svg/outlivion-api/internal/lib/rabbitmq"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	"github.com/outcastsdev-svg/outlivion-api/internal/metrics"
	"github.com/outcastsdev-svg/outlivion-api/internal/models"
)

// SubscriptionRepository выборки и переходы подписок.
type SubscriptionRepository interface {
	ListOverdueActive(ctx context.Context, now time.Time, limit int) ([]models.ExpiringSubscription, error)
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ExpiringSubscription, error)
	MarkSubscriptionExpired(ctx context.Context, id int64, now time.Time) (bool, error)
}

// Panel отключает доступ в панели.
type Panel interface {
	DisableUser(ctx context.Context, username string) error
}

// Publisher отправляет сообщение в брокер.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// SessionCleaner удаляет старые deep-link сессии.
type SessionCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// Options интервалы и размеры пачек.
type Options struct {
	SweepInterval     time.Duration
	WarnInterval      time.Duration
	WarnWindow        time.Duration
	CleanupInterval   time.Duration
	BatchSize         int
	ProvisioningDelay time.Duration
}

// Service планировщик фоновых задач.
type Service struct {
	repo      SubscriptionRepository
	panel     Panel
	publisher Publisher
	sessions  SessionCleaner
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

// New создаёт Service. panel, publisher и sessions могут быть nil: соответствующий шаг пропускается.
func New(log *slog.Logger, repo SubscriptionRepository, panel Panel, publisher Publisher, sessions SessionCleaner, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.WarnWindow <= 0 {
		opts.WarnWindow = 24 * time.Hour
	}
	return &Service{
		repo:      repo,
		panel:     panel,
		publisher: publisher,
		sessions:  sessions,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// Run запускает задачи и блокируется до отмены ctx. Каждая задача выполняется сразу, затем по тикеру.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	start := func(name string, interval time.Duration, job func(ctx context.Context)) {
		if interval <= 0 {
			s.log.Info("job disabled", slog.String("job", name))
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			every(ctx, interval, job)
		}()
	}

	start("expire_subscriptions", s.opts.SweepInterval, func(ctx context.Context) {
		if _, err := s.ExpireSubscriptions(ctx); err != nil {
			s.log.Error("expiration sweep failed", sl.Err(err))
		}
	})
	start("warn_expiring", s.opts.WarnInterval, func(ctx context.Context) {
		if _, err := s.WarnExpiringSoon(ctx); err != nil {
			s.log.Error("expiring-soon scan failed", sl.Err(err))
		}
	})
	start("cleanup_login_sessions", s.opts.CleanupInterval, func(ctx context.Context) {
		if _, err := s.CleanupLoginSessions(ctx); err != nil {
			s.log.Error("login session cleanup failed", sl.Err(err))
		}
	})

	wg.Wait()
}

func every(ctx context.Context, interval time.Duration, job func(ctx context.Context)) {
	job(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}

// ExpireSubscriptions переводит просроченные активные подписки в expired пачками
// и отключает доступ в панели. Возвращает число истёкших подписок.
func (s *Service) ExpireSubscriptions(ctx context.Context) (int, error) {
	const op = "scheduler.ExpireSubscriptions"
	log := s.log.With(sl.Op(op))

	total := 0
	for {
		now := s.now()
		batch, err := s.repo.ListOverdueActive(ctx, now, s.opts.BatchSize)
		if err != nil {
			return total, fmt.Errorf("%s: %w", op, err)
		}

		expired := 0
		for _, sub := range batch {
			ok, err := s.repo.MarkSubscriptionExpired(ctx, sub.SubscriptionID, now)
			if err != nil {
				log.Error("failed to expire subscription", slog.Int64("subscription_id", sub.SubscriptionID), sl.Err(err))
				continue
			}
			if !ok {
				continue
			}
			expired++
			metrics.SubscriptionsExpired.Inc()
			// пауза перед каждым обращением к панели, кроме первого за весь прогон
			if s.panel != nil && total+expired > 1 && s.opts.ProvisioningDelay > 0 {
				if err := sleep(ctx, s.opts.ProvisioningDelay); err != nil {
					return total + expired, fmt.Errorf("%s: %w", op, err)
				}
			}
			s.disable(ctx, log, sub)
		}
		total += expired

		if len(batch) < s.opts.BatchSize {
			break
		}
		// пачка целиком из строк, которые не удалось перевести: следующая выборка вернёт их же
		if expired == 0 {
			log.Warn("expiration batch made no progress", slog.Int("batch", len(batch)))
			break
		}
	}

	if total > 0 {
		log.Info("subscriptions expired", slog.Int("count", total))
	}
	return total, nil
}

func (s *Service) disable(ctx context.Context, log *slog.Logger, sub models.ExpiringSubscription) {
	if s.panel == nil {
		return
	}
	username := models.ProvisioningName(sub.TelegramID)
	if err := s.panel.DisableUser(ctx, username); err != nil {
		metrics.ProvisioningFailures.WithLabelValues("disable").Inc()
		log.Error("failed to disable panel user", slog.String("username", username), sl.Err(err))
	}
}

// WarnExpiringSoon находит подписки, которые закончатся в пределах WarnWindow,
// и публикует по сообщению на каждую. Подписки не меняются.
func (s *Service) WarnExpiringSoon(ctx context.Context) (int, error) {
	const op = "scheduler.WarnExpiringSoon"
	log := s.log.With(sl.Op(op))

	now := s.now()
	subs, err := s.repo.ListExpiringBetween(ctx, now, now.Add(s.opts.WarnWindow))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	for _, sub := range subs {
		log.Warn("subscription expiring soon",
			slog.Int64("subscription_id", sub.SubscriptionID),
			slog.String("user_id", sub.UserID),
			slog.Time("end_date", sub.EndDate),
		)
		if s.publisher == nil {
			continue
		}
		if err := s.publisher.Publish(rabbitmq.RoutingKeyExpiring, sub); err != nil {
			log.Error("failed to publish message", sl.Err(err))
		}
	}
	return len(subs), nil
}

// CleanupLoginSessions удаляет старые deep-link сессии.
func (s *Service) CleanupLoginSessions(ctx context.Context) (int64, error) {
	const op = "scheduler.CleanupLoginSessions"
	if s.sessions == nil {
		return 0, nil
	}
	n, err := s.sessions.Cleanup(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		s.log.Info("login sessions deleted", sl.Op(op), slog.Int64("count", n))
	}
	return n, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
