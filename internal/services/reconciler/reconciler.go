// Package reconciler применяет результат платежа к подписке пользователя ровно один раз.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	"github.com/outcastsdev-svg/outlivion-api/internal/metrics"
	"github.com/outcastsdev-svg/outlivion-api/internal/models"
	"github.com/outcastsdev-svg/outlivion-api/internal/provisioning"
	"github.com/outcastsdev-svg/outlivion-api/internal/storage"
)

var (
	// ErrPaymentNotFound платежа с таким order id нет.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrUnknownPlan у платежа тариф, которого нет в таблице длительностей.
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrUnsupportedStatus событие несёт нетерминальный статус.
	ErrUnsupportedStatus = errors.New("unsupported payment status")
)

// Outcome что сделала сверка.
type Outcome string

const (
	OutcomeCreated          Outcome = "created"
	OutcomeExtended         Outcome = "extended"
	OutcomeFailed           Outcome = "failed"
	OutcomeAlreadyProcessed Outcome = "already_processed"
)

// Repository операции хранилища, нужные сверке. Все Lock* методы берут FOR UPDATE
// и имеют смысл только внутри WithinTx.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	LockPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	SetPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) (bool, error)
	LinkPaymentSubscription(ctx context.Context, paymentID, subscriptionID int64) error
	LockUser(ctx context.Context, id string) (*models.User, error)
	LockLatestSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) (int64, error)
	ExtendSubscription(ctx context.Context, id int64, plan string, endDate time.Time) error
	CreditBalance(ctx context.Context, userID string, amount int64) error
	MarkReferralBonusPaid(ctx context.Context, userID string) (bool, error)
}

// Provisioner панель выдачи доступа.
type Provisioner interface {
	GetOrCreateUser(ctx context.Context, username string, dataLimit int64, expiry time.Time) (*provisioning.PanelUser, bool, error)
	ExtendSubscription(ctx context.Context, username string, expiry time.Time) error
}

// Event результат платежа, пришедший от шлюза.
type Event struct {
	OrderID string
	Status  models.PaymentStatus
}

// Result итог сверки.
type Result struct {
	Outcome        Outcome
	SubscriptionID int64
	EndDate        time.Time
	BonusPaid      bool
}

// Options параметры сверки.
type Options struct {
	BonusAmount   int64
	DataLimitByte int64
}

// Service сверка платежей с подписками.
type Service struct {
	repo        Repository
	provisioner Provisioner
	opts        Options
	log         *slog.Logger
	now         func() time.Time
}

// New создаёт Service. provisioner может быть nil, тогда панель не уведомляется.
func New(log *slog.Logger, repo Repository, provisioner Provisioner, opts Options) *Service {
	return &Service{
		repo:        repo,
		provisioner: provisioner,
		opts:        opts,
		log:         log,
		now:         time.Now,
	}
}

// Process применяет событие к платежу. Повторная доставка того же события ничего не меняет.
func (s *Service) Process(ctx context.Context, ev Event) (*Result, error) {
	const op = "reconciler.Process"
	log := s.log.With(sl.Op(op), slog.String("order_id", ev.OrderID), slog.String("status", string(ev.Status)))

	if !ev.Status.IsTerminal() {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnsupportedStatus, ev.Status)
	}

	payment, err := s.repo.GetPaymentByOrderID(ctx, ev.OrderID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("payment not found")
		return nil, fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if payment.Status.IsTerminal() {
		log.Info("payment already processed", slog.String("payment_status", string(payment.Status)))
		metrics.Reconciliations.WithLabelValues(string(OutcomeAlreadyProcessed)).Inc()
		return &Result{Outcome: OutcomeAlreadyProcessed}, nil
	}

	var (
		res        *Result
		telegramID int64
	)
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		res, telegramID, err = s.apply(ctx, ev)
		return err
	})
	if err != nil {
		log.Error("reconciliation failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.Reconciliations.WithLabelValues(string(res.Outcome)).Inc()
	if res.BonusPaid {
		metrics.ReferralBonuses.Inc()
	}
	log.Info("payment reconciled",
		slog.String("outcome", string(res.Outcome)),
		slog.Int64("subscription_id", res.SubscriptionID),
		slog.Time("end_date", res.EndDate),
	)

	if res.Outcome == OutcomeCreated || res.Outcome == OutcomeExtended {
		s.provision(ctx, log, telegramID, res.EndDate)
	}
	return res, nil
}

func (s *Service) apply(ctx context.Context, ev Event) (*Result, int64, error) {
	payment, err := s.repo.LockPaymentByOrderID(ctx, ev.OrderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, 0, ErrPaymentNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	if payment.Status.IsTerminal() {
		return &Result{Outcome: OutcomeAlreadyProcessed}, 0, nil
	}

	changed, err := s.repo.SetPaymentStatus(ctx, payment.ID, ev.Status)
	if err != nil {
		return nil, 0, err
	}
	if !changed {
		return &Result{Outcome: OutcomeAlreadyProcessed}, 0, nil
	}
	if ev.Status == models.PaymentFailed {
		return &Result{Outcome: OutcomeFailed}, 0, nil
	}

	duration, ok := models.PlanDuration(payment.Plan)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownPlan, payment.Plan)
	}
	user, err := s.repo.LockUser(ctx, payment.UserID)
	if err != nil {
		return nil, 0, err
	}

	now := s.now().UTC()
	res := &Result{}
	latest, err := s.repo.LockLatestSubscription(ctx, user.ID)
	switch {
	case err == nil && latest.EndDate.After(now):
		res.Outcome = OutcomeExtended
		res.SubscriptionID = latest.ID
		res.EndDate = latestBase(latest.EndDate, now).Add(duration)
		if err := s.repo.ExtendSubscription(ctx, latest.ID, payment.Plan, res.EndDate); err != nil {
			return nil, 0, err
		}
	case err == nil || errors.Is(err, storage.ErrNotFound):
		res.Outcome = OutcomeCreated
		res.EndDate = now.Add(duration)
		res.SubscriptionID, err = s.repo.CreateSubscription(ctx, &models.Subscription{
			UserID:    user.ID,
			Plan:      payment.Plan,
			Status:    models.SubscriptionActive,
			StartDate: now,
			EndDate:   res.EndDate,
		})
		if err != nil {
			return nil, 0, err
		}
	default:
		return nil, 0, err
	}

	if err := s.repo.LinkPaymentSubscription(ctx, payment.ID, res.SubscriptionID); err != nil {
		return nil, 0, err
	}

	if !user.ReferralBonusPaid && user.ReferrerID != nil && s.opts.BonusAmount > 0 {
		marked, err := s.repo.MarkReferralBonusPaid(ctx, user.ID)
		if err != nil {
			return nil, 0, err
		}
		if marked {
			if err := s.repo.CreditBalance(ctx, *user.ReferrerID, s.opts.BonusAmount); err != nil {
				return nil, 0, err
			}
			res.BonusPaid = true
		}
	}
	return res, user.TelegramID, nil
}

// provision сообщает панели новую дату окончания. Ошибки только логируются:
// доступ догонит следующий запуск сверщика.
func (s *Service) provision(ctx context.Context, log *slog.Logger, telegramID int64, endDate time.Time) {
	if s.provisioner == nil {
		return
	}
	username := models.ProvisioningName(telegramID)
	_, created, err := s.provisioner.GetOrCreateUser(ctx, username, s.opts.DataLimitByte, endDate)
	if err != nil {
		metrics.ProvisioningFailures.WithLabelValues("get_or_create").Inc()
		log.Error("failed to provision user", slog.String("username", username), sl.Err(err))
		return
	}
	if created {
		return
	}
	if err := s.provisioner.ExtendSubscription(ctx, username, endDate); err != nil {
		metrics.ProvisioningFailures.WithLabelValues("extend").Inc()
		log.Error("failed to extend provisioned user", slog.String("username", username), sl.Err(err))
	}
}

func latestBase(end, now time.Time) time.Time {
	if end.After(now) {
		return end
	}
	return now
}
