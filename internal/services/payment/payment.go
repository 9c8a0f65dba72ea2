// Package payment оформление платежа за тариф и история платежей пользователя.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	"github.com/outcastsdev-svg/outlivion-api/internal/models"
	"github.com/outcastsdev-svg/outlivion-api/internal/paymentgateway"
)

const listLimit = 50

// ErrUnknownPlan тариф неизвестен или для него не задана цена.
var ErrUnknownPlan = errors.New("unknown plan")

// Repository хранилище платежей.
type Repository interface {
	CreatePayment(ctx context.Context, p *models.Payment) (int64, error)
	ListPaymentsByUser(ctx context.Context, userID string, limit int) ([]models.Payment, error)
}

// Gateway создаёт платёж в шлюзе.
type Gateway interface {
	CreatePayment(ctx context.Context, p paymentgateway.CreatePaymentParams) (*paymentgateway.CreatedPayment, error)
}

// Options цены и параметры оплаты.
type Options struct {
	Currency  string
	Prices    map[string]int64
	ReturnURL string
}

// Checkout созданный платёж и ссылка на оплату.
type Checkout struct {
	PaymentID  int64  `json:"paymentId"`
	OrderID    string `json:"orderId"`
	PaymentURL string `json:"paymentUrl"`
	Plan       string `json:"plan"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

// View платёж в ответе клиенту.
type View struct {
	ID             int64                `json:"id"`
	Plan           string               `json:"plan"`
	Amount         int64                `json:"amount"`
	Currency       string               `json:"currency"`
	Status         models.PaymentStatus `json:"status"`
	SubscriptionID *int64               `json:"subscriptionId,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
}

// Service сценарии оплаты.
type Service struct {
	repo    Repository
	gateway Gateway
	opts    Options
	log     *slog.Logger
}

// New создаёт Service.
func New(log *slog.Logger, repo Repository, gateway Gateway, opts Options) *Service {
	if opts.Currency == "" {
		opts.Currency = "RUB"
	}
	return &Service{repo: repo, gateway: gateway, opts: opts, log: log}
}

// Create создаёт платёж в шлюзе и сохраняет его в статусе pending.
// Подписка меняется только после вебхука об успешной оплате.
func (s *Service) Create(ctx context.Context, userID, plan string) (*Checkout, error) {
	const op = "payment.Create"

	if _, ok := models.PlanDuration(plan); !ok {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnknownPlan, plan)
	}
	price, ok := s.opts.Prices[plan]
	if !ok || price <= 0 {
		return nil, fmt.Errorf("%s: %w: no price for %q", op, ErrUnknownPlan, plan)
	}

	created, err := s.gateway.CreatePayment(ctx, paymentgateway.CreatePaymentParams{
		Amount:    price,
		Currency:  s.opts.Currency,
		UserID:    userID,
		Plan:      plan,
		ReturnURL: s.opts.ReturnURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.repo.CreatePayment(ctx, &models.Payment{
		UserID:         userID,
		Amount:         price,
		Currency:       s.opts.Currency,
		GatewayOrderID: created.ID,
		Plan:           plan,
	})
	if err != nil {
		// Платёж в шлюзе уже создан; без строки в базе вебхук по нему получит 404.
		s.log.Error("gateway payment created but not stored", sl.Op(op),
			slog.String("order_id", created.ID), slog.String("user_id", userID), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("payment created", sl.Op(op), slog.String("order_id", created.ID), slog.String("plan", plan))
	return &Checkout{
		PaymentID:  id,
		OrderID:    created.ID,
		PaymentURL: created.PaymentURL,
		Plan:       plan,
		Amount:     price,
		Currency:   s.opts.Currency,
	}, nil
}

// List возвращает последние платежи пользователя.
func (s *Service) List(ctx context.Context, userID string) ([]View, error) {
	const op = "payment.List"
	payments, err := s.repo.ListPaymentsByUser(ctx, userID, listLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]View, 0, len(payments))
	for _, p := range payments {
		out = append(out, View{
			ID:             p.ID,
			Plan:           p.Plan,
			Amount:         p.Amount,
			Currency:       p.Currency,
			Status:         p.Status,
			SubscriptionID: p.SubscriptionID,
			CreatedAt:      p.CreatedAt,
		})
	}
	return out, nil
}
