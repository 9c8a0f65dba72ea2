package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/outcastsdev-svg/outlivion-api/internal/models"
)

const paymentColumns = `id, user_id, amount, currency, status, COALESCE(gateway_order_id, ''), plan,
	subscription_id, created_at, updated_at`

func scanPayment(row interface{ Scan(dest ...any) error }) (*models.Payment, error) {
	var (
		p      models.Payment
		status string
		subID  sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Amount, &p.Currency, &status, &p.GatewayOrderID, &p.Plan,
		&subID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	if subID.Valid {
		p.SubscriptionID = &subID.Int64
	}
	return &p, nil
}

// CreatePayment сохраняет платёж в статусе pending до перехода пользователя на страницу оплаты.
func (s *Storage) CreatePayment(ctx context.Context, p *models.Payment) (int64, error) {
	const op = "storage.CreatePayment"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	var orderID sql.NullString
	if p.GatewayOrderID != "" {
		orderID = sql.NullString{String: p.GatewayOrderID, Valid: true}
	}
	var id int64
	err := s.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO payments (user_id, amount, currency, status, gateway_order_id, plan)
		VALUES ($1, $2, $3, 'pending', $4, $5)
		RETURNING id`,
		p.UserID, p.Amount, p.Currency, orderID, p.Plan).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetPaymentByOrderID возвращает платёж по идентификатору заказа в шлюзе.
func (s *Storage) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	const op = "storage.GetPaymentByOrderID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id = $1`, orderID)
	p, err := scanPayment(row)
	if err != nil {
		return nil, notFound(op, err)
	}
	return p, nil
}

// LockPaymentByOrderID читает платёж с блокировкой строки до конца транзакции.
func (s *Storage) LockPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	const op = "storage.LockPaymentByOrderID"
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id = $1 FOR UPDATE`, orderID)
	p, err := scanPayment(row)
	if err != nil {
		return nil, notFound(op, err)
	}
	return p, nil
}

// SetPaymentStatus выставляет терминальный статус платежа, если он ещё pending.
// Возвращает false, если статус уже был выставлен ранее.
func (s *Storage) SetPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) (bool, error) {
	const op = "storage.SetPaymentStatus"
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE payments SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id, string(status))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// LinkPaymentSubscription связывает платёж с подпиской, которую он создал или продлил.
func (s *Storage) LinkPaymentSubscription(ctx context.Context, paymentID, subscriptionID int64) error {
	const op = "storage.LinkPaymentSubscription"
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE payments SET subscription_id = $2, updated_at = now()
		WHERE id = $1 AND subscription_id IS NULL`, paymentID, subscriptionID)
	return affectedOne(op, res, err)
}

// ListPaymentsByUser возвращает платежи пользователя, новые первыми.
func (s *Storage) ListPaymentsByUser(ctx context.Context, userID string, limit int) ([]models.Payment, error) {
	const op = "storage.ListPaymentsByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
