package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/outcastsdev-svg/outlivion-api/internal/models"
)

const subscriptionColumns = `id, user_id, plan, status, start_date, end_date, auto_renew, created_at`

func scanSubscription(row interface{ Scan(dest ...any) error }) (*models.Subscription, error) {
	var (
		sub    models.Subscription
		status string
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.Plan, &status, &sub.StartDate, &sub.EndDate,
		&sub.AutoRenew, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionStatus(status)
	return &sub, nil
}

// LatestSubscription возвращает последнюю созданную подписку пользователя.
func (s *Storage) LatestSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.LatestSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, userID)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, notFound(op, err)
	}
	return sub, nil
}

// LockLatestSubscription как LatestSubscription, но блокирует строку до конца транзакции.
func (s *Storage) LockLatestSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.LockLatestSubscription"
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
		FOR UPDATE`, userID)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, notFound(op, err)
	}
	return sub, nil
}

// CreateSubscription вставляет активную подписку и возвращает её ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub *models.Subscription) (int64, error) {
	const op = "storage.CreateSubscription"
	var id int64
	err := s.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO subscriptions (user_id, plan, status, start_date, end_date, auto_renew, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		sub.UserID, sub.Plan, string(sub.Status), sub.StartDate, sub.EndDate, sub.AutoRenew, sub.StartDate).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ExtendSubscription переносит дату окончания и возвращает подписку в статус active.
func (s *Storage) ExtendSubscription(ctx context.Context, id int64, plan string, endDate time.Time) error {
	const op = "storage.ExtendSubscription"
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE subscriptions SET end_date = $2, plan = $3, status = 'active'
		WHERE id = $1`, id, endDate, plan)
	return affectedOne(op, res, err)
}

// ListOverdueActive возвращает до limit активных подписок, у которых end_date < now.
func (s *Storage) ListOverdueActive(ctx context.Context, now time.Time, limit int) ([]models.ExpiringSubscription, error) {
	const op = "storage.ListOverdueActive"
	return s.listWithOwner(ctx, op, `
		SELECT s.id, s.user_id, u.telegram_id, s.plan, s.end_date
		FROM subscriptions s
		JOIN users u ON u.id = s.user_id
		WHERE s.status = 'active' AND s.end_date < $1
		ORDER BY s.end_date, s.id
		LIMIT $2`, now, limit)
}

// ListExpiringBetween возвращает активные подписки, заканчивающиеся в интервале [from, to).
func (s *Storage) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ExpiringSubscription, error) {
	const op = "storage.ListExpiringBetween"
	return s.listWithOwner(ctx, op, `
		SELECT s.id, s.user_id, u.telegram_id, s.plan, s.end_date
		FROM subscriptions s
		JOIN users u ON u.id = s.user_id
		WHERE s.status = 'active' AND s.end_date >= $1 AND s.end_date < $2
		ORDER BY s.end_date, s.id`, from, to)
}

func (s *Storage) listWithOwner(ctx context.Context, op, query string, args ...any) ([]models.ExpiringSubscription, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []models.ExpiringSubscription
	for rows.Next() {
		var item models.ExpiringSubscription
		if err := rows.Scan(&item.SubscriptionID, &item.UserID, &item.TelegramID, &item.Plan, &item.EndDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkSubscriptionExpired переводит активную подписку в expired.
// Возвращает false, если подписка уже не активна, например её продлили между выборкой и обновлением.
func (s *Storage) MarkSubscriptionExpired(ctx context.Context, id int64, now time.Time) (bool, error) {
	const op = "storage.MarkSubscriptionExpired"
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE subscriptions SET status = 'expired'
		WHERE id = $1 AND status = 'active' AND end_date < $2`, id, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}
