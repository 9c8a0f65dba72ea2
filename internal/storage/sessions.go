package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/outcastsdev-svg/outlivion-api/internal/models"
)

// CreateLoginSession сохраняет новую сессию в статусе pending.
func (s *Storage) CreateLoginSession(ctx context.Context, token string, expiresAt time.Time) error {
	const op = "storage.CreateLoginSession"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO login_sessions (token, status, expires_at) VALUES ($1, 'pending', $2)`,
		token, expiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetLoginSession возвращает сессию по токену.
func (s *Storage) GetLoginSession(ctx context.Context, token string) (*models.LoginSession, error) {
	const op = "storage.GetLoginSession"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	var (
		ls         models.LoginSession
		status     string
		telegramID sql.NullInt64
		userID     sql.NullString
	)
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT token, status, telegram_id, user_id, expires_at, created_at
		FROM login_sessions WHERE token = $1`, token).
		Scan(&ls.Token, &status, &telegramID, &userID, &ls.ExpiresAt, &ls.CreatedAt)
	if err != nil {
		return nil, notFound(op, err)
	}
	ls.Status = models.LoginSessionStatus(status)
	if telegramID.Valid {
		ls.TelegramID = &telegramID.Int64
	}
	if userID.Valid {
		ls.UserID = &userID.String
	}
	return &ls, nil
}

// ApproveLoginSession переводит сессию pending -> approved, если она ещё не истекла к now.
// Возвращает false, если подходящей сессии нет: её уже подтвердили, она истекла или не существует.
func (s *Storage) ApproveLoginSession(ctx context.Context, token string, telegramID int64, userID string, now time.Time) (bool, error) {
	const op = "storage.ApproveLoginSession"
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE login_sessions
		SET status = 'approved', telegram_id = $2, user_id = $3
		WHERE token = $1 AND status = 'pending' AND expires_at > $4`,
		token, telegramID, userID, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// ExpireLoginSession помечает ожидающую сессию истёкшей. Подтверждённые сессии не трогает.
func (s *Storage) ExpireLoginSession(ctx context.Context, token string) error {
	const op = "storage.ExpireLoginSession"
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE login_sessions SET status = 'expired' WHERE token = $1 AND status = 'pending'`, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteLoginSessionsBefore удаляет сессии, созданные раньше cutoff, независимо от статуса.
func (s *Storage) DeleteLoginSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "storage.DeleteLoginSessionsBefore"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM login_sessions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
