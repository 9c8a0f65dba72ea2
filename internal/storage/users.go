package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/outcastsdev-svg/outlivion-api/internal/models"
)

const userColumns = `id, telegram_id, username, first_name, last_name, photo_url,
	balance, referrer_id, referral_bonus_paid, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	var (
		u          models.User
		referrerID sql.NullString
	)
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.PhotoURL,
		&u.Balance, &referrerID, &u.ReferralBonusPaid, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if referrerID.Valid {
		u.ReferrerID = &referrerID.String
	}
	return &u, nil
}

// GetUserByTelegramID возвращает пользователя по Telegram ID.
func (s *Storage) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	const op = "storage.GetUserByTelegramID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(op, err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по внутреннему ID.
func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUserByID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(op, err)
	}
	return u, nil
}

// LockUser читает пользователя с блокировкой строки до конца транзакции.
func (s *Storage) LockUser(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.LockUser"
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(op, err)
	}
	return u, nil
}

// InsertUser создаёт пользователя, если пользователя с таким Telegram ID ещё нет.
// created == false означает, что строку вставил кто-то другой.
func (s *Storage) InsertUser(ctx context.Context, u *models.User) (created bool, err error) {
	const op = "storage.InsertUser"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}
	res, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO users (id, telegram_id, username, first_name, last_name, photo_url, referrer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (telegram_id) DO NOTHING`,
		u.ID, u.TelegramID, u.Username, u.FirstName, u.LastName, u.PhotoURL, u.ReferrerID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// UpdateProfile обновляет отображаемые поля и возвращает пользователя.
// Баланс, пригласивший и флаг бонуса не меняются.
func (s *Storage) UpdateProfile(ctx context.Context, p models.Profile) (*models.User, error) {
	const op = "storage.UpdateProfile"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	row := s.conn(ctx).QueryRowContext(ctx, `
		UPDATE users
		SET username = $2, first_name = $3, last_name = $4, photo_url = $5, updated_at = now()
		WHERE telegram_id = $1
		RETURNING `+userColumns,
		p.TelegramID, p.Username, p.FirstName, p.LastName, p.PhotoURL)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(op, err)
	}
	return u, nil
}

// CreditBalance увеличивает баланс пользователя на amount.
func (s *Storage) CreditBalance(ctx context.Context, userID string, amount int64) error {
	const op = "storage.CreditBalance"
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET balance = balance + $2, updated_at = now() WHERE id = $1`, userID, amount)
	return affectedOne(op, res, err)
}

// MarkReferralBonusPaid ставит флаг выплаченного бонуса. Повторная установка не меняет строку.
func (s *Storage) MarkReferralBonusPaid(ctx context.Context, userID string) (bool, error) {
	const op = "storage.MarkReferralBonusPaid"
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE users SET referral_bonus_paid = TRUE, updated_at = now()
		WHERE id = $1 AND referral_bonus_paid = FALSE`, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

func affectedOne(op string, res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
