package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// AccessClaims полезная нагрузка access токена.
type AccessClaims struct {
	TelegramID int64  `json:"tid"`
	Type       string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID идентификатор пользователя из subject.
func (c *AccessClaims) UserID() string { return c.Subject }

// RefreshClaims полезная нагрузка refresh токена. ID (jti) уникален для каждого выпуска.
type RefreshClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID идентификатор пользователя из subject.
func (c *RefreshClaims) UserID() string { return c.Subject }

// IssuePair выпускает новую пару токенов для пользователя.
func (m *Maker) IssuePair(userID string, telegramID int64) (*Pair, error) {
	const op = "jwt.IssuePair"
	now := m.now()

	access := AccessClaims{
		TelegramID: telegramID,
		Type:       typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
	}
	accessStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString(m.secretKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh := RefreshClaims{
		Type: typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.refreshTTL)),
		},
	}
	refreshStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(m.secretKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Pair{
		AccessToken:  accessStr,
		RefreshToken: refreshStr,
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, nil
}

// ParseAccess проверяет access токен и возвращает его claims.
func (m *Maker) ParseAccess(tokenStr string) (*AccessClaims, error) {
	const op = "jwt.ParseAccess"
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if claims.Type != typeAccess || claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
	}
	return claims, nil
}

// ParseRefresh проверяет refresh токен и возвращает его claims.
func (m *Maker) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	const op = "jwt.ParseRefresh"
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if claims.Type != typeRefresh || claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
	}
	return claims, nil
}

func (m *Maker) parse(tokenStr string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return m.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
