// Package jwt выпускает и проверяет пары access/refresh токенов.
//
// Токены подписываются HS256, другие алгоритмы при разборе отвергаются.
// Ошибки разбора сводятся к двум видам: ErrTokenExpired и ErrTokenInvalid.
package jwt

import (
	"errors"
	"fmt"
	"time"
)

// MinSecretLength минимальная длина секрета подписи в байтах.
const MinSecretLength = 32

var (
	// ErrWeakSecret секрет короче MinSecretLength.
	ErrWeakSecret = errors.New("jwt secret is too short")
	// ErrTokenExpired подпись верна, но срок действия истёк.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid токен испорчен, подписан другим ключом или алгоритмом, либо другого типа.
	ErrTokenInvalid = errors.New("token invalid")
)

// Pair пара токенов, которую получает клиент после входа.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // секунды жизни access токена
}

// Maker выпускает и разбирает токены одним секретом.
type Maker struct {
	secretKey  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewMaker создаёт Maker. Слабый секрет отвергается до того, как сервис начнёт выдавать токены.
func NewMaker(secretKey string, accessTTL, refreshTTL time.Duration) (*Maker, error) {
	const op = "jwt.NewMaker"
	if len(secretKey) < MinSecretLength {
		return nil, fmt.Errorf("%s: %w", op, ErrWeakSecret)
	}
	return &Maker{
		secretKey:  []byte(secretKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock подменяет источник времени. Используется в тестах.
func (m *Maker) WithClock(now func() time.Time) *Maker {
	m.now = now
	return m
}

// RefreshTTL время жизни refresh токена.
func (m *Maker) RefreshTTL() time.Duration {
	return m.refreshTTL
}
