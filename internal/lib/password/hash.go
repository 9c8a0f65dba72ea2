// Package password хэширует и проверяет секреты доверенных клиентов через bcrypt.
//
// В конфиге хранится только хэш ключа бота, сам ключ приходит в заголовке запроса.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptySecret пустой секрет не хэшируется и не проверяется.
	ErrEmptySecret = errors.New("secret is empty")
	// ErrMismatch секрет не соответствует хэшу.
	ErrMismatch = errors.New("secret does not match hash")
)

// Hash возвращает bcrypt-хэш секрета для записи в конфиг.
func Hash(secret string) (string, error) {
	const op = "password.Hash"
	if secret == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptySecret)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// Verify сверяет присланный секрет с хэшем. Пустой хэш означает, что доступ выключен.
func Verify(hash, secret string) error {
	const op = "password.Verify"
	if hash == "" || secret == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptySecret)
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
