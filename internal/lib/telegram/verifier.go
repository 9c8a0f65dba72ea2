// Package telegram проверяет подлинность данных входа через Telegram:
// виджет авторизации, initData мини-приложения и доверенный claim от собственного бота.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SentinelHash значение hash, которым доверенный бот помечает созданного им пользователя.
const SentinelHash = "bot_created_user"

const (
	maxAuthAge     = 86400 * time.Second
	maxFutureSkew  = 300 * time.Second
	webAppKeyLabel = "WebAppData"
)

var (
	ErrMissingBotToken      = errors.New("telegram bot token is not configured")
	ErrSentinelInProduction = errors.New("bot sentinel cannot be enabled in production")
	ErrInvalidFormat        = errors.New("invalid telegram auth payload")
	ErrInvalidSignature     = errors.New("invalid telegram signature")
	ErrStale                = errors.New("telegram auth data is too old")
	ErrFutureDated          = errors.New("telegram auth data is from the future")
	ErrInvalidInitData      = errors.New("invalid mini app init data")
)

// Mode способ, которым claim был подтверждён.
type Mode string

const (
	ModeWidget     Mode = "widget"
	ModeMiniApp    Mode = "mini_app"
	ModeBotCreated Mode = "bot_sentinel"
)

// Claim подтверждённые данные пользователя Telegram.
type Claim struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	PhotoURL   string
	AuthDate   time.Time
	Mode       Mode
	// ReferrerTelegramID приходит из start_param мини-приложения.
	ReferrerTelegramID *int64
}

// Options параметры проверки, собираемые из конфига при старте.
type Options struct {
	BotToken         string
	AllowBotSentinel bool
	Production       bool
	Now              func() time.Time
}

// Verifier проверяет claim'ы одним токеном бота. Безопасен для конкурентного использования.
type Verifier struct {
	widgetKey   []byte
	webAppKey   []byte
	allowBotKey bool
	now         func() time.Time
}

// NewVerifier создаёт Verifier. Обход подписи в боевом окружении отвергается здесь, а не в местах вызова.
func NewVerifier(opts Options) (*Verifier, error) {
	const op = "telegram.NewVerifier"
	if opts.BotToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingBotToken)
	}
	if opts.Production && opts.AllowBotSentinel {
		return nil, fmt.Errorf("%s: %w", op, ErrSentinelInProduction)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	widgetKey := sha256.Sum256([]byte(opts.BotToken))

	return &Verifier{
		widgetKey:   widgetKey[:],
		webAppKey:   sign([]byte(webAppKeyLabel), []byte(opts.BotToken)),
		allowBotKey: opts.AllowBotSentinel,
		now:         opts.Now,
	}, nil
}

// SentinelAllowed сообщает, принимает ли верификатор claim'ы доверенного бота.
func (v *Verifier) SentinelAllowed() bool {
	return v.allowBotKey
}

// VerifyWidget проверяет данные виджета авторизации. Пустая строка считается значением и входит в подпись.
// Claim доверенного бота здесь не принимается никогда, для него есть VerifyBotClaim.
func (v *Verifier) VerifyWidget(fields map[string]string) (*Claim, error) {
	const op = "telegram.VerifyWidget"

	claim, hash, err := parseWidget(fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if hash == SentinelHash {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	pairs := make(map[string]string, len(fields))
	for k, val := range fields {
		if k == "hash" {
			continue
		}
		pairs[k] = val
	}
	expected := hex.EncodeToString(sign(v.widgetKey, []byte(checkString(pairs))))
	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	age := v.now().Sub(claim.AuthDate)
	if age > maxAuthAge {
		return nil, fmt.Errorf("%s: %w", op, ErrStale)
	}
	if age < -maxFutureSkew {
		return nil, fmt.Errorf("%s: %w", op, ErrFutureDated)
	}
	return claim, nil
}

// VerifyBotClaim принимает claim с hash == SentinelHash без подписи и окна свежести.
// Вызывается только для запросов, уже прошедших проверку ключа бота.
func (v *Verifier) VerifyBotClaim(fields map[string]string) (*Claim, error) {
	const op = "telegram.VerifyBotClaim"

	claim, hash, err := parseWidget(fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !v.allowBotKey || hash != SentinelHash {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}
	claim.Mode = ModeBotCreated
	return claim, nil
}

// parseWidget достаёт обязательные id, auth_date, hash и профиль из полей виджета.
func parseWidget(fields map[string]string) (*Claim, string, error) {
	idStr, hash, authDateStr := fields["id"], fields["hash"], fields["auth_date"]
	if idStr == "" || hash == "" || authDateStr == "" {
		return nil, "", ErrInvalidFormat
	}
	telegramID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, "", ErrInvalidFormat
	}
	authDate, err := strconv.ParseInt(authDateStr, 10, 64)
	if err != nil {
		return nil, "", ErrInvalidFormat
	}

	return &Claim{
		TelegramID: telegramID,
		Username:   fields["username"],
		FirstName:  fields["first_name"],
		LastName:   fields["last_name"],
		PhotoURL:   fields["photo_url"],
		AuthDate:   time.Unix(authDate, 0),
		Mode:       ModeWidget,
	}, hash, nil
}

// checkString собирает строку проверки: пары key=value в порядке ключей через перевод строки.
func checkString(pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(pairs[k])
	}
	return b.String()
}

func sign(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}
