package models

import (
	"fmt"
	"time"
)

// SubscriptionStatus хранимый статус подписки. Фактическое истечение определяется по EndDate.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription запись о подписке. Текущей считается последняя созданная запись пользователя.
type Subscription struct {
	ID        int64
	UserID    string
	Plan      string
	Status    SubscriptionStatus
	StartDate time.Time
	EndDate   time.Time
	AutoRenew bool
	CreatedAt time.Time
}

// IsActiveAt сверяет хранимый статус с текущим временем.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	return s.Status == SubscriptionActive && s.EndDate.After(now)
}

// ExpiringSubscription подписка, срок которой скоро закончится, вместе с владельцем.
type ExpiringSubscription struct {
	SubscriptionID int64     `json:"subscription_id"`
	UserID         string    `json:"user_id"`
	TelegramID     int64     `json:"telegram_id"`
	Plan           string    `json:"plan"`
	EndDate        time.Time `json:"end_date"`
}

// ProvisioningName имя пользователя в панели для Telegram ID.
func ProvisioningName(telegramID int64) string {
	return fmt.Sprintf("tg_%d", telegramID)
}
