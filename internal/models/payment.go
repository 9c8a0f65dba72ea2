package models

import "time"

// PaymentStatus статус платежа; completed и failed терминальные.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// IsTerminal сообщает, что статус больше не меняется.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// Payment платёж пользователя, созданный до перехода на страницу оплаты.
type Payment struct {
	ID             int64
	UserID         string
	Amount         int64 // в минимальных единицах валюты
	Currency       string
	Status         PaymentStatus
	GatewayOrderID string
	Plan           string
	SubscriptionID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
