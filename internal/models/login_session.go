package models

import "time"

// LoginSessionStatus статус deep-link сессии.
type LoginSessionStatus string

const (
	LoginSessionPending  LoginSessionStatus = "pending"
	LoginSessionApproved LoginSessionStatus = "approved"
	LoginSessionExpired  LoginSessionStatus = "expired"
)

// LoginSession мост между созданием deep-link, подтверждением в боте и опросом клиента.
type LoginSession struct {
	Token      string
	Status     LoginSessionStatus
	TelegramID *int64
	UserID     *string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// IsExpiredAt сообщает, истёк ли срок сессии к моменту now.
func (s *LoginSession) IsExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
