// Package models содержит доменные структуры сервиса: пользователя Telegram,
// сессию deep-link входа, подписку и платёж.
package models

import "time"

// User представляет пользователя, привязанного к Telegram-аккаунту.
type User struct {
	ID                string    // Внутренний идентификатор (UUID)
	TelegramID        int64     // Внешний идентификатор Telegram, уникальный и неизменяемый
	Username          string    // Обновляется при каждом входе
	FirstName         string    // Обновляется при каждом входе
	LastName          string    // Обновляется при каждом входе
	PhotoURL          string    // Обновляется при каждом входе
	Balance           int64     // Баланс в копейках, меняется только реферальным бонусом
	ReferrerID        *string   // Пригласивший пользователь, задаётся один раз при создании
	ReferralBonusPaid bool      // Бонус за первую оплату уже начислен пригласившему
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Profile отображаемые поля пользователя, приходящие из подтверждённого claim.
type Profile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	PhotoURL   string
}

// PublicUser проекция пользователя, которую видит клиент.
type PublicUser struct {
	ID         string `json:"id"`
	TelegramID int64  `json:"telegramId"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	PhotoURL   string `json:"photoUrl"`
	IsNewUser  bool   `json:"isNewUser"`
}

// Public возвращает публичную проекцию пользователя.
func (u *User) Public(isNew bool) PublicUser {
	return PublicUser{
		ID:         u.ID,
		TelegramID: u.TelegramID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		PhotoURL:   u.PhotoURL,
		IsNewUser:  isNew,
	}
}

// ProvisioningName имя пользователя в панели выдачи доступа.
func (u *User) ProvisioningName() string {
	return ProvisioningName(u.TelegramID)
}
