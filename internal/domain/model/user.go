package model

import "time"

// User пользователь бота, привязанный к аккаунту бэкенда через APIToken
type User struct {
	ID               int       `json:"id"`
	TelegramID       int64     `json:"telegram_id"`
	TelegramUsername string    `json:"telegram_username"`
	APIToken         *string   `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasToken сообщает, привязан ли пользователь к бэкенду
func (u *User) HasToken() bool {
	return u != nil && u.APIToken != nil && *u.APIToken != ""
}
