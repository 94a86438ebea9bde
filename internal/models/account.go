package models

import "time"

// Account — владелец устройств. Создаётся при signup, никогда не мёржится.
type Account struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Username     string `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email        string `gorm:"size:255" json:"email,omitempty"`
	PasswordHash []byte `gorm:"not null" json:"-"`

	// AgentToken — долгоживущий токен для агентов (register/heartbeat).
	AgentToken string `gorm:"uniqueIndex;size:64;not null" json:"-"`
}

// Session — браузерная сессия дашборда.
type Session struct {
	ID        uint      `gorm:"primaryKey"`
	Token     string    `gorm:"uniqueIndex;size:64;not null"`
	AccountID uint      `gorm:"index;not null"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index"`
}
