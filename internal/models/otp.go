package models

import (
	"time"
)

// EmailOTP is a short-lived signup verification code. Only the bcrypt hash of
// the code is stored.
type EmailOTP struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Email     string    `gorm:"size:255;not null;index" json:"-"`
	Purpose   string    `gorm:"size:20;not null;default:'signup'" json:"-"`
	CodeHash  string    `gorm:"size:255;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"-"`
	Used      bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt time.Time `json:"-"`
}

func (EmailOTP) TableName() string {
	return "email_otps"
}

type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"not null;index" json:"-"`
	TokenHash string    `gorm:"size:255;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"-"`
	Used      bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt time.Time `json:"-"`
}

func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}
