package models

import (
	"time"

	"gorm.io/gorm"
)

type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	ActorID   uint           `gorm:"not null" json:"actor_id"`
	Kind      string         `gorm:"size:50;not null;index" json:"kind"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Body      string         `gorm:"type:text" json:"body"`
	Data      string         `gorm:"type:text" json:"-"` // JSON payload
	IsRead    bool           `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Actor User `gorm:"foreignKey:ActorID" json:"-"`
}

func (Notification) TableName() string {
	return "notifications"
}
