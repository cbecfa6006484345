package models

import (
	"time"
)

// FriendSettlement is an immutable record of money settled between two
// friends for one group. Direction is always from the initiator's point of
// view and Amount is always positive; records are never updated or deleted.
type FriendSettlement struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	InitiatorID    uint      `gorm:"not null;index" json:"initiator_id"`
	CounterpartyID uint      `gorm:"not null;index" json:"counterparty_id"`
	GroupSlug      string    `gorm:"size:160;not null" json:"group_slug"`
	GroupLabel     string    `gorm:"size:255;not null" json:"group_label"`
	Direction      string    `gorm:"size:10;not null" json:"direction"` // owes_you | you_owe
	Amount         float64   `gorm:"not null" json:"amount"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`

	Initiator    User `gorm:"foreignKey:InitiatorID" json:"-"`
	Counterparty User `gorm:"foreignKey:CounterpartyID" json:"-"`
}

func (FriendSettlement) TableName() string {
	return "friend_settlements"
}
