package models

import (
	"time"
)

type FriendInvite struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	InviterID     uint       `gorm:"not null;index" json:"inviter_id"`
	InviteeUserID *uint      `gorm:"index" json:"invitee_user_id"` // nil until the invitee has an account
	InviteeEmail  string     `gorm:"size:255;not null;index" json:"invitee_email"`
	Note          string     `gorm:"size:255" json:"note"`
	Status        string     `gorm:"size:10;not null;default:'pending';index" json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	RespondedAt   *time.Time `json:"responded_at"`

	Inviter User `gorm:"foreignKey:InviterID" json:"-"`
}

func (FriendInvite) TableName() string {
	return "friend_invites"
}
