package models

import (
	"time"
)

// Friendship is one directional ledger record between two users. Balance is
// signed from the owner's point of view: positive means the friend owes the
// owner. Every pair has two records; the mirror sync keeps them negations of
// each other.
type Friendship struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	UserID   uint    `gorm:"not null;uniqueIndex:idx_friendship_pair" json:"user_id"`
	FriendID uint    `gorm:"not null;uniqueIndex:idx_friendship_pair" json:"friend_id"`
	Balance  float64 `gorm:"not null;default:0" json:"balance"`
	// SnapshotVersion is 0 until the per-group breakdown has been hydrated
	// from history at least once. Records written by older deployments can
	// carry group rows with version 0; those are trusted and repaired in place.
	SnapshotVersion int       `gorm:"not null;default:0" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"-"`

	Friend User              `gorm:"foreignKey:FriendID" json:"-"`
	Groups []FriendshipGroup `gorm:"foreignKey:FriendshipID" json:"-"`
}

func (Friendship) TableName() string {
	return "friendships"
}

// FriendshipGroup is one outstanding per-group balance on a friendship,
// keyed by the slug derived from the group label. An absent row means zero;
// rows are pruned once a settlement brings them within a cent of zero.
type FriendshipGroup struct {
	ID           uint    `gorm:"primaryKey" json:"-"`
	FriendshipID uint    `gorm:"not null;uniqueIndex:idx_friendship_group" json:"-"`
	Slug         string  `gorm:"size:160;not null;uniqueIndex:idx_friendship_group" json:"slug"`
	Label        string  `gorm:"size:255;not null" json:"label"`
	Balance      float64 `gorm:"not null;default:0" json:"balance"`
}

func (FriendshipGroup) TableName() string {
	return "friendship_groups"
}
