package models

import (
	"time"
)

type Expense struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PayerID     uint      `gorm:"not null;index" json:"payer_id"`
	GroupName   string    `gorm:"size:255" json:"group_name"`
	Note        string    `gorm:"size:255" json:"note"`
	TotalAmount float64   `gorm:"not null" json:"total_amount"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`

	Payer        User                 `gorm:"foreignKey:PayerID" json:"-"`
	Participants []ExpenseParticipant `gorm:"foreignKey:ExpenseID" json:"participants"`
}

func (Expense) TableName() string {
	return "expenses"
}

type ExpenseParticipant struct {
	ID        uint    `gorm:"primaryKey" json:"-"`
	ExpenseID uint    `gorm:"not null;index" json:"-"`
	UserID    uint    `gorm:"not null;index" json:"user_id"`
	Amount    float64 `gorm:"not null" json:"amount"`
	IsPayer   bool    `gorm:"not null;default:false" json:"is_payer"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (ExpenseParticipant) TableName() string {
	return "expense_participants"
}

// Activity is one feed entry describing an expense from one user's point of
// view ("You logged ...", "Alice logged ...").
type Activity struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	ActorID   uint      `gorm:"not null" json:"actor_id"`
	ExpenseID uint      `gorm:"not null;index" json:"expense_id"`
	Summary   string    `gorm:"size:255;not null" json:"summary"`
	Detail    string    `gorm:"size:512" json:"detail"`
	Amount    float64   `json:"amount"`
	Status    string    `gorm:"size:20;not null;default:'posted'" json:"status"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Expense Expense `gorm:"foreignKey:ExpenseID" json:"-"`
}

func (Activity) TableName() string {
	return "activity_entries"
}
