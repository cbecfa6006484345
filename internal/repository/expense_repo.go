package repository

import (
	"gorm.io/gorm"

	"balancestudio/internal/ledger"
	"balancestudio/internal/models"
)

type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

var _ ledger.ExpenseHistory = (*ExpenseRepository)(nil)

// Create stores the expense with its participant rows in one transaction.
func (r *ExpenseRepository) Create(expense *models.Expense) error {
	return r.db.Create(expense).Error
}

func (r *ExpenseRepository) FindByID(id uint) (*models.Expense, error) {
	var expense models.Expense
	err := r.db.Preload("Payer").Preload("Participants.User").First(&expense, id).Error
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

// ListBetween returns every expense where one of the two users paid and the
// other took part, oldest first so replay order is stable.
func (r *ExpenseRepository) ListBetween(userID, friendID uint) ([]models.Expense, error) {
	var expenses []models.Expense
	err := r.db.Preload("Participants").
		Joins("JOIN expense_participants ep ON ep.expense_id = expenses.id").
		Where("(expenses.payer_id = ? AND ep.user_id = ?) OR (expenses.payer_id = ? AND ep.user_id = ?)",
			userID, friendID, friendID, userID).
		Group("expenses.id").
		Order("expenses.created_at ASC, expenses.id ASC").
		Find(&expenses).Error
	return expenses, err
}

// ListForUser returns expenses the user paid or participated in, newest
// first.
func (r *ExpenseRepository) ListForUser(userID uint, limit int) ([]models.Expense, error) {
	var expenses []models.Expense
	err := r.db.Preload("Payer").Preload("Participants.User").
		Joins("JOIN expense_participants ep ON ep.expense_id = expenses.id").
		Where("expenses.payer_id = ? OR ep.user_id = ?", userID, userID).
		Group("expenses.id").
		Order("expenses.created_at DESC, expenses.id DESC").
		Limit(limit).
		Find(&expenses).Error
	return expenses, err
}
