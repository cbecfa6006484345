package repository

import (
	"gorm.io/gorm"

	"balancestudio/internal/ledger"
	"balancestudio/internal/models"
)

type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

var _ ledger.SettlementHistory = (*SettlementRepository)(nil)

func (r *SettlementRepository) Create(rec *models.FriendSettlement) error {
	return r.db.Create(rec).Error
}

func (r *SettlementRepository) ListBetween(userID, friendID uint) ([]models.FriendSettlement, error) {
	var recs []models.FriendSettlement
	err := r.db.
		Where("(initiator_id = ? AND counterparty_id = ?) OR (initiator_id = ? AND counterparty_id = ?)",
			userID, friendID, friendID, userID).
		Order("created_at ASC, id ASC").
		Find(&recs).Error
	return recs, err
}

// ListForUser returns settlements the user was involved in, newest first,
// with both profiles loaded.
func (r *SettlementRepository) ListForUser(userID uint, limit int) ([]models.FriendSettlement, error) {
	var recs []models.FriendSettlement
	err := r.db.Preload("Initiator").Preload("Counterparty").
		Where("initiator_id = ? OR counterparty_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
