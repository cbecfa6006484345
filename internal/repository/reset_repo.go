package repository

import (
	"time"

	"gorm.io/gorm"

	"balancestudio/internal/models"
)

type ResetRepository struct {
	db *gorm.DB
}

func NewResetRepository(db *gorm.DB) *ResetRepository {
	return &ResetRepository{db: db}
}

func (r *ResetRepository) Create(token *models.PasswordResetToken) error {
	return r.db.Create(token).Error
}

func (r *ResetRepository) FindActiveByHash(hash string) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	err := r.db.
		Where("token_hash = ? AND used = ? AND expires_at > ?", hash, false, time.Now()).
		First(&token).Error
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *ResetRepository) MarkUsed(id uint) error {
	return r.db.Model(&models.PasswordResetToken{}).Where("id = ?", id).Update("used", true).Error
}
