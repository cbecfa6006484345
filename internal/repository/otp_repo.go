package repository

import (
	"time"

	"gorm.io/gorm"

	"balancestudio/internal/models"
)

type OTPRepository struct {
	db *gorm.DB
}

func NewOTPRepository(db *gorm.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

// Create invalidates any earlier codes for the address before storing the
// new one, so only the latest code can verify.
func (r *OTPRepository) Create(otp *models.EmailOTP) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.EmailOTP{}).
			Where("email = ? AND purpose = ? AND used = ?", otp.Email, otp.Purpose, false).
			Update("used", true).Error; err != nil {
			return err
		}
		return tx.Create(otp).Error
	})
}

// FindActive returns the newest unexpired, unused code for the address.
func (r *OTPRepository) FindActive(email, purpose string) (*models.EmailOTP, error) {
	var otp models.EmailOTP
	err := r.db.
		Where("email = ? AND purpose = ? AND used = ? AND expires_at > ?", email, purpose, false, time.Now()).
		Order("created_at DESC").
		First(&otp).Error
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &otp, nil
}

func (r *OTPRepository) MarkUsed(id uint) error {
	return r.db.Model(&models.EmailOTP{}).Where("id = ?", id).Update("used", true).Error
}
