package repository

import (
	"time"

	"gorm.io/gorm"

	"balancestudio/internal/domain"
	"balancestudio/internal/models"
)

type InviteRepository struct {
	db *gorm.DB
}

func NewInviteRepository(db *gorm.DB) *InviteRepository {
	return &InviteRepository{db: db}
}

func (r *InviteRepository) Create(invite *models.FriendInvite) error {
	return r.db.Create(invite).Error
}

func (r *InviteRepository) FindByID(id uint) (*models.FriendInvite, error) {
	var invite models.FriendInvite
	if err := r.db.Preload("Inviter").First(&invite, id).Error; err != nil {
		return nil, err
	}
	return &invite, nil
}

// PendingBetween finds an open invite from inviter to invitee in either
// direction so duplicates can be rejected.
func (r *InviteRepository) PendingBetween(userA, userB uint) (*models.FriendInvite, error) {
	var invite models.FriendInvite
	err := r.db.
		Where("status = ?", domain.InviteStatusPending).
		Where("(inviter_id = ? AND invitee_user_id = ?) OR (inviter_id = ? AND invitee_user_id = ?)",
			userA, userB, userB, userA).
		First(&invite).Error
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *InviteRepository) ListIncoming(userID uint) ([]models.FriendInvite, error) {
	var invites []models.FriendInvite
	err := r.db.Preload("Inviter").
		Where("invitee_user_id = ? AND status = ?", userID, domain.InviteStatusPending).
		Order("created_at DESC").
		Find(&invites).Error
	return invites, err
}

func (r *InviteRepository) ListOutgoing(userID uint) ([]models.FriendInvite, error) {
	var invites []models.FriendInvite
	err := r.db.
		Where("inviter_id = ?", userID).
		Order("created_at DESC").
		Find(&invites).Error
	return invites, err
}

// Resolve marks the invite accepted or rejected, only if still pending.
func (r *InviteRepository) Resolve(id uint, status string) error {
	now := time.Now()
	res := r.db.Model(&models.FriendInvite{}).
		Where("id = ? AND status = ?", id, domain.InviteStatusPending).
		Updates(map[string]interface{}{"status": status, "responded_at": &now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes an invite, used to roll back when the invite email could
// not be delivered.
func (r *InviteRepository) Delete(id uint) error {
	return r.db.Delete(&models.FriendInvite{}, id).Error
}

// ClaimByEmail attaches pending email invites to a newly registered user.
func (r *InviteRepository) ClaimByEmail(email string, userID uint) error {
	return r.db.Model(&models.FriendInvite{}).
		Where("invitee_email = ? AND invitee_user_id IS NULL AND status = ?", email, domain.InviteStatusPending).
		Update("invitee_user_id", userID).Error
}
