package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"balancestudio/internal/ledger"
	"balancestudio/internal/models"
)

// FriendshipRepository persists directional friendship ledgers. Balance
// mutations go through SQL expressions so concurrent expense writes never
// lose updates.
type FriendshipRepository struct {
	db *gorm.DB
}

func NewFriendshipRepository(db *gorm.DB) *FriendshipRepository {
	return &FriendshipRepository{db: db}
}

var _ ledger.FriendshipStore = (*FriendshipRepository)(nil)

func (r *FriendshipRepository) EnsureOrdered(ownerID, friendID uint) error {
	rec := models.Friendship{
		UserID:          ownerID,
		FriendID:        friendID,
		SnapshotVersion: 1,
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}

func (r *FriendshipRepository) Get(ownerID, friendID uint) (*models.Friendship, error) {
	var rec models.Friendship
	err := r.db.Preload("Groups").
		Where("user_id = ? AND friend_id = ?", ownerID, friendID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *FriendshipRepository) ApplyDelta(friendshipID uint, slug, label string, delta float64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Friendship{}).
			Where("id = ?", friendshipID).
			UpdateColumn("balance", gorm.Expr("balance + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		group := models.FriendshipGroup{
			FriendshipID: friendshipID,
			Slug:         slug,
			Label:        label,
			Balance:      delta,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "friendship_id"}, {Name: "slug"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"balance": gorm.Expr("friendship_groups.balance + VALUES(balance)"),
				"label":   gorm.Expr("VALUES(label)"),
			}),
		}).Create(&group).Error
	})
}

func (r *FriendshipRepository) WriteSnapshot(friendshipID uint, entries []ledger.GroupEntry, total float64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("friendship_id = ?", friendshipID).
			Delete(&models.FriendshipGroup{}).Error; err != nil {
			return err
		}
		if len(entries) > 0 {
			rows := make([]models.FriendshipGroup, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, models.FriendshipGroup{
					FriendshipID: friendshipID,
					Slug:         e.Slug,
					Label:        e.Label,
					Balance:      e.Balance,
				})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		updates := map[string]interface{}{"snapshot_version": 1}
		if len(entries) > 0 {
			updates["balance"] = total
		}
		return tx.Model(&models.Friendship{}).
			Where("id = ?", friendshipID).
			UpdateColumns(updates).Error
	})
}

func (r *FriendshipRepository) MarkHydrated(friendshipID uint) error {
	return r.db.Model(&models.Friendship{}).
		Where("id = ? AND snapshot_version < 1", friendshipID).
		UpdateColumn("snapshot_version", 1).Error
}

func (r *FriendshipRepository) ReplaceMirror(friendshipID uint, entries []ledger.GroupEntry, balance float64, version int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("friendship_id = ?", friendshipID).
			Delete(&models.FriendshipGroup{}).Error; err != nil {
			return err
		}
		if len(entries) > 0 {
			rows := make([]models.FriendshipGroup, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, models.FriendshipGroup{
					FriendshipID: friendshipID,
					Slug:         e.Slug,
					Label:        e.Label,
					Balance:      e.Balance,
				})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Friendship{}).
			Where("id = ?", friendshipID).
			UpdateColumns(map[string]interface{}{
				"balance":          balance,
				"snapshot_version": version,
			}).Error
	})
}

func (r *FriendshipRepository) PruneGroups(friendshipID uint, slugs []string) error {
	if len(slugs) == 0 {
		return nil
	}
	return r.db.
		Where("friendship_id = ? AND slug IN ? AND ABS(balance) < 0.01", friendshipID, slugs).
		Delete(&models.FriendshipGroup{}).Error
}

// ListForUser returns every friendship record owned by the user with the
// friend profile and group entries loaded, largest balances first.
func (r *FriendshipRepository) ListForUser(userID uint) ([]models.Friendship, error) {
	var recs []models.Friendship
	err := r.db.Preload("Friend").Preload("Groups").
		Where("user_id = ?", userID).
		Order("ABS(balance) DESC").
		Find(&recs).Error
	return recs, err
}

// AreFriends reports whether a directional record exists between the two.
func (r *FriendshipRepository) AreFriends(userID, friendID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Friendship{}).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		Count(&count).Error
	return count > 0, err
}
