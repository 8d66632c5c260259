package repository

import (
	"context"

	"refbook/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Create persists a new pending referral link. A second link for the same referred
// account fails with gorm.ErrDuplicatedKey.
func (r *ReferralRepository) Create(ctx context.Context, link *models.ReferralLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	link.Status = models.ReferralStatusPending
	link.CreditsAwarded = false
	return r.db.WithContext(ctx).Create(link).Error
}

// GetByReferredID returns the link for an account that was referred by someone.
// Returns gorm.ErrRecordNotFound if the account was not referred.
func (r *ReferralRepository) GetByReferredID(ctx context.Context, referredID string) (*models.ReferralLink, error) {
	var link models.ReferralLink
	err := r.db.WithContext(ctx).Where("referred_id = ?", referredID).First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// ClaimCredit atomically marks the link converted and credited, only if it has not
// been credited yet. Exactly one caller per link ever gets true.
func (r *ReferralRepository) ClaimCredit(ctx context.Context, linkID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ReferralLink{}).
		Where("id = ? AND credits_awarded = ?", linkID, false).
		Updates(map[string]interface{}{
			"status":          models.ReferralStatusConverted,
			"credits_awarded": true,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReferralCounts is a point-in-time tally of a referrer's links.
type ReferralCounts struct {
	Total     int64
	Converted int64
}

func (r *ReferralRepository) CountByReferrer(ctx context.Context, referrerID string) (ReferralCounts, error) {
	var rows []struct {
		Status models.ReferralStatus
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&models.ReferralLink{}).
		Select("status, COUNT(*) AS n").
		Where("referrer_id = ?", referrerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return ReferralCounts{}, err
	}
	var c ReferralCounts
	for _, row := range rows {
		c.Total += row.N
		if row.Status == models.ReferralStatusConverted {
			c.Converted += row.N
		}
	}
	return c, nil
}

// ListByReferrerID returns the links created by the given referrer, with the referred
// account preloaded, newest first.
func (r *ReferralRepository) ListByReferrerID(ctx context.Context, referrerID string, limit, offset int) ([]models.ReferralLink, error) {
	var list []models.ReferralLink
	err := r.db.WithContext(ctx).Where("referrer_id = ?", referrerID).
		Preload("Referred").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

// ListStuck returns uncredited links whose referred account has already claimed its
// first purchase. These can only be left behind by an interrupted submission or a
// failed credit claim, and need out-of-band repair.
func (r *ReferralRepository) ListStuck(ctx context.Context, limit int) ([]models.ReferralLink, error) {
	var list []models.ReferralLink
	err := r.db.WithContext(ctx).
		Joins("JOIN accounts ON accounts.id = referral_links.referred_id").
		Where("referral_links.credits_awarded = ? AND accounts.has_purchased = ?", false, true).
		Order("referral_links.created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
