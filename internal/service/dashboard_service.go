package service

import (
	"context"
	"errors"

	"refbook/internal/models"

	"gorm.io/gorm"
)

// DashboardStats is a point-in-time snapshot; it may lag in-flight purchases.
type DashboardStats struct {
	TotalReferrals     int64  `json:"total_referrals"`
	ConvertedReferrals int64  `json:"converted_referrals"`
	TotalCredits       int64  `json:"total_credits"`
	ReferralCode       string `json:"referral_code"`
	ReferralLink       string `json:"referral_link"`
}

type DashboardService struct {
	accounts  AccountStore
	referrals ReferralStore
}

func NewDashboardService(accounts AccountStore, referrals ReferralStore) *DashboardService {
	return &DashboardService{accounts: accounts, referrals: referrals}
}

func (s *DashboardService) Dashboard(ctx context.Context, accountID string) (*DashboardStats, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	counts, err := s.referrals.CountByReferrer(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &DashboardStats{
		TotalReferrals:     counts.Total,
		ConvertedReferrals: counts.Converted,
		TotalCredits:       a.Credits,
		ReferralCode:       a.ReferralCode,
		ReferralLink:       a.ReferralCode,
	}, nil
}

// Referrals lists the accounts referred by accountID, newest first.
func (s *DashboardService) Referrals(ctx context.Context, accountID string, limit, offset int) ([]models.ReferralLink, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.referrals.ListByReferrerID(ctx, accountID, limit, offset)
}
