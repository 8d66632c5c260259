package service

import (
	"context"

	"refbook/internal/models"
	"refbook/internal/repository"
)

// AccountStore is the account record store. ClaimFirstPurchase and IncrementCredits
// must be single atomic statements at the storage layer.
type AccountStore interface {
	Create(ctx context.Context, a *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByReferralCode(ctx context.Context, code string) (*models.Account, error)
	Delete(ctx context.Context, id string) error
	ClaimFirstPurchase(ctx context.Context, id string) (bool, error)
	IncrementCredits(ctx context.Context, id string, amount int64) error
}

// ReferralStore is the referral link store, keyed uniquely by referred account.
type ReferralStore interface {
	Create(ctx context.Context, link *models.ReferralLink) error
	GetByReferredID(ctx context.Context, referredID string) (*models.ReferralLink, error)
	ClaimCredit(ctx context.Context, linkID string) (bool, error)
	CountByReferrer(ctx context.Context, referrerID string) (repository.ReferralCounts, error)
	ListByReferrerID(ctx context.Context, referrerID string, limit, offset int) ([]models.ReferralLink, error)
	ListStuck(ctx context.Context, limit int) ([]models.ReferralLink, error)
}

// PurchaseLog is insert-only from the engine's point of view.
type PurchaseLog interface {
	Create(ctx context.Context, p *models.PurchaseEvent) error
	ListByAccount(ctx context.Context, accountID string) ([]models.PurchaseEvent, error)
}

type SettingStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// Notifier tells each side of a converted referral about its credit. Delivery is best
// effort and never affects the purchase outcome.
type Notifier interface {
	NotifyCreditAwarded(ctx context.Context, accountID, role string, link *models.ReferralLink, amount int64) error
}

var (
	_ AccountStore  = (*repository.AccountRepository)(nil)
	_ ReferralStore = (*repository.ReferralRepository)(nil)
	_ PurchaseLog   = (*repository.PurchaseRepository)(nil)
	_ SettingStore  = (*repository.SettingRepository)(nil)

	_ NotificationStore = (*repository.NotificationRepository)(nil)
	_ Notifier          = (*NotificationService)(nil)
)
