package models

import (
	"time"
)

// Lifecycle stages of an account with respect to referral crediting.
// They are derived from stored fields, never stored themselves.
const (
	StageNew                  = "NEW"
	StageFirstPurchaseClaimed = "FIRST_PURCHASE_CLAIMED"
	StageCreditResolved       = "CREDIT_RESOLVED"
)

type Account struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Name         string    `gorm:"size:50;not null" json:"name"`
	ReferralCode string    `gorm:"uniqueIndex;size:20;not null" json:"referral_code"`
	ReferredBy   *string   `gorm:"size:36;index" json:"referred_by,omitempty"` // set once at creation
	HasPurchased bool      `gorm:"not null;default:false;index" json:"has_purchased"`
	Credits      int64     `gorm:"not null;default:0" json:"credits"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

// Stage reports the crediting stage given the account's referral link, if any.
// A nil link means the account was not referred.
func (a *Account) Stage(link *ReferralLink) string {
	if !a.HasPurchased {
		return StageNew
	}
	if link == nil || link.CreditsAwarded {
		return StageCreditResolved
	}
	return StageFirstPurchaseClaimed
}
