package models

import (
	"time"
)

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusConverted ReferralStatus = "converted"
)

// ReferralLink ties a referred account to the account whose code it registered with.
// An account can be referred at most once: ReferredID is unique.
// Status and CreditsAwarded only ever change together, pending/false -> converted/true.
type ReferralLink struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	ReferrerID     string         `gorm:"size:36;not null;index:idx_referral_links_referrer_status" json:"referrer_id"`
	ReferredID     string         `gorm:"size:36;not null;uniqueIndex" json:"referred_id"`
	Status         ReferralStatus `gorm:"size:20;not null;default:'pending';index:idx_referral_links_referrer_status" json:"status"`
	CreditsAwarded bool           `gorm:"not null;default:false;index" json:"credits_awarded"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	Referred *Account `gorm:"foreignKey:ReferredID" json:"referred,omitempty"`
}

func (ReferralLink) TableName() string { return "referral_links" }
