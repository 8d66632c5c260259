package models

import "time"

// PurchaseEvent is written once and never mutated.
type PurchaseEvent struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	AccountID   string    `gorm:"size:36;not null;index" json:"account_id"`
	ProductName string    `gorm:"size:255;not null" json:"product_name"`
	Amount      float64   `gorm:"not null" json:"amount"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (PurchaseEvent) TableName() string { return "purchase_events" }
