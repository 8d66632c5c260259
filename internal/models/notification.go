package models

import (
	"time"
)

// Notification is an inbox entry for an account. Data holds a JSON object.
type Notification struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	AccountID string     `gorm:"size:36;not null;index" json:"account_id"`
	Type      string     `gorm:"size:50;not null;index" json:"type"`
	Title     string     `gorm:"size:255" json:"title"`
	Body      string     `gorm:"type:text" json:"body"`
	Data      string     `gorm:"type:text" json:"data"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
