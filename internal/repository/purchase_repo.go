package repository

import (
	"context"

	"refbook/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseRepository is the append-only purchase log.
type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) Create(ctx context.Context, p *models.PurchaseEvent) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PurchaseRepository) ListByAccount(ctx context.Context, accountID string) ([]models.PurchaseEvent, error) {
	var list []models.PurchaseEvent
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}
