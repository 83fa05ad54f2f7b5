package commissions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/pkg/db/models"
)

// Repository defines persistence operations for the commission ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.CommissionEntry) error
	HasEntryForLine(ctx context.Context, orderItemID uuid.UUID) (bool, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CommissionEntry, error)
	ListBySeller(ctx context.Context, sellerUserID uuid.UUID) ([]models.CommissionEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a commissions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.CommissionEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) HasEntryForLine(ctx context.Context, orderItemID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CommissionEntry{}).
		Where("order_item_id = ?", orderItemID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CommissionEntry, error) {
	var entries []models.CommissionEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListBySeller(ctx context.Context, sellerUserID uuid.UUID) ([]models.CommissionEntry, error) {
	var entries []models.CommissionEntry
	err := r.db.WithContext(ctx).
		Where("seller_user_id = ?", sellerUserID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
