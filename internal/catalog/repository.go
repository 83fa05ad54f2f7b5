package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/pkg/db/models"
)

// Repository defines persistence operations for catalog rows and their
// provider mirror ids.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProductByID(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	FindPriceByID(ctx context.Context, priceID uuid.UUID) (*models.Price, error)
	SetProviderProductID(ctx context.Context, productID uuid.UUID, providerID *string) error
	SetProviderPriceID(ctx context.Context, priceID uuid.UUID, providerID *string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProductByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindPriceByID(ctx context.Context, priceID uuid.UUID) (*models.Price, error) {
	var price models.Price
	err := r.db.WithContext(ctx).
		Where("id = ?", priceID).
		First(&price).Error
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *repository) SetProviderProductID(ctx context.Context, productID uuid.UUID, providerID *string) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("provider_product_id", providerID).Error
}

func (r *repository) SetProviderPriceID(ctx context.Context, priceID uuid.UUID, providerID *string) error {
	return r.db.WithContext(ctx).
		Model(&models.Price{}).
		Where("id = ?", priceID).
		Update("provider_price_id", providerID).Error
}
