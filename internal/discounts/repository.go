package discounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/pkg/db/models"
)

// Repository defines persistence operations for discounts and the
// order/discount pivot.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, discount *models.Discount) (*models.Discount, error)
	CreateBatch(ctx context.Context, discounts []models.Discount) error
	FindByID(ctx context.Context, discountID uuid.UUID) (*models.Discount, error)
	FindByCode(ctx context.Context, code string) (*models.Discount, error)
	Update(ctx context.Context, discountID uuid.UUID, updates map[string]any) error
	ListTemplatesByProduct(ctx context.Context, productID uuid.UUID) ([]models.Discount, error)
	CountGrantedByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	ListPivotsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderDiscount, error)
	UpdatePivot(ctx context.Context, pivotID uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a discounts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, discount *models.Discount) (*models.Discount, error) {
	if err := r.db.WithContext(ctx).Create(discount).Error; err != nil {
		return nil, err
	}
	return discount, nil
}

func (r *repository) CreateBatch(ctx context.Context, discounts []models.Discount) error {
	if len(discounts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&discounts).Error
}

func (r *repository) FindByID(ctx context.Context, discountID uuid.UUID) (*models.Discount, error) {
	var discount models.Discount
	err := r.db.WithContext(ctx).Where("id = ?", discountID).First(&discount).Error
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	var discount models.Discount
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&discount).Error
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

func (r *repository) Update(ctx context.Context, discountID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Discount{}).
		Where("id = ?", discountID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListTemplatesByProduct(ctx context.Context, productID uuid.UUID) ([]models.Discount, error) {
	var templates []models.Discount
	err := r.db.WithContext(ctx).
		Where("user_id IS NULL AND product_id = ?", productID).
		Order("created_at ASC").
		Find(&templates).Error
	if err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *repository) CountGrantedByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Discount{}).
		Where("granted_by_order_id = ?", orderID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) ListPivotsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderDiscount, error) {
	var pivots []models.OrderDiscount
	err := r.db.WithContext(ctx).
		Preload("Discount").
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&pivots).Error
	if err != nil {
		return nil, err
	}
	return pivots, nil
}

func (r *repository) UpdatePivot(ctx context.Context, pivotID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.OrderDiscount{}).
		Where("id = ?", pivotID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
