package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mvickers/tradepost-backend/pkg/enums"
)

// Discount is a coupon, gift card, or manual credit instance. A row with
// a nil UserID and a non-nil ProductID is a template: it is never
// consumed itself, only replicated per unit purchased.
type Discount struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Type             enums.DiscountType `gorm:"column:type;type:discount_type;not null"`
	Code             string             `gorm:"column:code;not null;uniqueIndex"`
	BalanceCents     int                `gorm:"column:balance_cents;not null;default:0"`
	TimesUsed        int                `gorm:"column:times_used;not null;default:0"`
	ActivatedAt      *time.Time         `gorm:"column:activated_at"`
	UserID           *uuid.UUID         `gorm:"column:user_id;type:uuid"`
	ProductID        *uuid.UUID         `gorm:"column:product_id;type:uuid"`
	GrantedByOrderID *uuid.UUID         `gorm:"column:granted_by_order_id;type:uuid;index"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// IsTemplate reports whether the discount is a product-bound template.
func (d Discount) IsTemplate() bool {
	return d.UserID == nil && d.ProductID != nil
}
