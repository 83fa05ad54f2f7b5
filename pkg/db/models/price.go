package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mvickers/tradepost-backend/pkg/enums"
)

// Price is a sellable price point of a product, mirrored to the provider.
type Price struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID      `gorm:"column:product_id;type:uuid;not null"`
	AmountCents     int            `gorm:"column:amount_cents;not null"`
	Currency        enums.Currency `gorm:"column:currency;type:text;not null;default:'USD'"`
	ProviderPriceID *string        `gorm:"column:provider_price_id"`
	IsActive        bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
