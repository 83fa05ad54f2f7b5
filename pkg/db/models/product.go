package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the local catalog row mirrored to the payment provider.
type Product struct {
	ID                uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name              string         `gorm:"column:name;not null"`
	Description       *string        `gorm:"column:description"`
	SellerUserID      *uuid.UUID     `gorm:"column:seller_user_id;type:uuid"`
	CommissionRate    string         `gorm:"column:commission_rate;type:numeric(6,4);not null;default:'0'"`
	TrackInventory    bool           `gorm:"column:track_inventory;not null;default:true"`
	ProviderProductID *string        `gorm:"column:provider_product_id"`
	IsActive          bool           `gorm:"column:is_active;not null;default:true"`
	Inventory         *InventoryItem `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Prices            []Price        `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
