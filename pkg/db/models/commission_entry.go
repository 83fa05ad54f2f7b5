package models

import (
	"time"

	"github.com/google/uuid"
)

// CommissionEntry records an immutable seller commission tied to one
// order line. Append-only.
type CommissionEntry struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	OrderItemID  uuid.UUID `gorm:"column:order_item_id;type:uuid;not null;uniqueIndex"`
	SellerUserID uuid.UUID `gorm:"column:seller_user_id;type:uuid;not null;index"`
	AmountCents  int       `gorm:"column:amount_cents;not null"`
	Rate         string    `gorm:"column:rate;type:numeric(6,4);not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
