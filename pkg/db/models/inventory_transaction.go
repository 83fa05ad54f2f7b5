package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mvickers/tradepost-backend/pkg/enums"
)

// InventoryTransaction is one append-only stock movement. Rows are never
// updated or deleted; QtyAfter = QtyBefore + Qty holds for every row.
type InventoryTransaction struct {
	ID          uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID                      `gorm:"column:product_id;type:uuid;not null;index"`
	Type        enums.InventoryTransactionType `gorm:"column:type;type:inventory_transaction_type;not null"`
	Qty         int                            `gorm:"column:qty;not null"`
	QtyBefore   int                            `gorm:"column:qty_before;not null"`
	QtyAfter    int                            `gorm:"column:qty_after;not null"`
	Notes       *string                        `gorm:"column:notes"`
	OrderID     *uuid.UUID                     `gorm:"column:order_id;type:uuid;index"`
	ActorUserID *uuid.UUID                     `gorm:"column:actor_user_id;type:uuid"`
	CreatedAt   time.Time                      `gorm:"column:created_at;autoCreateTime"`
}
