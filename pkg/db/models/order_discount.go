package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderDiscount is the order/discount pivot recording how much of a
// discount was applied and the balance around the application.
type OrderDiscount struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_order_discounts_order_discount"`
	DiscountID         uuid.UUID  `gorm:"column:discount_id;type:uuid;not null;uniqueIndex:ux_order_discounts_order_discount"`
	AmountAppliedCents int        `gorm:"column:amount_applied_cents;not null"`
	BalanceBeforeCents *int       `gorm:"column:balance_before_cents"`
	BalanceAfterCents  *int       `gorm:"column:balance_after_cents"`
	Discount           *Discount  `gorm:"foreignKey:DiscountID"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
