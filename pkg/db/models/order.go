package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mvickers/tradepost-backend/pkg/enums"
)

// Order represents one purchase attempt. Status is mutated only by the
// checkout flow, the provider webhook handler, and admin refund/cancel
// actions; effect handlers react to status, they never set it.
type Order struct {
	ID                      uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber             int64             `gorm:"column:order_number;not null"`
	Status                  enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	AmountCents             int               `gorm:"column:amount_cents;not null"`
	AmountPaidCents         int               `gorm:"column:amount_paid_cents;not null;default:0"`
	Currency                enums.Currency    `gorm:"column:currency;type:text;not null;default:'USD'"`
	RefundReason            *string           `gorm:"column:refund_reason"`
	Notes                   *string           `gorm:"column:notes"`
	ProviderSessionID       *string           `gorm:"column:provider_session_id"`
	ProviderPaymentIntentID *string           `gorm:"column:provider_payment_intent_id"`
	UserID                  *uuid.UUID        `gorm:"column:user_id;type:uuid"`
	Items                   []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Discounts               []OrderDiscount   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt               time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
