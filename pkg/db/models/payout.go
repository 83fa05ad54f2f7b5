package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mvickers/tradepost-backend/pkg/enums"
)

// Payout records one attempt to move funds to a seller. Status is driven
// exclusively by the payout action layer, never directly by user input.
type Payout struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	SellerUserID     uuid.UUID          `gorm:"column:seller_user_id;type:uuid;not null"`
	AmountCents      int                `gorm:"column:amount_cents;not null"`
	Currency         enums.Currency     `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status           enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'pending'"`
	ExternalPayoutID *string            `gorm:"column:external_payout_id"`
	FailureReason    *string            `gorm:"column:failure_reason"`
	Notes            *string            `gorm:"column:notes"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
