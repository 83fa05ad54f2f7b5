package models

import (
	"time"

	"github.com/google/uuid"
)

// User carries the identity fields the fulfillment core needs, including
// the cached payout-account state synced from the provider.
type User struct {
	ID                   uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email                string     `gorm:"column:email;not null;uniqueIndex"`
	Name                 string     `gorm:"column:name;not null"`
	PayoutAccountID      *string    `gorm:"column:payout_account_id"`
	PayoutAccountEnabled bool       `gorm:"column:payout_account_enabled;not null;default:false"`
	PayoutOnboardedAt    *time.Time `gorm:"column:payout_onboarded_at"`
	PayoutCapabilities   *string    `gorm:"column:payout_capabilities"`
	ProviderCustomerID   *string    `gorm:"column:provider_customer_id"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
