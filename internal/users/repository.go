package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/internal/payments"
	"github.com/mvickers/tradepost-backend/pkg/db/models"
)

// Repository reads and mutates user rows, including the cached
// payout-account state the provider driver keeps in sync.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) ByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) ByAccountID(ctx context.Context, accountID string) (*models.User, error) {
	if accountID == "" {
		return nil, errors.New("account id is required")
	}
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "payout_account_id = ?", accountID).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveAccountState writes the full cached snapshot onto the user row in
// one transaction.
func (r *Repository) SaveAccountState(ctx context.Context, userID uuid.UUID, state payments.AccountState) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"payout_account_id":      nullableString(state.AccountID),
			"payout_account_enabled": state.Enabled,
			"payout_onboarded_at":    state.OnboardedAt,
			"payout_capabilities":    nullableString(state.Capabilities),
		}
		result := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SyncAccountState refreshes the cached snapshot for the account, writing
// only when the computed completeness differs from the cached value.
// Capabilities are refreshed on the same write.
func (r *Repository) SyncAccountState(ctx context.Context, accountID string, state payments.AccountState) (bool, error) {
	var changed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "payout_account_id = ?", accountID).Error; err != nil {
			return err
		}
		if user.PayoutAccountEnabled == state.Enabled {
			return nil
		}
		changed = true
		updates := map[string]any{
			"payout_account_enabled": state.Enabled,
			"payout_onboarded_at":    state.OnboardedAt,
			"payout_capabilities":    nullableString(state.Capabilities),
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error
	})
	return changed, err
}

// ClearAccountState wipes all four cached fields atomically.
func (r *Repository) ClearAccountState(ctx context.Context, accountID string) error {
	if accountID == "" {
		return errors.New("account id is required")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"payout_account_id":      nil,
			"payout_account_enabled": false,
			"payout_onboarded_at":    nil,
			"payout_capabilities":    nil,
		}
		return tx.Model(&models.User{}).Where("payout_account_id = ?", accountID).Updates(updates).Error
	})
}

// SetProviderCustomerID caches the provider-side customer handle.
func (r *Repository) SetProviderCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("provider_customer_id", nullableString(customerID)).Error
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
