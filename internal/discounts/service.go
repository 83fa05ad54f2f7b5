package discounts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/pkg/db/models"
	pkgerrors "github.com/mvickers/tradepost-backend/pkg/errors"
	"github.com/mvickers/tradepost-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderLoader interface {
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// Service covers the discount effects of a succeeded order: granting
// purchased gift cards and settling applied discount balances.
type Service interface {
	GrantPurchasedDiscounts(ctx context.Context, orderID uuid.UUID) (int, error)
	SettleAppliedDiscounts(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	repo   Repository
	orders orderLoader
	tx     txRunner
	logg   *logger.Logger
}

// NewService builds a discounts service with the required dependencies.
func NewService(repo Repository, orders orderLoader, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("discounts repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order loader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, orders: orders, tx: tx, logg: logg}, nil
}

// GrantPurchasedDiscounts replicates every template discount bound to a
// purchased product once per unit bought, as activated instances owned by
// the purchaser. Re-delivery is detected through the granting order
// reference, so the grant happens at most once per order. Returns the
// number of instances created.
func (s *service) GrantPurchasedDiscounts(ctx context.Context, orderID uuid.UUID) (int, error) {
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID == nil {
		return 0, nil
	}

	granted := 0
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.CountGrantedByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing grants")
		}
		if existing > 0 {
			return nil
		}

		now := time.Now()
		var instances []models.Discount
		for _, item := range order.Items {
			if item.ProductID == nil || item.Qty <= 0 {
				continue
			}
			templates, err := repo.ListTemplatesByProduct(ctx, *item.ProductID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount templates")
			}
			for _, template := range templates {
				for i := 0; i < item.Qty; i++ {
					activatedAt := now
					instances = append(instances, models.Discount{
						ID:               uuid.New(),
						Type:             template.Type,
						Code:             shortuuid.New(),
						BalanceCents:     template.BalanceCents,
						ActivatedAt:      &activatedAt,
						UserID:           order.UserID,
						ProductID:        template.ProductID,
						GrantedByOrderID: &order.ID,
					})
				}
			}
		}
		if err := repo.CreateBatch(ctx, instances); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create discount instances")
		}
		granted = len(instances)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return granted, nil
}

// SettleAppliedDiscounts decrements each applied discount's balance by the
// pivot's applied amount, floored at zero, and counts one use. Each
// discount settles in its own transaction; a pivot whose balance_after is
// already recorded has settled before and is skipped. Failures are
// aggregated so one bad discount does not block the rest.
func (s *service) SettleAppliedDiscounts(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	pivots, err := s.repo.ListPivotsByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order discounts")
	}

	var errs error
	for _, pivot := range pivots {
		if pivot.BalanceAfterCents != nil {
			continue
		}
		if err := s.settleOne(ctx, pivot); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("settle discount %s: %w", pivot.DiscountID, err))
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"order_id":    orderID.String(),
					"discount_id": pivot.DiscountID.String(),
				})
				s.logg.Error(logCtx, "discount settlement failed", err)
			}
		}
	}
	return errs
}

func (s *service) settleOne(ctx context.Context, pivot models.OrderDiscount) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		discount, err := repo.FindByID(ctx, pivot.DiscountID)
		if err != nil {
			return err
		}

		before := discount.BalanceCents
		after := before - pivot.AmountAppliedCents
		if after < 0 {
			after = 0
		}

		if err := repo.Update(ctx, discount.ID, map[string]any{
			"balance_cents": after,
			"times_used":    discount.TimesUsed + 1,
		}); err != nil {
			return err
		}
		return repo.UpdatePivot(ctx, pivot.ID, map[string]any{
			"balance_before_cents": before,
			"balance_after_cents":  after,
		})
	})
}
