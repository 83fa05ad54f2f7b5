package commissions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/pkg/db/models"
	pkgerrors "github.com/mvickers/tradepost-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderLoader interface {
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// Service records seller commissions for succeeded orders. Entries are
// append-only; the per-line unique entry gives handler idempotency.
type Service interface {
	RecordForOrder(ctx context.Context, orderID uuid.UUID) (int, error)
	HasEntryForLine(ctx context.Context, orderItemID uuid.UUID) (bool, error)
	ListBySeller(ctx context.Context, sellerUserID uuid.UUID) ([]models.CommissionEntry, error)
}

type service struct {
	repo   Repository
	orders orderLoader
	tx     txRunner
}

// NewService builds a commissions service with the required dependencies.
func NewService(repo Repository, orders orderLoader, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("commissions repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order loader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, orders: orders, tx: tx}, nil
}

// RecordForOrder appends one commission entry per line that names a
// seller and carries a positive rate. Lines that already have an entry
// are skipped, so re-delivery records nothing twice. Returns the number
// of entries written.
func (s *service) RecordForOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
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

	recorded := 0
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, item := range order.Items {
			if item.SellerUserID == nil {
				continue
			}
			amount, ok, err := commissionAmount(item.CommissionRate, item.TotalCents)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse commission rate")
			}
			if !ok {
				continue
			}

			exists, err := repo.HasEntryForLine(ctx, item.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing entry")
			}
			if exists {
				continue
			}

			entry := &models.CommissionEntry{
				ID:           uuid.New(),
				OrderID:      order.ID,
				OrderItemID:  item.ID,
				SellerUserID: *item.SellerUserID,
				AmountCents:  amount,
				Rate:         item.CommissionRate,
			}
			if err := repo.Create(ctx, entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create commission entry")
			}
			recorded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return recorded, nil
}

func (s *service) HasEntryForLine(ctx context.Context, orderItemID uuid.UUID) (bool, error) {
	if orderItemID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order item id required")
	}
	return s.repo.HasEntryForLine(ctx, orderItemID)
}

func (s *service) ListBySeller(ctx context.Context, sellerUserID uuid.UUID) ([]models.CommissionEntry, error) {
	if sellerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller user id required")
	}
	return s.repo.ListBySeller(ctx, sellerUserID)
}

// commissionAmount computes line_total * rate in cents, rounded to the
// nearest cent. ok is false for zero or negative rates.
func commissionAmount(rate string, totalCents int) (int, bool, error) {
	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return 0, false, err
	}
	if !parsed.IsPositive() {
		return 0, false, nil
	}
	amount := parsed.Mul(decimal.NewFromInt(int64(totalCents))).Round(0)
	return int(amount.IntPart()), true, nil
}
