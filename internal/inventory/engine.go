package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mvickers/tradepost-backend/pkg/db/models"
	"github.com/mvickers/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mvickers/tradepost-backend/pkg/errors"
)

// ReservationRequest asks for qty units of one product.
type ReservationRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// ReservationResult reports the outcome for one request line. Reason is
// set only when Reserved is false.
type ReservationResult struct {
	ProductID uuid.UUID
	Qty       int
	Reserved  bool
	Reason    string
}

// Reserve moves stock from available to reserved for each request line,
// appending a reservation ledger row per success. The count mutation and
// its ledger row share the caller's transaction. Lines that cannot be
// covered come back with Reserved false; the call itself only errors on
// invalid input or storage failure.
func Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, requests []ReservationRequest) ([]ReservationResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reservation")
	}
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
		}
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation product id required")
		}
	}

	results := make([]ReservationResult, len(requests))
	for i, req := range requests {
		results[i] = ReservationResult{ProductID: req.ProductID, Qty: req.Qty}

		item, err := lockItem(ctx, tx, req.ProductID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				results[i].Reason = "no inventory record"
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory row")
		}
		if item.AvailableQty < req.Qty {
			results[i].Reason = "insufficient stock"
			continue
		}

		before := item.AvailableQty
		item.AvailableQty -= req.Qty
		item.ReservedQty += req.Qty
		if err := saveCounts(ctx, tx, item); err != nil {
			return nil, err
		}
		if err := appendLedger(ctx, tx, models.InventoryTransaction{
			ProductID: req.ProductID,
			Type:      enums.InventoryTransactionReservation,
			Qty:       -req.Qty,
			QtyBefore: before,
			QtyAfter:  item.AvailableQty,
			OrderID:   &orderID,
		}); err != nil {
			return nil, err
		}
		results[i].Reserved = true
	}
	return results, nil
}

// Release returns still-reserved stock for an order that never completed.
// Only quantities the ledger shows as reserved and not yet released or
// fulfilled are returned, so repeated calls net to zero.
func Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}
	outstanding, err := outstandingByProduct(ctx, tx, orderID)
	if err != nil {
		return err
	}
	for productID, qty := range outstanding {
		if qty <= 0 {
			continue
		}
		item, err := lockItem(ctx, tx, productID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory row")
		}
		if qty > item.ReservedQty {
			qty = item.ReservedQty
		}
		if qty <= 0 {
			continue
		}

		before := item.AvailableQty
		item.AvailableQty += qty
		item.ReservedQty -= qty
		if err := saveCounts(ctx, tx, item); err != nil {
			return err
		}
		if err := appendLedger(ctx, tx, models.InventoryTransaction{
			ProductID: productID,
			Type:      enums.InventoryTransactionRelease,
			Qty:       qty,
			QtyBefore: before,
			QtyAfter:  item.AvailableQty,
			OrderID:   &orderID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Fulfill converts an order's outstanding reservations into permanent
// deductions. Availability already dropped at reservation time, so the
// ledger row carries a zero delta; only reserved_qty moves. Products
// that already have a fulfillment row for the order are skipped.
func Fulfill(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory fulfillment")
	}
	outstanding, err := outstandingByProduct(ctx, tx, orderID)
	if err != nil {
		return err
	}
	for productID, qty := range outstanding {
		if qty <= 0 {
			continue
		}
		item, err := lockItem(ctx, tx, productID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory row")
		}
		if qty > item.ReservedQty {
			qty = item.ReservedQty
		}
		if qty <= 0 {
			continue
		}

		item.ReservedQty -= qty
		if err := saveCounts(ctx, tx, item); err != nil {
			return err
		}
		notes := fmt.Sprintf("fulfilled %d reserved units", qty)
		if err := appendLedger(ctx, tx, models.InventoryTransaction{
			ProductID: productID,
			Type:      enums.InventoryTransactionFulfillment,
			Qty:       0,
			QtyBefore: item.AvailableQty,
			QtyAfter:  item.AvailableQty,
			Notes:     &notes,
			OrderID:   &orderID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// RecordReturn restocks qty units of a product after a refund. The ledger
// is the idempotency record: a product that already has a return row for
// the order is skipped, so redelivered refund events net to zero.
func RecordReturn(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory return")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "return qty must be positive")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "return product id required")
	}

	item, err := lockItem(ctx, tx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory row")
	}

	var returned int64
	err = tx.WithContext(ctx).
		Model(&models.InventoryTransaction{}).
		Where("order_id = ? AND product_id = ? AND type = ?", orderID, productID, enums.InventoryTransactionReturn).
		Count(&returned).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory ledger")
	}
	if returned > 0 {
		return nil
	}

	before := item.AvailableQty
	item.AvailableQty += qty
	if err := saveCounts(ctx, tx, item); err != nil {
		return err
	}
	return appendLedger(ctx, tx, models.InventoryTransaction{
		ProductID: productID,
		Type:      enums.InventoryTransactionReturn,
		Qty:       qty,
		QtyBefore: before,
		QtyAfter:  item.AvailableQty,
		OrderID:   &orderID,
	})
}

// outstandingByProduct derives the not-yet-consumed reserved quantity per
// product from the order's ledger rows. Fulfilled products count as fully
// consumed.
func outstandingByProduct(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (map[uuid.UUID]int, error) {
	var rows []models.InventoryTransaction
	err := tx.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory ledger")
	}

	outstanding := make(map[uuid.UUID]int)
	fulfilled := make(map[uuid.UUID]bool)
	for _, row := range rows {
		switch row.Type {
		case enums.InventoryTransactionReservation:
			outstanding[row.ProductID] += -row.Qty
		case enums.InventoryTransactionRelease:
			outstanding[row.ProductID] -= row.Qty
		case enums.InventoryTransactionFulfillment:
			fulfilled[row.ProductID] = true
		}
	}
	for productID := range fulfilled {
		delete(outstanding, productID)
	}
	return outstanding, nil
}

func lockItem(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := forUpdate(tx).WithContext(ctx).First(&item, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// forUpdate adds a row lock on dialects that support it. SQLite serializes
// writers on the database lock, so no clause is needed there.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector != nil && tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func saveCounts(ctx context.Context, tx *gorm.DB, item *models.InventoryItem) error {
	err := tx.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ?", item.ProductID).
		Updates(map[string]any{
			"available_qty": item.AvailableQty,
			"reserved_qty":  item.ReservedQty,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory counts")
	}
	return nil
}

func appendLedger(ctx context.Context, tx *gorm.DB, row models.InventoryTransaction) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append inventory ledger")
	}
	return nil
}
