package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/internal/inventory"
	"github.com/mvickers/tradepost-backend/internal/orders"
	"github.com/mvickers/tradepost-backend/internal/payments"
	"github.com/mvickers/tradepost-backend/pkg/db/models"
	"github.com/mvickers/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mvickers/tradepost-backend/pkg/errors"
	"github.com/mvickers/tradepost-backend/pkg/outbox"
	"github.com/mvickers/tradepost-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type catalogLoader interface {
	FindPriceByID(ctx context.Context, priceID uuid.UUID) (*models.Price, error)
	FindProductByID(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, requests []inventory.ReservationRequest) ([]inventory.ReservationResult, error)
}

type statusSetter interface {
	SetStatus(ctx context.Context, orderID uuid.UUID, newStatus enums.OrderStatus, input orders.SetStatusInput) error
}

type driverSource interface {
	Driver(ctx context.Context, name string) payments.Driver
}

type reservationEngine struct{}

func (reservationEngine) Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, requests []inventory.ReservationRequest) ([]inventory.ReservationResult, error) {
	return inventory.Reserve(ctx, tx, orderID, requests)
}

// LineInput selects a price point and a quantity.
type LineInput struct {
	PriceID uuid.UUID
	Qty     int
}

// CheckoutInput captures the buyer's cart at the moment of checkout.
type CheckoutInput struct {
	UserID     *uuid.UUID
	Items      []LineInput
	SuccessURL string
	CancelURL  string
}

// Service executes checkout orchestration. Stock is reserved inside the
// order creation transaction, so exhaustion rolls everything back before
// any payment is captured.
type Service interface {
	Execute(ctx context.Context, input CheckoutInput) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) error
}

type service struct {
	tx          txRunner
	ordersRepo  orders.Repository
	orderStatus statusSetter
	catalog     catalogLoader
	reservation reservationRunner
	drivers     driverSource
	driverName  string
	outbox      outboxPublisher
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	ordersRepo orders.Repository,
	orderStatus statusSetter,
	catalog catalogLoader,
	reservation reservationRunner,
	drivers driverSource,
	driverName string,
	publisher outboxPublisher,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if orderStatus == nil {
		return nil, fmt.Errorf("order status setter required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	if reservation == nil {
		reservation = reservationEngine{}
	}
	if drivers == nil {
		return nil, fmt.Errorf("driver source required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:          tx,
		ordersRepo:  ordersRepo,
		orderStatus: orderStatus,
		catalog:     catalog,
		reservation: reservation,
		drivers:     drivers,
		driverName:  driverName,
		outbox:      publisher,
	}, nil
}

func (s *service) Execute(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout requires at least one item")
	}
	for _, line := range input.Items {
		if line.PriceID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price id required")
		}
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
		}
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)

		items, amountCents, currency, err := s.buildItems(ctx, input.Items)
		if err != nil {
			return err
		}

		orderNumber, err := ordersRepo.NextOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		order := &models.Order{
			ID:          uuid.New(),
			OrderNumber: orderNumber,
			Status:      enums.OrderStatusPending,
			AmountCents: amountCents,
			Currency:    currency,
			UserID:      input.UserID,
		}
		if _, err := ordersRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := s.reserveStock(ctx, tx, order.ID, items); err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := ordersRepo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = items

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    time.Now(),
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				UserID:      order.UserID,
				AmountCents: order.AmountCents,
				Currency:    order.Currency,
				ItemCount:   len(items),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The provider call retries with backoff, so it stays outside the
	// transaction to avoid holding inventory row locks while it runs. A
	// failed session cancels the order, which releases the reservation
	// downstream.
	driver := s.drivers.Driver(ctx, s.driverName)
	session := driver.CreateCheckoutSession(ctx, payments.CheckoutParams{
		Order:      result,
		Items:      result.Items,
		SuccessURL: input.SuccessURL,
		CancelURL:  input.CancelURL,
	})
	if session == nil {
		if serr := s.orderStatus.SetStatus(ctx, result.ID, enums.OrderStatusCancelled, orders.SetStatusInput{
			Emit:   orders.EmitEvents,
			Reason: "checkout session unavailable",
		}); serr != nil {
			return nil, serr
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "checkout session unavailable")
	}

	updates := map[string]any{"provider_session_id": session.ID}
	if session.PaymentIntentID != "" {
		updates["provider_payment_intent_id"] = session.PaymentIntentID
	}
	if err := s.ordersRepo.Update(ctx, result.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session reference")
	}
	result.ProviderSessionID = &session.ID
	if session.PaymentIntentID != "" {
		intentID := session.PaymentIntentID
		result.ProviderPaymentIntentID = &intentID
	}
	return result, nil
}

// Cancel closes out an order that never succeeded. The provider is asked
// to void the session (refunding any captured amount) before the local
// status flips; the resulting order_cancelled event releases reserved
// stock downstream.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, reason string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.ordersRepo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal state")
	}
	if order.Status == enums.OrderStatusSucceeded {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "succeeded orders are refunded, not cancelled")
	}

	// An order with nothing captured has nothing to void at the provider,
	// so a driver that cannot reach one never blocks its cancellation.
	driver := s.drivers.Driver(ctx, s.driverName)
	if !driver.CancelOrder(ctx, order) && order.AmountPaidCents > 0 {
		return pkgerrors.New(pkgerrors.CodeDependency, "provider order cancellation failed")
	}

	return s.orderStatus.SetStatus(ctx, order.ID, enums.OrderStatusCancelled, orders.SetStatusInput{
		Emit:   orders.EmitEvents,
		Reason: reason,
	})
}

func (s *service) buildItems(ctx context.Context, lines []LineInput) ([]models.OrderItem, int, enums.Currency, error) {
	items := make([]models.OrderItem, 0, len(lines))
	amountCents := 0
	currency := enums.CurrencyUSD
	productCache := map[uuid.UUID]*models.Product{}

	for _, line := range lines {
		price, err := s.catalog.FindPriceByID(ctx, line.PriceID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, 0, "", pkgerrors.New(pkgerrors.CodeNotFound, "price not found")
			}
			return nil, 0, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price")
		}
		if !price.IsActive {
			return nil, 0, "", pkgerrors.New(pkgerrors.CodeValidation, "price is no longer available")
		}

		product, ok := productCache[price.ProductID]
		if !ok {
			product, err = s.catalog.FindProductByID(ctx, price.ProductID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return nil, 0, "", pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
				}
				return nil, 0, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			productCache[price.ProductID] = product
		}
		if !product.IsActive {
			return nil, 0, "", pkgerrors.New(pkgerrors.CodeValidation, "product is no longer available")
		}

		productID := product.ID
		priceID := price.ID
		total := price.AmountCents * line.Qty
		items = append(items, models.OrderItem{
			ID:             uuid.New(),
			ProductID:      &productID,
			PriceID:        &priceID,
			Name:           product.Name,
			UnitPriceCents: price.AmountCents,
			Qty:            line.Qty,
			TotalCents:     total,
			SellerUserID:   product.SellerUserID,
			CommissionRate: product.CommissionRate,
		})
		amountCents += total
		currency = price.Currency
	}
	return items, amountCents, currency, nil
}

// reserveStock reserves every trackable line. A single uncovered line
// hard-fails the checkout; the enclosing transaction rolls the order and
// any partial reservations back.
func (s *service) reserveStock(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, items []models.OrderItem) error {
	requests := make([]inventory.ReservationRequest, 0, len(items))
	names := map[uuid.UUID]string{}
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		product, err := s.catalog.FindProductByID(ctx, *item.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.TrackInventory {
			continue
		}
		requests = append(requests, inventory.ReservationRequest{ProductID: *item.ProductID, Qty: item.Qty})
		names[*item.ProductID] = item.Name
	}
	if len(requests) == 0 {
		return nil
	}

	results, err := s.reservation.Reserve(ctx, tx, orderID, requests)
	if err != nil {
		return err
	}
	for _, res := range results {
		if !res.Reserved {
			msg := fmt.Sprintf("insufficient stock for %s", names[res.ProductID])
			return pkgerrors.New(pkgerrors.CodeStock, msg)
		}
	}
	return nil
}
