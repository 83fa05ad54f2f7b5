package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/internal/inventory"
	"github.com/mvickers/tradepost-backend/pkg/db/models"
	"github.com/mvickers/tradepost-backend/pkg/enums"
	"github.com/mvickers/tradepost-backend/pkg/logger"
	"github.com/mvickers/tradepost-backend/pkg/outbox"
	"github.com/mvickers/tradepost-backend/pkg/outbox/idempotency"
	"github.com/mvickers/tradepost-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type discountService interface {
	GrantPurchasedDiscounts(ctx context.Context, orderID uuid.UUID) (int, error)
	SettleAppliedDiscounts(ctx context.Context, orderID uuid.UUID) error
}

type commissionService interface {
	RecordForOrder(ctx context.Context, orderID uuid.UUID) (int, error)
}

type orderLoader interface {
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type inventoryRunner interface {
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	Fulfill(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	RecordReturn(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, orderID uuid.UUID) error
}

type inventoryEngine struct{}

func (inventoryEngine) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	return inventory.Release(ctx, tx, orderID)
}

func (inventoryEngine) Fulfill(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	return inventory.Fulfill(ctx, tx, orderID)
}

func (inventoryEngine) RecordReturn(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, orderID uuid.UUID) error {
	return inventory.RecordReturn(ctx, tx, productID, qty, orderID)
}

// Dispatcher fans order status events out to their effect handlers. Each
// handler carries its own idempotency marker, so a redelivered event only
// re-runs the handlers that failed.
type Dispatcher struct {
	tx           txRunner
	outbox       outboxPublisher
	discounts    discountService
	commissions  commissionService
	orders       orderLoader
	inventory    inventoryRunner
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// DispatcherParams collects the dispatcher's collaborators.
type DispatcherParams struct {
	TransactionRunner txRunner
	Outbox            outboxPublisher
	Discounts         discountService
	Commissions       commissionService
	Orders            orderLoader
	Inventory         inventoryRunner
	Subscription      *pubsub.Subscriber
	Idempotency       *idempotency.Manager
	Logger            *logger.Logger
}

// NewDispatcher builds the fan-out dispatcher. A nil Inventory falls back
// to the real engine.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Discounts == nil {
		return nil, fmt.Errorf("discount service required")
	}
	if params.Commissions == nil {
		return nil, fmt.Errorf("commission service required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	engine := params.Inventory
	if engine == nil {
		engine = inventoryEngine{}
	}
	return &Dispatcher{
		tx:           params.TransactionRunner,
		outbox:       params.Outbox,
		discounts:    params.Discounts,
		commissions:  params.Commissions,
		orders:       params.Orders,
		inventory:    engine,
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		logg:         params.Logger,
	}, nil
}

// Run starts the dispatcher loop until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	return d.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := d.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

type handler struct {
	name string
	run  func(ctx context.Context, payload payloads.OrderStatusChangedEvent) error
}

func (d *Dispatcher) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	handlers := d.handlersFor(eventType)
	if len(handlers) == 0 {
		d.logg.Info(logCtx, "skipping unrelated event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		d.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		d.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	var payload payloads.OrderStatusChangedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		d.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	logCtx = d.logg.WithOrderID(logCtx, payload.OrderID.String())

	var failures error
	for _, h := range handlers {
		already, err := d.idempotency.CheckAndMarkProcessed(ctx, h.name, eventID)
		if err != nil {
			failures = multierr.Append(failures, err)
			continue
		}
		if already {
			continue
		}
		if err := h.run(ctx, payload); err != nil {
			handlerCtx := d.logg.WithField(logCtx, "handler", h.name)
			d.logg.Error(handlerCtx, "fan-out handler failed", err)
			_ = d.idempotency.Delete(ctx, h.name, eventID)
			failures = multierr.Append(failures, err)
		}
	}
	if failures != nil {
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (d *Dispatcher) handlersFor(eventType enums.OutboxEventType) []handler {
	switch eventType {
	case enums.EventOrderSucceeded:
		return []handler{
			{name: "fanout-discount-grant", run: d.grantDiscounts},
			{name: "fanout-commissions", run: d.recordCommissions},
			{name: "fanout-discount-settle", run: d.settleDiscounts},
			{name: "fanout-inventory-fulfill", run: d.fulfillInventory},
			{name: "fanout-notify", run: d.notifyPurchaser},
		}
	case enums.EventOrderRefunded:
		return []handler{
			{name: "fanout-inventory-return", run: d.restockReturns},
			{name: "fanout-notify", run: d.notifyPurchaser},
		}
	case enums.EventOrderCancelled:
		return []handler{
			{name: "fanout-inventory-release", run: d.releaseInventory},
			{name: "fanout-notify", run: d.notifyPurchaser},
		}
	case enums.EventOrderPending, enums.EventOrderProcessing:
		return []handler{
			{name: "fanout-notify", run: d.notifyPurchaser},
		}
	default:
		return nil
	}
}

func (d *Dispatcher) grantDiscounts(ctx context.Context, payload payloads.OrderStatusChangedEvent) error {
	granted, err := d.discounts.GrantPurchasedDiscounts(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	if granted == 0 || payload.UserID == nil {
		return nil
	}
	return d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return d.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateNotification,
			AggregateID:   payload.OrderID,
			Data: payloads.NotificationRequestedEvent{
				UserID:  *payload.UserID,
				OrderID: &payload.OrderID,
				Type:    enums.NotificationTypeDiscountGranted,
				Title:   "Discounts unlocked",
				Message: fmt.Sprintf("Your purchase unlocked %d discount codes.", granted),
			},
		})
	})
}

func (d *Dispatcher) recordCommissions(ctx context.Context, payload payloads.OrderStatusChangedEvent) error {
	_, err := d.commissions.RecordForOrder(ctx, payload.OrderID)
	return err
}

func (d *Dispatcher) settleDiscounts(ctx context.Context, payload payloads.OrderStatusChangedEvent) error {
	return d.discounts.SettleAppliedDiscounts(ctx, payload.OrderID)
}

func (d *Dispatcher) fulfillInventory(ctx context.Context, payload payloads.OrderStatusChangedEvent) error {
	return d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return d.inventory.Fulfill(ctx, tx, payload.OrderID)
	})
}

func (d *Dispatcher) releaseInventory(ctx context.Context, payload payloads.OrderStatusChangedEvent) error {
	return d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return d.inventory.Release(ctx, tx, payload.OrderID)
	})
}

func (d *Dispatcher) restockReturns(ctx context.Context, payload payloads.OrderStatusChangedEvent) error {
	order, err := d.orders.FindByID(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	return d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, item := range order.Items {
			if item.ProductID == nil {
				continue
			}
			if err := d.inventory.RecordReturn(ctx, tx, *item.ProductID, item.Qty, order.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Dispatcher) notifyPurchaser(ctx context.Context, payload payloads.OrderStatusChangedEvent) error {
	if payload.UserID == nil {
		return nil
	}
	notificationType, title, message, ok := notificationForStatus(payload.Status)
	if !ok {
		return nil
	}
	return d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return d.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateNotification,
			AggregateID:   payload.OrderID,
			Data: payloads.NotificationRequestedEvent{
				UserID:  *payload.UserID,
				OrderID: &payload.OrderID,
				Type:    notificationType,
				Title:   title,
				Message: message,
			},
		})
	})
}

func notificationForStatus(status enums.OrderStatus) (enums.NotificationType, string, string, bool) {
	switch status {
	case enums.OrderStatusPending:
		return enums.NotificationTypeOrderPending, "Order received", "We received your order and are getting it ready.", true
	case enums.OrderStatusProcessing:
		return enums.NotificationTypeOrderProcessing, "Order processing", "Your payment is being processed.", true
	case enums.OrderStatusSucceeded:
		return enums.NotificationTypeOrderSucceeded, "Order confirmed", "Your payment went through. Thanks for your purchase.", true
	case enums.OrderStatusRefunded:
		return enums.NotificationTypeOrderRefunded, "Order refunded", "Your order was refunded.", true
	case enums.OrderStatusCancelled:
		return enums.NotificationTypeOrderCancelled, "Order cancelled", "Your order was cancelled.", true
	default:
		return "", "", "", false
	}
}
