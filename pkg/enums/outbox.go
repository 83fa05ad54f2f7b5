package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateDiscount     OutboxAggregateType = "discount"
	AggregateProduct      OutboxAggregateType = "product"
	AggregatePrice        OutboxAggregateType = "price"
	AggregatePayout       OutboxAggregateType = "payout"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateDiscount,
	AggregateProduct,
	AggregatePrice,
	AggregatePayout,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated        OutboxEventType = "order_created"
	EventOrderPending        OutboxEventType = "order_pending"
	EventOrderProcessing     OutboxEventType = "order_processing"
	EventOrderRequiresAction OutboxEventType = "order_requires_action"
	EventOrderSucceeded      OutboxEventType = "order_succeeded"
	EventOrderRefunded       OutboxEventType = "order_refunded"
	EventOrderCancelled      OutboxEventType = "order_cancelled"
	EventOrderFailed         OutboxEventType = "order_failed"

	EventPaymentSucceeded      OutboxEventType = "payment_succeeded"
	EventPaymentActionRequired OutboxEventType = "payment_action_required"
	EventRefundCreated         OutboxEventType = "refund_created"

	EventPriceCreated   OutboxEventType = "price_created"
	EventPriceUpdated   OutboxEventType = "price_updated"
	EventPriceDeleted   OutboxEventType = "price_deleted"
	EventProductCreated OutboxEventType = "product_created"
	EventProductUpdated OutboxEventType = "product_updated"
	EventProductDeleted OutboxEventType = "product_deleted"

	EventPayoutProcessed OutboxEventType = "payout_processed"
	EventPayoutFailed    OutboxEventType = "payout_failed"
	EventPayoutCancelled OutboxEventType = "payout_cancelled"

	EventNotificationRequested OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPending,
	EventOrderProcessing,
	EventOrderRequiresAction,
	EventOrderSucceeded,
	EventOrderRefunded,
	EventOrderCancelled,
	EventOrderFailed,
	EventPaymentSucceeded,
	EventPaymentActionRequired,
	EventRefundCreated,
	EventPriceCreated,
	EventPriceUpdated,
	EventPriceDeleted,
	EventProductCreated,
	EventProductUpdated,
	EventProductDeleted,
	EventPayoutProcessed,
	EventPayoutFailed,
	EventPayoutCancelled,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OrderStatusEvent returns the status-named event emitted when an order
// transitions to the given status.
func OrderStatusEvent(status OrderStatus) (OutboxEventType, bool) {
	switch status {
	case OrderStatusPending:
		return EventOrderPending, true
	case OrderStatusProcessing:
		return EventOrderProcessing, true
	case OrderStatusRequiresAction:
		return EventOrderRequiresAction, true
	case OrderStatusSucceeded:
		return EventOrderSucceeded, true
	case OrderStatusRefunded:
		return EventOrderRefunded, true
	case OrderStatusCancelled:
		return EventOrderCancelled, true
	case OrderStatusFailed:
		return EventOrderFailed, true
	default:
		return "", false
	}
}
