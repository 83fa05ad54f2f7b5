package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/mvickers/tradepost-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order captured at checkout.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID      `json:"order_id"`
	UserID      *uuid.UUID     `json:"user_id,omitempty"`
	AmountCents int            `json:"amount_cents"`
	Currency    enums.Currency `json:"currency"`
	ItemCount   int            `json:"item_count"`
}

// OrderStatusChangedEvent is the payload carried by every status-named
// order event. PreviousStatus lets consumers reason about the transition.
type OrderStatusChangedEvent struct {
	OrderID         uuid.UUID         `json:"order_id"`
	UserID          *uuid.UUID        `json:"user_id,omitempty"`
	Status          enums.OrderStatus `json:"status"`
	PreviousStatus  enums.OrderStatus `json:"previous_status"`
	AmountCents     int               `json:"amount_cents"`
	AmountPaidCents int               `json:"amount_paid_cents"`
	Currency        enums.Currency    `json:"currency"`
	Reason          string            `json:"reason,omitempty"`
}

// PaymentStatusEvent mirrors the provider payment outcome.
type PaymentStatusEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	AmountCents     int       `json:"amount_cents"`
	Succeeded       bool      `json:"succeeded"`
}

// RefundCreatedEvent is emitted when a refund is recorded against an order.
type RefundCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	AmountCents int       `json:"amount_cents"`
	Reason      string    `json:"reason,omitempty"`
	RefundedAt  time.Time `json:"refunded_at"`
}

// ProductSyncEvent drives catalog synchronization with the provider.
type ProductSyncEvent struct {
	ProductID    uuid.UUID `json:"product_id"`
	SellerUserID uuid.UUID `json:"seller_user_id"`
	Name         string    `json:"name,omitempty"`
	Description  string    `json:"description,omitempty"`
}

// PriceSyncEvent drives price synchronization with the provider.
type PriceSyncEvent struct {
	PriceID     uuid.UUID      `json:"price_id"`
	ProductID   uuid.UUID      `json:"product_id"`
	AmountCents int            `json:"amount_cents"`
	Currency    enums.Currency `json:"currency"`
}

// PayoutStatusEvent reports a payout outcome to downstream consumers.
type PayoutStatusEvent struct {
	PayoutID         uuid.UUID          `json:"payout_id"`
	SellerUserID     uuid.UUID          `json:"seller_user_id"`
	AmountCents      int                `json:"amount_cents"`
	Status           enums.PayoutStatus `json:"status"`
	ExternalPayoutID string             `json:"external_payout_id,omitempty"`
	FailureReason    string             `json:"failure_reason,omitempty"`
}

// NotificationRequestedEvent tells the notification consumer to persist an
// in-app notification for a user.
type NotificationRequestedEvent struct {
	UserID  uuid.UUID              `json:"user_id"`
	OrderID *uuid.UUID             `json:"order_id,omitempty"`
	Type    enums.NotificationType `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Link    string                 `json:"link,omitempty"`
}
