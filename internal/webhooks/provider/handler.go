package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/internal/orders"
	"github.com/mvickers/tradepost-backend/pkg/db/models"
	"github.com/mvickers/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mvickers/tradepost-backend/pkg/errors"
	"github.com/mvickers/tradepost-backend/pkg/logger"
	"github.com/mvickers/tradepost-backend/pkg/outbox/payloads"
)

type orderFinder interface {
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByProviderPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error)
}

type statusSetter interface {
	SetStatus(ctx context.Context, orderID uuid.UUID, newStatus enums.OrderStatus, input orders.SetStatusInput) error
}

// Handler translates provider payment events into order status flips.
// It is the only writer allowed to move orders through payment-driven
// transitions.
type Handler struct {
	finder orderFinder
	status statusSetter
	logg   *logger.Logger
}

// NewHandler builds the payment event handler.
func NewHandler(finder orderFinder, status statusSetter, logg *logger.Logger) (*Handler, error) {
	if finder == nil {
		return nil, fmt.Errorf("order finder required")
	}
	if status == nil {
		return nil, fmt.Errorf("order status setter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Handler{finder: finder, status: status, logg: logg}, nil
}

// HandlePaymentSucceeded flips the order to succeeded, recording the
// captured amount. A payment reported as unsuccessful flips to failed.
func (h *Handler) HandlePaymentSucceeded(ctx context.Context, payload payloads.PaymentStatusEvent) error {
	order, err := h.resolveOrder(ctx, payload.OrderID, payload.PaymentIntentID)
	if err != nil || order == nil {
		return err
	}

	if !payload.Succeeded {
		return h.setStatus(ctx, order.ID, enums.OrderStatusFailed, orders.SetStatusInput{
			Emit:   orders.EmitEvents,
			Reason: "payment failed",
		})
	}
	return h.setStatus(ctx, order.ID, enums.OrderStatusSucceeded, orders.SetStatusInput{
		Emit:            orders.EmitEvents,
		AmountPaidCents: payload.AmountCents,
	})
}

// HandlePaymentActionRequired flips the order to requires_action.
func (h *Handler) HandlePaymentActionRequired(ctx context.Context, payload payloads.PaymentStatusEvent) error {
	order, err := h.resolveOrder(ctx, payload.OrderID, payload.PaymentIntentID)
	if err != nil || order == nil {
		return err
	}
	return h.setStatus(ctx, order.ID, enums.OrderStatusRequiresAction, orders.SetStatusInput{
		Emit: orders.EmitEvents,
	})
}

// HandleRefundCreated flips the order to refunded, carrying the refund
// reason into the order row.
func (h *Handler) HandleRefundCreated(ctx context.Context, payload payloads.RefundCreatedEvent) error {
	if payload.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id missing")
	}
	return h.setStatus(ctx, payload.OrderID, enums.OrderStatusRefunded, orders.SetStatusInput{
		Emit:   orders.EmitEvents,
		Reason: payload.Reason,
	})
}

// setStatus treats a state conflict as terminal: the order has already
// moved somewhere the event cannot apply, so retrying will never help.
func (h *Handler) setStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, input orders.SetStatusInput) error {
	err := h.status.SetStatus(ctx, orderID, status, input)
	if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		logCtx := h.logg.WithFields(ctx, map[string]any{
			"order_id": orderID.String(),
			"status":   string(status),
		})
		h.logg.Warn(logCtx, "payment event ignored for terminal order")
		return nil
	}
	return err
}

// resolveOrder prefers the explicit order id and falls back to the
// provider payment intent. A missing order drops the event; webhooks can
// outlive the rows they reference.
func (h *Handler) resolveOrder(ctx context.Context, orderID uuid.UUID, paymentIntentID string) (*models.Order, error) {
	var (
		order *models.Order
		err   error
	)
	switch {
	case orderID != uuid.Nil:
		order, err = h.finder.FindByID(ctx, orderID)
	case paymentIntentID != "":
		order, err = h.finder.FindByProviderPaymentIntentID(ctx, paymentIntentID)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment event carries no order reference")
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logCtx := h.logg.WithFields(ctx, map[string]any{
			"order_id":          orderID.String(),
			"payment_intent_id": paymentIntentID,
		})
		h.logg.Warn(logCtx, "payment event references unknown order")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}
