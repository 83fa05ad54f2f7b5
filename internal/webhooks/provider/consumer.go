package provider

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/mvickers/tradepost-backend/pkg/enums"
	"github.com/mvickers/tradepost-backend/pkg/logger"
	"github.com/mvickers/tradepost-backend/pkg/outbox"
	"github.com/mvickers/tradepost-backend/pkg/outbox/idempotency"
	"github.com/mvickers/tradepost-backend/pkg/outbox/payloads"
)

const paymentConsumer = "payment-webhooks"

// Consumer applies payment events from the provider to order state.
type Consumer struct {
	handler      *Handler
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the payment event consumer.
func NewConsumer(handler *Handler, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("payment handler required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("payment subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{handler: handler, subscription: subscription, idempotency: manager, logg: logg}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
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

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	switch eventType {
	case enums.EventPaymentSucceeded, enums.EventPaymentActionRequired, enums.EventRefundCreated:
	default:
		c.logg.Info(logCtx, "skipping unrelated event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, paymentConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.dispatch(ctx, eventType, envelope.Data); err != nil {
		c.logg.Error(logCtx, "payment event failed", err)
		_ = c.idempotency.Delete(ctx, paymentConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) dispatch(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage) error {
	switch eventType {
	case enums.EventPaymentSucceeded:
		var payload payloads.PaymentStatusEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.handler.HandlePaymentSucceeded(ctx, payload)
	case enums.EventPaymentActionRequired:
		var payload payloads.PaymentStatusEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.handler.HandlePaymentActionRequired(ctx, payload)
	case enums.EventRefundCreated:
		var payload payloads.RefundCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.handler.HandleRefundCreated(ctx, payload)
	default:
		return nil
	}
}
