package catalog

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

const catalogConsumer = "catalog-sync"

// Consumer applies catalog sync events to the provider mirror.
type Consumer struct {
	syncer       *Syncer
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the catalog sync consumer.
func NewConsumer(syncer *Syncer, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if syncer == nil {
		return nil, fmt.Errorf("catalog syncer required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("catalog subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{syncer: syncer, subscription: subscription, idempotency: manager, logg: logg}, nil
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

	handler, ok := c.handlerFor(eventType)
	if !ok {
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

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, catalogConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := handler(ctx, envelope.Data); err != nil {
		c.logg.Error(logCtx, "catalog sync failed", err)
		_ = c.idempotency.Delete(ctx, catalogConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handlerFor(eventType enums.OutboxEventType) (func(context.Context, json.RawMessage) error, bool) {
	switch eventType {
	case enums.EventProductCreated:
		return c.productHandler(c.syncer.SyncProductCreated), true
	case enums.EventProductUpdated:
		return c.productHandler(c.syncer.SyncProductUpdated), true
	case enums.EventProductDeleted:
		return c.productHandler(c.syncer.SyncProductDeleted), true
	case enums.EventPriceCreated:
		return c.priceHandler(c.syncer.SyncPriceCreated), true
	case enums.EventPriceUpdated:
		return c.priceHandler(c.syncer.SyncPriceUpdated), true
	case enums.EventPriceDeleted:
		return c.priceHandler(c.syncer.SyncPriceDeleted), true
	default:
		return nil, false
	}
}

func (c *Consumer) productHandler(sync func(context.Context, uuid.UUID) error) func(context.Context, json.RawMessage) error {
	return func(ctx context.Context, data json.RawMessage) error {
		var payload payloads.ProductSyncEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		if payload.ProductID == uuid.Nil {
			return fmt.Errorf("product id missing")
		}
		return sync(ctx, payload.ProductID)
	}
}

func (c *Consumer) priceHandler(sync func(context.Context, uuid.UUID) error) func(context.Context, json.RawMessage) error {
	return func(ctx context.Context, data json.RawMessage) error {
		var payload payloads.PriceSyncEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		if payload.PriceID == uuid.Nil {
			return fmt.Errorf("price id missing")
		}
		return sync(ctx, payload.PriceID)
	}
}
