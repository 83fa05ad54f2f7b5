package payouts

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/pkg/enums"
	"github.com/mvickers/tradepost-backend/pkg/logger"
	"github.com/mvickers/tradepost-backend/pkg/outbox"
	"github.com/mvickers/tradepost-backend/pkg/outbox/idempotency"
	"github.com/mvickers/tradepost-backend/pkg/outbox/payloads"
)

const payoutConsumer = "payout-notifications"

// Consumer turns payout status events into notification requests for the
// seller.
type Consumer struct {
	tx           txRunner
	outbox       outboxPublisher
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

func NewConsumer(tx txRunner, outboxSvc outboxPublisher, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("payouts subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		tx:           tx,
		outbox:       outboxSvc,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
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
		"event_type": eventType,
	})

	switch eventType {
	case enums.EventPayoutProcessed, enums.EventPayoutFailed, enums.EventPayoutCancelled:
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

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, payoutConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload payloads.PayoutStatusEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, payoutConsumer, eventID)
		return processResult{nack: true}
	}

	if err := c.handle(ctx, payload); err != nil {
		c.logg.Error(logCtx, "payout notification failed", err)
		_ = c.idempotency.Delete(ctx, payoutConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, payload payloads.PayoutStatusEvent) error {
	if payload.SellerUserID == uuid.Nil {
		return fmt.Errorf("seller user id missing")
	}

	title, message := payoutNotification(payload)
	return c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateNotification,
			AggregateID:   payload.PayoutID,
			Data: payloads.NotificationRequestedEvent{
				UserID:  payload.SellerUserID,
				Type:    enums.NotificationTypePayoutUpdate,
				Title:   title,
				Message: message,
			},
			Version: 1,
		})
	})
}

func payoutNotification(payload payloads.PayoutStatusEvent) (string, string) {
	amount := fmt.Sprintf("%d.%02d", payload.AmountCents/100, payload.AmountCents%100)
	switch payload.Status {
	case enums.PayoutStatusCompleted:
		return "Payout sent", fmt.Sprintf("Your payout of %s is on its way.", amount)
	case enums.PayoutStatusFailed:
		message := fmt.Sprintf("Your payout of %s failed.", amount)
		if payload.FailureReason != "" {
			message = fmt.Sprintf("Your payout of %s failed: %s.", amount, payload.FailureReason)
		}
		return "Payout failed", message
	case enums.PayoutStatusCancelled:
		return "Payout cancelled", fmt.Sprintf("Your payout of %s was cancelled.", amount)
	default:
		return "Payout update", fmt.Sprintf("Your payout of %s was updated.", amount)
	}
}
