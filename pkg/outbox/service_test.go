package outbox

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/mvickers/tradepost-backend/pkg/db/models"
	"github.com/mvickers/tradepost-backend/pkg/enums"
	"github.com/mvickers/tradepost-backend/pkg/logger"
)

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	service := NewService(NewRepository(db), logg)

	orderID := uuid.New()
	err := service.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data:          map[string]any{"orderId": orderID.String()},
		Version:       1,
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	var row models.OutboxEvent
	if err := db.First(&row, "aggregate_id = ?", orderID).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.EventType != enums.EventOrderCreated {
		t.Fatalf("unexpected event type %q", row.EventType)
	}

	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Version != 1 {
		t.Fatalf("expected envelope version 1, got %d", envelope.Version)
	}
	if _, err := uuid.Parse(envelope.EventID); err != nil {
		t.Fatalf("expected a uuid event id, got %q", envelope.EventID)
	}
	if envelope.OccurredAt.IsZero() {
		t.Fatalf("expected occurredAt to be stamped")
	}

	var data map[string]string
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["orderId"] != orderID.String() {
		t.Fatalf("unexpected data %v", data)
	}
}

func TestEmitIfNotExistsSkipsDuplicate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	service := NewService(NewRepository(db), logg)

	event := DomainEvent{
		EventType:     enums.EventOrderSucceeded,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          map[string]string{"k": "v"},
		Version:       1,
	}

	if err := service.EmitIfNotExists(context.Background(), db, event); err != nil {
		t.Fatalf("first emit: %v", err)
	}
	if err := service.EmitIfNotExists(context.Background(), db, event); err != nil {
		t.Fatalf("second emit: %v", err)
	}

	var count int64
	if err := db.Model(&models.OutboxEvent{}).Where("aggregate_id = ?", event.AggregateID).Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single row, got %d", count)
	}
}

func TestEmitRequiresTransaction(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	service := NewService(NewRepository(db), logg)

	if err := service.Emit(context.Background(), nil, DomainEvent{}); err == nil {
		t.Fatalf("expected an error for a nil transaction")
	}
}
