package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/pkg/db/models"
	"github.com/mvickers/tradepost-backend/pkg/enums"
	"github.com/mvickers/tradepost-backend/pkg/logger"
	"github.com/mvickers/tradepost-backend/pkg/outbox"
	"github.com/mvickers/tradepost-backend/pkg/outbox/idempotency"
	"github.com/mvickers/tradepost-backend/pkg/outbox/payloads"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubDiscounts struct {
	granted    int
	grantCalls int
	grantErr   error
	settles    int
	settleErr  error
}

func (s *stubDiscounts) GrantPurchasedDiscounts(context.Context, uuid.UUID) (int, error) {
	s.grantCalls++
	return s.granted, s.grantErr
}

func (s *stubDiscounts) SettleAppliedDiscounts(context.Context, uuid.UUID) error {
	s.settles++
	return s.settleErr
}

type stubCommissions struct {
	calls int
	err   error
}

func (s *stubCommissions) RecordForOrder(context.Context, uuid.UUID) (int, error) {
	s.calls++
	return 1, s.err
}

type stubOrderLoader struct {
	order *models.Order
}

func (s *stubOrderLoader) FindByID(context.Context, uuid.UUID) (*models.Order, error) {
	if s.order == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

type inventoryCall struct {
	op        string
	productID uuid.UUID
	qty       int
}

type stubInventory struct {
	calls      []inventoryCall
	fulfillErr error
}

func (s *stubInventory) Release(_ context.Context, _ *gorm.DB, orderID uuid.UUID) error {
	s.calls = append(s.calls, inventoryCall{op: "release"})
	return nil
}

func (s *stubInventory) Fulfill(_ context.Context, _ *gorm.DB, orderID uuid.UUID) error {
	s.calls = append(s.calls, inventoryCall{op: "fulfill"})
	return s.fulfillErr
}

func (s *stubInventory) RecordReturn(_ context.Context, _ *gorm.DB, productID uuid.UUID, qty int, _ uuid.UUID) error {
	s.calls = append(s.calls, inventoryCall{op: "return", productID: productID, qty: qty})
	return nil
}

// markingStore remembers idempotency marks so redelivery tests exercise
// the real skip behavior.
type markingStore struct {
	marked map[string]bool
}

func newMarkingStore() *markingStore {
	return &markingStore{marked: map[string]bool{}}
}

func (m *markingStore) Get(context.Context, string) (string, error) { return "", nil }

func (m *markingStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m.marked[key] {
		return false, nil
	}
	m.marked[key] = true
	return true, nil
}

func (m *markingStore) IdempotencyKey(scope, id string) string {
	return "tp:idempotency:" + scope + ":" + id
}

func (m *markingStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.marked, key)
	}
	return nil
}

type fixture struct {
	dispatcher  *Dispatcher
	outbox      *stubOutbox
	discounts   *stubDiscounts
	commissions *stubCommissions
	orders      *stubOrderLoader
	inventory   *stubInventory
	store       *markingStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		outbox:      &stubOutbox{},
		discounts:   &stubDiscounts{},
		commissions: &stubCommissions{},
		orders:      &stubOrderLoader{},
		inventory:   &stubInventory{},
		store:       newMarkingStore(),
	}
	manager, err := idempotency.NewManager(f.store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	f.dispatcher, err = NewDispatcher(DispatcherParams{
		TransactionRunner: stubTxRunner{},
		Outbox:            f.outbox,
		Discounts:         f.discounts,
		Commissions:       f.commissions,
		Orders:            f.orders,
		Inventory:         f.inventory,
		Subscription:      &pubsub.Subscriber{},
		Idempotency:       manager,
		Logger:            logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return f
}

func buildMessage(t *testing.T, eventType enums.OutboxEventType, eventID uuid.UUID, payload payloads.OrderStatusChangedEvent) *pubsub.Message {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:         "m-1",
		Attributes: map[string]string{"event_type": string(eventType)},
		Data:       envelope,
	}
}

func TestOrderSucceededRunsAllHandlers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.discounts.granted = 2
	userID := uuid.New()
	orderID := uuid.New()

	msg := buildMessage(t, enums.EventOrderSucceeded, uuid.New(), payloads.OrderStatusChangedEvent{
		OrderID: orderID,
		UserID:  &userID,
		Status:  enums.OrderStatusSucceeded,
	})
	result := f.dispatcher.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if f.discounts.grantCalls != 1 || f.discounts.settles != 1 {
		t.Fatalf("expected grant and settle, got %d/%d", f.discounts.grantCalls, f.discounts.settles)
	}
	if f.commissions.calls != 1 {
		t.Fatalf("expected commissions recorded, got %d", f.commissions.calls)
	}
	if len(f.inventory.calls) != 1 || f.inventory.calls[0].op != "fulfill" {
		t.Fatalf("expected fulfill, got %+v", f.inventory.calls)
	}

	// One discount-granted notification plus the order-succeeded one.
	if len(f.outbox.events) != 2 {
		t.Fatalf("expected 2 notification events, got %d", len(f.outbox.events))
	}
	for _, event := range f.outbox.events {
		if event.EventType != enums.EventNotificationRequested {
			t.Fatalf("unexpected event type %s", event.EventType)
		}
	}
}

func TestOrderSucceededRedeliveryOnlyRetriesFailedHandler(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.inventory.fulfillErr = errors.New("lock timeout")
	userID := uuid.New()
	eventID := uuid.New()

	payload := payloads.OrderStatusChangedEvent{
		OrderID: uuid.New(),
		UserID:  &userID,
		Status:  enums.OrderStatusSucceeded,
	}
	result := f.dispatcher.process(context.Background(), buildMessage(t, enums.EventOrderSucceeded, eventID, payload))
	if !result.nack {
		t.Fatalf("expected nack on handler failure, got %+v", result)
	}
	if f.commissions.calls != 1 {
		t.Fatalf("expected commissions recorded once, got %d", f.commissions.calls)
	}

	f.inventory.fulfillErr = nil
	result = f.dispatcher.process(context.Background(), buildMessage(t, enums.EventOrderSucceeded, eventID, payload))
	if !result.ack || result.nack {
		t.Fatalf("expected ack on redelivery, got %+v", result)
	}
	if f.commissions.calls != 1 {
		t.Fatalf("expected commissions skipped on redelivery, got %d", f.commissions.calls)
	}
	if f.discounts.grantCalls != 1 {
		t.Fatalf("expected grant skipped on redelivery, got %d", f.discounts.grantCalls)
	}
	fulfills := 0
	for _, call := range f.inventory.calls {
		if call.op == "fulfill" {
			fulfills++
		}
	}
	if fulfills != 2 {
		t.Fatalf("expected fulfill retried, got %d attempts", fulfills)
	}
}

func TestOrderCancelledReleasesInventory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()

	msg := buildMessage(t, enums.EventOrderCancelled, uuid.New(), payloads.OrderStatusChangedEvent{
		OrderID: uuid.New(),
		UserID:  &userID,
		Status:  enums.OrderStatusCancelled,
	})
	result := f.dispatcher.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(f.inventory.calls) != 1 || f.inventory.calls[0].op != "release" {
		t.Fatalf("expected release, got %+v", f.inventory.calls)
	}
	if len(f.outbox.events) != 1 {
		t.Fatalf("expected cancellation notification, got %d", len(f.outbox.events))
	}
}

func TestOrderRefundedRestocksItems(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	orderID := uuid.New()
	productID := uuid.New()
	f.orders.order = &models.Order{
		ID: orderID,
		Items: []models.OrderItem{
			{ID: uuid.New(), OrderID: orderID, ProductID: &productID, Qty: 2},
			{ID: uuid.New(), OrderID: orderID, Qty: 1},
		},
	}

	msg := buildMessage(t, enums.EventOrderRefunded, uuid.New(), payloads.OrderStatusChangedEvent{
		OrderID: orderID,
		UserID:  &userID,
		Status:  enums.OrderStatusRefunded,
	})
	result := f.dispatcher.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack, got %+v", result)
	}

	returns := 0
	for _, call := range f.inventory.calls {
		if call.op == "return" {
			returns++
			if call.productID != productID || call.qty != 2 {
				t.Fatalf("unexpected return %+v", call)
			}
		}
	}
	if returns != 1 {
		t.Fatalf("expected one return for the tracked line, got %d", returns)
	}
}

func TestGuestOrderSkipsNotification(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	msg := buildMessage(t, enums.EventOrderPending, uuid.New(), payloads.OrderStatusChangedEvent{
		OrderID: uuid.New(),
		Status:  enums.OrderStatusPending,
	})
	result := f.dispatcher.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(f.outbox.events) != 0 {
		t.Fatalf("expected no notifications for guest order, got %d", len(f.outbox.events))
	}
}

func TestUnrelatedEventAcked(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	msg := &pubsub.Message{
		ID:         "m-2",
		Attributes: map[string]string{"event_type": "payout_processed"},
		Data:       []byte("{}"),
	}
	result := f.dispatcher.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack, got %+v", result)
	}
}
