package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/pkg/db/models"
	"github.com/mvickers/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mvickers/tradepost-backend/pkg/errors"
	"github.com/mvickers/tradepost-backend/pkg/outbox"
	"github.com/mvickers/tradepost-backend/pkg/outbox/payloads"
)

type stubOrdersRepo struct {
	order   *models.Order
	updates map[string]any
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.order = order
	return order, nil
}

func (s *stubOrdersRepo) CreateItems(ctx context.Context, items []models.OrderItem) error {
	return nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubOrdersRepo) FindByProviderSessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) FindByProviderPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	if s.order == nil || s.order.ID != orderID {
		return gorm.ErrRecordNotFound
	}
	s.updates = updates
	if status, ok := updates["status"].(enums.OrderStatus); ok {
		s.order.Status = status
	}
	if paid, ok := updates["amount_paid_cents"].(int); ok {
		s.order.AmountPaidCents = paid
	}
	return nil
}

func (s *stubOrdersRepo) NextOrderNumber(ctx context.Context) (int64, error) {
	return 1, nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func TestSetStatusEmitsSingleStatusEvent(t *testing.T) {
	orderID := uuid.New()
	userID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:          orderID,
			Status:      enums.OrderStatusProcessing,
			AmountCents: 2500,
			Currency:    enums.CurrencyUSD,
			UserID:      &userID,
		},
	}
	sink := &stubOutboxPublisher{}
	svc, err := NewService(repo, stubTxRunner{}, sink)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}

	err = svc.SetStatus(context.Background(), orderID, enums.OrderStatusSucceeded, SetStatusInput{
		Emit:        EmitEvents,
		ActorUserID: &userID,
		ActorRole:   "system",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.order.Status != enums.OrderStatusSucceeded {
		t.Fatalf("expected status succeeded got %s", repo.order.Status)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected exactly one event got %d", len(sink.events))
	}
	event := sink.events[0]
	if event.EventType != enums.EventOrderSucceeded {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	payload, ok := event.Data.(payloads.OrderStatusChangedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", event.Data)
	}
	if payload.PreviousStatus != enums.OrderStatusProcessing {
		t.Fatalf("unexpected previous status %s", payload.PreviousStatus)
	}
	if payload.AmountPaidCents != 2500 {
		t.Fatalf("expected amount paid to default to order total, got %d", payload.AmountPaidCents)
	}
}

func TestSetStatusSucceededRecordsAmountPaid(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:          orderID,
			Status:      enums.OrderStatusPending,
			AmountCents: 5000,
			Currency:    enums.CurrencyUSD,
		},
	}
	sink := &stubOutboxPublisher{}
	svc, _ := NewService(repo, stubTxRunner{}, sink)

	err := svc.SetStatus(context.Background(), orderID, enums.OrderStatusSucceeded, SetStatusInput{
		Emit:            EmitEvents,
		AmountPaidCents: 4200,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.order.AmountPaidCents != 4200 {
		t.Fatalf("expected amount paid 4200 got %d", repo.order.AmountPaidCents)
	}
}

func TestSetStatusAmountPaidUntouchedOutsideSucceeded(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:          orderID,
			Status:      enums.OrderStatusPending,
			AmountCents: 5000,
		},
	}
	sink := &stubOutboxPublisher{}
	svc, _ := NewService(repo, stubTxRunner{}, sink)

	err := svc.SetStatus(context.Background(), orderID, enums.OrderStatusProcessing, SetStatusInput{
		Emit:            EmitEvents,
		AmountPaidCents: 4200,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if _, ok := repo.updates["amount_paid_cents"]; ok {
		t.Fatal("amount_paid_cents must only be written on the succeeded transition")
	}
}

func TestSetStatusNoOpWhenUnchanged(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:     orderID,
			Status: enums.OrderStatusProcessing,
		},
	}
	sink := &stubOutboxPublisher{}
	svc, _ := NewService(repo, stubTxRunner{}, sink)

	err := svc.SetStatus(context.Background(), orderID, enums.OrderStatusProcessing, SetStatusInput{Emit: EmitEvents})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.updates != nil {
		t.Fatalf("unexpected write %v", repo.updates)
	}
	if len(sink.events) != 0 {
		t.Fatalf("unexpected events %d", len(sink.events))
	}
}

func TestSetStatusSuppressEvents(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:     orderID,
			Status: enums.OrderStatusPending,
		},
	}
	sink := &stubOutboxPublisher{}
	svc, _ := NewService(repo, stubTxRunner{}, sink)

	err := svc.SetStatus(context.Background(), orderID, enums.OrderStatusCancelled, SetStatusInput{Emit: SuppressEvents})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.order.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected status cancelled got %s", repo.order.Status)
	}
	if len(sink.events) != 0 {
		t.Fatalf("unexpected events %d", len(sink.events))
	}
}

func TestSetStatusTerminalStateRejected(t *testing.T) {
	for _, status := range []enums.OrderStatus{enums.OrderStatusRefunded, enums.OrderStatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			orderID := uuid.New()
			repo := &stubOrdersRepo{
				order: &models.Order{
					ID:     orderID,
					Status: status,
				},
			}
			sink := &stubOutboxPublisher{}
			svc, _ := NewService(repo, stubTxRunner{}, sink)

			err := svc.SetStatus(context.Background(), orderID, enums.OrderStatusProcessing, SetStatusInput{Emit: EmitEvents})
			if err == nil {
				t.Fatal("expected error")
			}
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
				t.Fatalf("unexpected error %v", err)
			}
			if len(sink.events) != 0 {
				t.Fatalf("unexpected events %d", len(sink.events))
			}
		})
	}
}

func TestSetStatusRefundedRecordsReason(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:     orderID,
			Status: enums.OrderStatusSucceeded,
		},
	}
	sink := &stubOutboxPublisher{}
	svc, _ := NewService(repo, stubTxRunner{}, sink)

	err := svc.SetStatus(context.Background(), orderID, enums.OrderStatusRefunded, SetStatusInput{
		Emit:   EmitEvents,
		Reason: "customer request",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.updates["refund_reason"] != "customer request" {
		t.Fatalf("expected refund reason write got %v", repo.updates)
	}
	if len(sink.events) != 1 || sink.events[0].EventType != enums.EventOrderRefunded {
		t.Fatalf("expected order_refunded event got %v", sink.events)
	}
}

func TestUpdateNotesAllowedOnTerminalOrder(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:     orderID,
			Status: enums.OrderStatusCancelled,
		},
	}
	sink := &stubOutboxPublisher{}
	svc, _ := NewService(repo, stubTxRunner{}, sink)

	if err := svc.UpdateNotes(context.Background(), orderID, "buyer contacted support"); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.updates["notes"] != "buyer contacted support" {
		t.Fatalf("expected notes write got %v", repo.updates)
	}
	if len(sink.events) != 0 {
		t.Fatalf("unexpected events %d", len(sink.events))
	}
}

func TestSetStatusUnknownOrder(t *testing.T) {
	repo := &stubOrdersRepo{}
	sink := &stubOutboxPublisher{}
	svc, _ := NewService(repo, stubTxRunner{}, sink)

	err := svc.SetStatus(context.Background(), uuid.New(), enums.OrderStatusProcessing, SetStatusInput{Emit: EmitEvents})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSetStatusInvalidStatus(t *testing.T) {
	repo := &stubOrdersRepo{}
	svc, _ := NewService(repo, stubTxRunner{}, &stubOutboxPublisher{})

	err := svc.SetStatus(context.Background(), uuid.New(), enums.OrderStatus("mystery"), SetStatusInput{Emit: EmitEvents})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
}
