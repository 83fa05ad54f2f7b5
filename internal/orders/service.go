package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mvickers/tradepost-backend/pkg/errors"
	"github.com/mvickers/tradepost-backend/pkg/outbox"
	"github.com/mvickers/tradepost-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// EmitMode controls whether a status change queues its outbox event.
// Backfills and replays suppress emission to avoid re-triggering effects.
type EmitMode string

const (
	EmitEvents     EmitMode = "emit"
	SuppressEvents EmitMode = "suppress"
)

// SetStatusInput carries the contextual metadata for a status transition.
type SetStatusInput struct {
	Emit            EmitMode
	Reason          string
	Notes           *string
	AmountPaidCents int
	ActorUserID     *uuid.UUID
	ActorRole       string
}

// Service mutates order state. Status writes happen in one transaction
// together with their outbox event so the two commit or roll back as a unit.
type Service interface {
	SetStatus(ctx context.Context, orderID uuid.UUID, newStatus enums.OrderStatus, input SetStatusInput) error
	UpdateNotes(ctx context.Context, orderID uuid.UUID, notes string) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox}, nil
}

func (s *service) SetStatus(ctx context.Context, orderID uuid.UUID, newStatus enums.OrderStatus, input SetStatusInput) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !newStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	eventType, ok := enums.OrderStatusEvent(newStatus)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "no event mapped for order status")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.Status == newStatus {
			return nil
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal state")
		}

		previous := order.Status
		updates := map[string]any{"status": newStatus}
		amountPaid := order.AmountPaidCents
		if newStatus == enums.OrderStatusSucceeded {
			amountPaid = input.AmountPaidCents
			if amountPaid <= 0 {
				amountPaid = order.AmountCents
			}
			updates["amount_paid_cents"] = amountPaid
		}
		if newStatus == enums.OrderStatusRefunded && input.Reason != "" {
			updates["refund_reason"] = input.Reason
		}
		if input.Notes != nil {
			updates["notes"] = *input.Notes
		}

		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		if input.Emit == SuppressEvents {
			return nil
		}

		event := outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    time.Now(),
			Actor:         buildActor(input.ActorUserID, input.ActorRole),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:         order.ID,
				UserID:          order.UserID,
				Status:          newStatus,
				PreviousStatus:  previous,
				AmountCents:     order.AmountCents,
				AmountPaidCents: amountPaid,
				Currency:        order.Currency,
				Reason:          input.Reason,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

// UpdateNotes writes the free-form notes column. Allowed in every status,
// terminal orders included.
func (s *service) UpdateNotes(ctx context.Context, orderID uuid.UUID, notes string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, orderID, map[string]any{"notes": notes}); err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order notes")
		}
		return nil
	})
}

func buildActor(userID *uuid.UUID, role string) *outbox.ActorRef {
	if userID == nil {
		return nil
	}
	return &outbox.ActorRef{UserID: *userID, Role: role}
}
