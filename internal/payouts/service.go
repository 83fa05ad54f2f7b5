package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/internal/payments"
	"github.com/mvickers/tradepost-backend/pkg/db/models"
	"github.com/mvickers/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mvickers/tradepost-backend/pkg/errors"
	"github.com/mvickers/tradepost-backend/pkg/outbox"
	"github.com/mvickers/tradepost-backend/pkg/outbox/payloads"
)

const (
	reasonNoAccount            = "no connected payout account"
	reasonOnboardingIncomplete = "onboarding incomplete"
	reasonProviderRejected     = "provider rejected payout"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type userLoader interface {
	ByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type driverSource interface {
	Driver(ctx context.Context, name string) payments.Driver
}

// CreatePayoutInput carries the data required to start a payout.
type CreatePayoutInput struct {
	SellerUserID uuid.UUID
	AmountCents  int
	Currency     enums.Currency
	ActorUserID  *uuid.UUID
}

// Service drives the payout lifecycle. Precondition failures are business
// outcomes: the payout row is persisted as failed with a readable reason
// and the provider is never called.
type Service interface {
	Create(ctx context.Context, input CreatePayoutInput) (*models.Payout, error)
	Retry(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error)
	Cancel(ctx context.Context, payoutID uuid.UUID) error
	Get(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error)
	ListBySeller(ctx context.Context, sellerUserID uuid.UUID) ([]models.Payout, error)
}

type service struct {
	repo       Repository
	users      userLoader
	drivers    driverSource
	driverName string
	tx         txRunner
	outbox     outboxPublisher
}

// NewService builds a payout service with the required dependencies.
func NewService(repo Repository, users userLoader, drivers driverSource, driverName string, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if drivers == nil {
		return nil, fmt.Errorf("driver source required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:       repo,
		users:      users,
		drivers:    drivers,
		driverName: driverName,
		tx:         tx,
		outbox:     outbox,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreatePayoutInput) (*models.Payout, error) {
	if input.SellerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller user id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}

	payout := &models.Payout{
		ID:           uuid.New(),
		SellerUserID: input.SellerUserID,
		AmountCents:  input.AmountCents,
		Currency:     currency,
		Status:       enums.PayoutStatusPending,
	}

	outcome, err := s.attempt(ctx, input.SellerUserID, input.AmountCents, currency)
	if err != nil {
		return nil, err
	}
	payout.Status = outcome.status
	payout.ExternalPayoutID = outcome.externalID
	payout.FailureReason = outcome.failureReason

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}
		return s.emitStatus(ctx, tx, payout, input.ActorUserID)
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

func (s *service) Retry(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	payout, err := s.repo.FindByID(ctx, payoutID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	if payout.Status != enums.PayoutStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only failed payouts can be retried")
	}

	outcome, err := s.attempt(ctx, payout.SellerUserID, payout.AmountCents, payout.Currency)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"status":             outcome.status,
		"external_payout_id": outcome.externalID,
		"failure_reason":     outcome.failureReason,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, payout.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout")
		}
		payout.Status = outcome.status
		payout.ExternalPayoutID = outcome.externalID
		payout.FailureReason = outcome.failureReason
		return s.emitStatus(ctx, tx, payout, nil)
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

func (s *service) Cancel(ctx context.Context, payoutID uuid.UUID) error {
	if payoutID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	payout, err := s.repo.FindByID(ctx, payoutID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	if payout.Status != enums.PayoutStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending payouts can be cancelled")
	}

	if payout.ExternalPayoutID != nil && *payout.ExternalPayoutID != "" {
		user, err := s.users.ByID(ctx, payout.SellerUserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
		}
		if user.PayoutAccountID != nil {
			driver := s.drivers.Driver(ctx, s.driverName)
			if driver.CancelPayout(ctx, *user.PayoutAccountID, *payout.ExternalPayoutID) == nil {
				return pkgerrors.New(pkgerrors.CodeDependency, "provider payout cancellation failed")
			}
		}
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updates := map[string]any{"status": enums.PayoutStatusCancelled}
		if err := s.repo.WithTx(tx).Update(ctx, payout.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout")
		}
		payout.Status = enums.PayoutStatusCancelled
		return s.emitStatus(ctx, tx, payout, nil)
	})
}

func (s *service) Get(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	payout, err := s.repo.FindByID(ctx, payoutID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	return payout, nil
}

func (s *service) ListBySeller(ctx context.Context, sellerUserID uuid.UUID) ([]models.Payout, error) {
	if sellerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller user id required")
	}
	payouts, err := s.repo.ListBySeller(ctx, sellerUserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	return payouts, nil
}

type attemptOutcome struct {
	status        enums.PayoutStatus
	externalID    *string
	failureReason *string
}

// attempt checks preconditions and, only when they hold, asks the provider
// to move the funds. Precondition failures never reach the provider.
func (s *service) attempt(ctx context.Context, sellerUserID uuid.UUID, amountCents int, currency enums.Currency) (attemptOutcome, error) {
	user, err := s.users.ByID(ctx, sellerUserID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return attemptOutcome{}, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return attemptOutcome{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}

	if user.PayoutAccountID == nil || *user.PayoutAccountID == "" {
		return failedOutcome(reasonNoAccount), nil
	}
	if !user.PayoutAccountEnabled {
		return failedOutcome(reasonOnboardingIncomplete), nil
	}

	driver := s.drivers.Driver(ctx, s.driverName)
	result := driver.CreatePayout(ctx, *user.PayoutAccountID, amountCents, currency)
	if result == nil {
		return failedOutcome(reasonProviderRejected), nil
	}

	externalID := result.ID
	return attemptOutcome{
		status:     mapProviderStatus(result.Status),
		externalID: &externalID,
	}, nil
}

func failedOutcome(reason string) attemptOutcome {
	return attemptOutcome{status: enums.PayoutStatusFailed, failureReason: &reason}
}

func mapProviderStatus(status string) enums.PayoutStatus {
	switch status {
	case "paid":
		return enums.PayoutStatusCompleted
	case "failed", "canceled":
		return enums.PayoutStatusFailed
	default:
		return enums.PayoutStatusPending
	}
}

// emitStatus queues the payout event matching the row's status. Pending
// payouts emit nothing; their outcome event follows once the provider
// settles or the payout is cancelled.
func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, payout *models.Payout, actorUserID *uuid.UUID) error {
	var eventType enums.OutboxEventType
	switch payout.Status {
	case enums.PayoutStatusCompleted:
		eventType = enums.EventPayoutProcessed
	case enums.PayoutStatusFailed:
		eventType = enums.EventPayoutFailed
	case enums.PayoutStatusCancelled:
		eventType = enums.EventPayoutCancelled
	default:
		return nil
	}

	var actor *outbox.ActorRef
	if actorUserID != nil {
		actor = &outbox.ActorRef{UserID: *actorUserID}
	}
	data := payloads.PayoutStatusEvent{
		PayoutID:     payout.ID,
		SellerUserID: payout.SellerUserID,
		AmountCents:  payout.AmountCents,
		Status:       payout.Status,
	}
	if payout.ExternalPayoutID != nil {
		data.ExternalPayoutID = *payout.ExternalPayoutID
	}
	if payout.FailureReason != nil {
		data.FailureReason = *payout.FailureReason
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayout,
		AggregateID:   payout.ID,
		Version:       1,
		OccurredAt:    time.Now(),
		Actor:         actor,
		Data:          data,
	})
}
