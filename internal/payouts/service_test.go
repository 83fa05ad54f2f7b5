package payouts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/internal/payments"
	"github.com/mvickers/tradepost-backend/pkg/db/models"
	"github.com/mvickers/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mvickers/tradepost-backend/pkg/errors"
	"github.com/mvickers/tradepost-backend/pkg/outbox"
)

type stubPayoutsRepo struct {
	payouts map[uuid.UUID]*models.Payout
	updates map[string]any
}

func newStubPayoutsRepo() *stubPayoutsRepo {
	return &stubPayoutsRepo{payouts: make(map[uuid.UUID]*models.Payout)}
}

func (s *stubPayoutsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubPayoutsRepo) Create(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	s.payouts[payout.ID] = payout
	return payout, nil
}

func (s *stubPayoutsRepo) FindByID(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	payout, ok := s.payouts[payoutID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *payout
	return &copied, nil
}

func (s *stubPayoutsRepo) Update(ctx context.Context, payoutID uuid.UUID, updates map[string]any) error {
	payout, ok := s.payouts[payoutID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.updates = updates
	if status, ok := updates["status"].(enums.PayoutStatus); ok {
		payout.Status = status
	}
	if external, ok := updates["external_payout_id"].(*string); ok {
		payout.ExternalPayoutID = external
	}
	if reason, ok := updates["failure_reason"].(*string); ok {
		payout.FailureReason = reason
	}
	return nil
}

func (s *stubPayoutsRepo) ListBySeller(ctx context.Context, sellerUserID uuid.UUID) ([]models.Payout, error) {
	var out []models.Payout
	for _, payout := range s.payouts {
		if payout.SellerUserID == sellerUserID {
			out = append(out, *payout)
		}
	}
	return out, nil
}

type stubUserLoader struct {
	users map[uuid.UUID]*models.User
}

func (s *stubUserLoader) ByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type stubDriver struct {
	*payments.NullDriver
	createCalls  int
	cancelCalls  int
	createResult *payments.PayoutResult
	cancelResult *payments.PayoutResult
}

func (s *stubDriver) CreatePayout(ctx context.Context, accountID string, amountCents int, currency enums.Currency) *payments.PayoutResult {
	s.createCalls++
	return s.createResult
}

func (s *stubDriver) CancelPayout(ctx context.Context, accountID, payoutID string) *payments.PayoutResult {
	s.cancelCalls++
	return s.cancelResult
}

type stubDriverSource struct {
	driver payments.Driver
}

func (s *stubDriverSource) Driver(ctx context.Context, name string) payments.Driver {
	return s.driver
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func strPtr(v string) *string { return &v }

func newFixture(t *testing.T, user *models.User, driver *stubDriver) (Service, *stubPayoutsRepo, *stubOutboxPublisher) {
	t.Helper()
	repo := newStubPayoutsRepo()
	users := &stubUserLoader{users: map[uuid.UUID]*models.User{}}
	if user != nil {
		users.users[user.ID] = user
	}
	sink := &stubOutboxPublisher{}
	svc, err := NewService(repo, users, &stubDriverSource{driver: driver}, "stripe", stubTxRunner{}, sink)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc, repo, sink
}

func TestCreateWithoutConnectedAccount(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "seller@example.com"}
	driver := &stubDriver{NullDriver: payments.NewNullDriver()}
	svc, _, sink := newFixture(t, user, driver)

	payout, err := svc.Create(context.Background(), CreatePayoutInput{
		SellerUserID: user.ID,
		AmountCents:  5000,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if payout.Status != enums.PayoutStatusFailed {
		t.Fatalf("expected failed, got %s", payout.Status)
	}
	if payout.FailureReason == nil || *payout.FailureReason != "no connected payout account" {
		t.Fatalf("unexpected reason %v", payout.FailureReason)
	}
	if driver.createCalls != 0 {
		t.Fatalf("provider must not be called, got %d calls", driver.createCalls)
	}
	if len(sink.events) != 1 || sink.events[0].EventType != enums.EventPayoutFailed {
		t.Fatalf("expected payout_failed event, got %v", sink.events)
	}
}

func TestCreateWithIncompleteOnboarding(t *testing.T) {
	user := &models.User{
		ID:              uuid.New(),
		Email:           "seller@example.com",
		PayoutAccountID: strPtr("acct_123"),
	}
	driver := &stubDriver{NullDriver: payments.NewNullDriver()}
	svc, _, _ := newFixture(t, user, driver)

	payout, err := svc.Create(context.Background(), CreatePayoutInput{
		SellerUserID: user.ID,
		AmountCents:  5000,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if payout.Status != enums.PayoutStatusFailed {
		t.Fatalf("expected failed, got %s", payout.Status)
	}
	if payout.FailureReason == nil || *payout.FailureReason != "onboarding incomplete" {
		t.Fatalf("unexpected reason %v", payout.FailureReason)
	}
	if driver.createCalls != 0 {
		t.Fatalf("provider must not be called, got %d calls", driver.createCalls)
	}
}

func TestCreateMapsProviderStatus(t *testing.T) {
	cases := []struct {
		provider string
		want     enums.PayoutStatus
		event    enums.OutboxEventType
	}{
		{provider: "paid", want: enums.PayoutStatusCompleted, event: enums.EventPayoutProcessed},
		{provider: "failed", want: enums.PayoutStatusFailed, event: enums.EventPayoutFailed},
		{provider: "canceled", want: enums.PayoutStatusFailed, event: enums.EventPayoutFailed},
		{provider: "in_transit", want: enums.PayoutStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.provider, func(t *testing.T) {
			user := &models.User{
				ID:                   uuid.New(),
				Email:                "seller@example.com",
				PayoutAccountID:      strPtr("acct_123"),
				PayoutAccountEnabled: true,
			}
			driver := &stubDriver{
				NullDriver:   payments.NewNullDriver(),
				createResult: &payments.PayoutResult{ID: "po_1", Status: tc.provider},
			}
			svc, _, sink := newFixture(t, user, driver)

			payout, err := svc.Create(context.Background(), CreatePayoutInput{
				SellerUserID: user.ID,
				AmountCents:  5000,
			})
			if err != nil {
				t.Fatalf("expected success got %v", err)
			}
			if payout.Status != tc.want {
				t.Fatalf("expected %s got %s", tc.want, payout.Status)
			}
			if payout.ExternalPayoutID == nil || *payout.ExternalPayoutID != "po_1" {
				t.Fatalf("expected external id, got %v", payout.ExternalPayoutID)
			}
			if tc.event == "" {
				if len(sink.events) != 0 {
					t.Fatalf("pending payouts must not emit, got %v", sink.events)
				}
				return
			}
			if len(sink.events) != 1 || sink.events[0].EventType != tc.event {
				t.Fatalf("expected %s event, got %v", tc.event, sink.events)
			}
		})
	}
}

func TestCreateProviderRejected(t *testing.T) {
	user := &models.User{
		ID:                   uuid.New(),
		Email:                "seller@example.com",
		PayoutAccountID:      strPtr("acct_123"),
		PayoutAccountEnabled: true,
	}
	driver := &stubDriver{NullDriver: payments.NewNullDriver()}
	svc, _, _ := newFixture(t, user, driver)

	payout, err := svc.Create(context.Background(), CreatePayoutInput{
		SellerUserID: user.ID,
		AmountCents:  5000,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if payout.Status != enums.PayoutStatusFailed {
		t.Fatalf("expected failed got %s", payout.Status)
	}
	if payout.FailureReason == nil || *payout.FailureReason != "provider rejected payout" {
		t.Fatalf("unexpected reason %v", payout.FailureReason)
	}
	if driver.createCalls != 1 {
		t.Fatalf("expected one provider call, got %d", driver.createCalls)
	}
}

func TestRetryRechecksPreconditions(t *testing.T) {
	user := &models.User{
		ID:              uuid.New(),
		Email:           "seller@example.com",
		PayoutAccountID: strPtr("acct_123"),
	}
	driver := &stubDriver{
		NullDriver:   payments.NewNullDriver(),
		createResult: &payments.PayoutResult{ID: "po_2", Status: "paid"},
	}
	svc, repo, _ := newFixture(t, user, driver)

	reason := "onboarding incomplete"
	failed := &models.Payout{
		ID:            uuid.New(),
		SellerUserID:  user.ID,
		AmountCents:   2500,
		Currency:      enums.CurrencyUSD,
		Status:        enums.PayoutStatusFailed,
		FailureReason: &reason,
	}
	repo.payouts[failed.ID] = failed

	// Onboarding still incomplete: retry fails again without a provider call.
	payout, err := svc.Retry(context.Background(), failed.ID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if payout.Status != enums.PayoutStatusFailed || driver.createCalls != 0 {
		t.Fatalf("expected failed with no provider calls, got %s calls=%d", payout.Status, driver.createCalls)
	}

	// Seller finishes onboarding: retry now completes.
	user.PayoutAccountEnabled = true
	payout, err = svc.Retry(context.Background(), failed.ID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if payout.Status != enums.PayoutStatusCompleted {
		t.Fatalf("expected completed got %s", payout.Status)
	}
	if driver.createCalls != 1 {
		t.Fatalf("expected one provider call, got %d", driver.createCalls)
	}
}

func TestRetryNonFailedPayout(t *testing.T) {
	driver := &stubDriver{NullDriver: payments.NewNullDriver()}
	svc, repo, _ := newFixture(t, nil, driver)

	pending := &models.Payout{ID: uuid.New(), SellerUserID: uuid.New(), Status: enums.PayoutStatusPending}
	repo.payouts[pending.ID] = pending

	_, err := svc.Retry(context.Background(), pending.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCancelPendingPayout(t *testing.T) {
	user := &models.User{
		ID:                   uuid.New(),
		Email:                "seller@example.com",
		PayoutAccountID:      strPtr("acct_123"),
		PayoutAccountEnabled: true,
	}
	driver := &stubDriver{
		NullDriver:   payments.NewNullDriver(),
		cancelResult: &payments.PayoutResult{ID: "po_3", Status: "canceled"},
	}
	svc, repo, sink := newFixture(t, user, driver)

	pending := &models.Payout{
		ID:               uuid.New(),
		SellerUserID:     user.ID,
		AmountCents:      1000,
		Status:           enums.PayoutStatusPending,
		ExternalPayoutID: strPtr("po_3"),
	}
	repo.payouts[pending.ID] = pending

	if err := svc.Cancel(context.Background(), pending.ID); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if driver.cancelCalls != 1 {
		t.Fatalf("expected one provider cancel, got %d", driver.cancelCalls)
	}
	if repo.payouts[pending.ID].Status != enums.PayoutStatusCancelled {
		t.Fatalf("expected cancelled got %s", repo.payouts[pending.ID].Status)
	}
	if len(sink.events) != 1 || sink.events[0].EventType != enums.EventPayoutCancelled {
		t.Fatalf("expected payout_cancelled event, got %v", sink.events)
	}
}

func TestCancelNonPendingPayout(t *testing.T) {
	driver := &stubDriver{NullDriver: payments.NewNullDriver()}
	svc, repo, _ := newFixture(t, nil, driver)

	done := &models.Payout{ID: uuid.New(), SellerUserID: uuid.New(), Status: enums.PayoutStatusCompleted}
	repo.payouts[done.ID] = done

	err := svc.Cancel(context.Background(), done.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error %v", err)
	}
	if driver.cancelCalls != 0 {
		t.Fatalf("provider must not be called, got %d", driver.cancelCalls)
	}
}

func TestCreateValidation(t *testing.T) {
	driver := &stubDriver{NullDriver: payments.NewNullDriver()}
	svc, _, _ := newFixture(t, nil, driver)

	_, err := svc.Create(context.Background(), CreatePayoutInput{SellerUserID: uuid.New(), AmountCents: 0})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
}
