package discounts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/internal/orders"
	"github.com/mvickers/tradepost-backend/pkg/db/models"
	"github.com/mvickers/tradepost-backend/pkg/enums"
)

type dbTxRunner struct {
	db *gorm.DB
}

func (r dbTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:discounts_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.Discount{}, &models.OrderDiscount{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), orders.NewRepository(db), dbTxRunner{db: db}, nil)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func seedOrderWithItem(t *testing.T, db *gorm.DB, userID *uuid.UUID, productID uuid.UUID, qty int) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: 1,
		Status:      enums.OrderStatusSucceeded,
		AmountCents: 1000 * qty,
		Currency:    enums.CurrencyUSD,
		UserID:      userID,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	item := &models.OrderItem{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ProductID:      &productID,
		Name:           "Gift Card",
		UnitPriceCents: 1000,
		Qty:            qty,
		TotalCents:     1000 * qty,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return order
}

func seedTemplate(t *testing.T, db *gorm.DB, productID uuid.UUID, balance int) *models.Discount {
	t.Helper()
	template := &models.Discount{
		ID:           uuid.New(),
		Type:         enums.DiscountTypeGiftCard,
		Code:         "TPL-" + uuid.NewString()[:8],
		BalanceCents: balance,
		ProductID:    &productID,
	}
	if err := db.Create(template).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return template
}

func TestGrantReplicatesTemplatesPerUnit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	productID := uuid.New()
	seedTemplate(t, db, productID, 1000)
	order := seedOrderWithItem(t, db, &userID, productID, 3)

	granted, err := svc.GrantPurchasedDiscounts(ctx, order.ID)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if granted != 3 {
		t.Fatalf("expected 3 instances, got %d", granted)
	}

	var instances []models.Discount
	if err := db.Where("granted_by_order_id = ?", order.ID).Find(&instances).Error; err != nil {
		t.Fatalf("load instances: %v", err)
	}
	if len(instances) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(instances))
	}
	codes := map[string]bool{}
	for _, instance := range instances {
		if instance.UserID == nil || *instance.UserID != userID {
			t.Fatalf("instance not owned by purchaser: %+v", instance)
		}
		if instance.ActivatedAt == nil {
			t.Fatalf("instance not activated: %+v", instance)
		}
		if instance.BalanceCents != 1000 || instance.TimesUsed != 0 {
			t.Fatalf("unexpected instance state: %+v", instance)
		}
		if codes[instance.Code] {
			t.Fatalf("duplicate code %s", instance.Code)
		}
		codes[instance.Code] = true
	}

	// Re-delivery grants nothing more.
	granted, err = svc.GrantPurchasedDiscounts(ctx, order.ID)
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if granted != 0 {
		t.Fatalf("expected idempotent re-delivery, granted %d", granted)
	}
	var count int64
	if err := db.Model(&models.Discount{}).Where("granted_by_order_id = ?", order.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 rows after re-delivery, got %d", count)
	}
}

func TestGrantSkipsGuestOrders(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	productID := uuid.New()
	seedTemplate(t, db, productID, 500)
	order := seedOrderWithItem(t, db, nil, productID, 1)

	granted, err := svc.GrantPurchasedDiscounts(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if granted != 0 {
		t.Fatalf("guest orders must not receive discounts, got %d", granted)
	}
}

func TestSettleDepletesGiftCard(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	giftCard := &models.Discount{
		ID:           uuid.New(),
		Type:         enums.DiscountTypeGiftCard,
		Code:         "GC-" + uuid.NewString()[:8],
		BalanceCents: 1000,
		UserID:       &userID,
	}
	if err := db.Create(giftCard).Error; err != nil {
		t.Fatalf("seed gift card: %v", err)
	}
	order := seedOrderWithItem(t, db, &userID, uuid.New(), 1)
	pivot := &models.OrderDiscount{
		ID:                 uuid.New(),
		OrderID:            order.ID,
		DiscountID:         giftCard.ID,
		AmountAppliedCents: 400,
	}
	if err := db.Create(pivot).Error; err != nil {
		t.Fatalf("seed pivot: %v", err)
	}

	if err := svc.SettleAppliedDiscounts(ctx, order.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	var settled models.Discount
	if err := db.First(&settled, "id = ?", giftCard.ID).Error; err != nil {
		t.Fatalf("load discount: %v", err)
	}
	if settled.BalanceCents != 600 {
		t.Fatalf("expected balance 600, got %d", settled.BalanceCents)
	}
	if settled.TimesUsed != 1 {
		t.Fatalf("expected times_used 1, got %d", settled.TimesUsed)
	}

	var settledPivot models.OrderDiscount
	if err := db.First(&settledPivot, "id = ?", pivot.ID).Error; err != nil {
		t.Fatalf("load pivot: %v", err)
	}
	if settledPivot.BalanceBeforeCents == nil || *settledPivot.BalanceBeforeCents != 1000 {
		t.Fatalf("unexpected balance_before %v", settledPivot.BalanceBeforeCents)
	}
	if settledPivot.BalanceAfterCents == nil || *settledPivot.BalanceAfterCents != 600 {
		t.Fatalf("unexpected balance_after %v", settledPivot.BalanceAfterCents)
	}

	// Re-delivery must not deplete twice.
	if err := svc.SettleAppliedDiscounts(ctx, order.ID); err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if err := db.First(&settled, "id = ?", giftCard.ID).Error; err != nil {
		t.Fatalf("reload discount: %v", err)
	}
	if settled.BalanceCents != 600 || settled.TimesUsed != 1 {
		t.Fatalf("re-delivery changed state: %+v", settled)
	}
}

func TestSettleFloorsAtZero(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	userID := uuid.New()
	giftCard := &models.Discount{
		ID:           uuid.New(),
		Type:         enums.DiscountTypeGiftCard,
		Code:         "GC-" + uuid.NewString()[:8],
		BalanceCents: 300,
		UserID:       &userID,
	}
	if err := db.Create(giftCard).Error; err != nil {
		t.Fatalf("seed gift card: %v", err)
	}
	order := seedOrderWithItem(t, db, &userID, uuid.New(), 1)
	pivot := &models.OrderDiscount{
		ID:                 uuid.New(),
		OrderID:            order.ID,
		DiscountID:         giftCard.ID,
		AmountAppliedCents: 500,
	}
	if err := db.Create(pivot).Error; err != nil {
		t.Fatalf("seed pivot: %v", err)
	}

	if err := svc.SettleAppliedDiscounts(context.Background(), order.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	var settled models.Discount
	if err := db.First(&settled, "id = ?", giftCard.ID).Error; err != nil {
		t.Fatalf("load discount: %v", err)
	}
	if settled.BalanceCents != 0 {
		t.Fatalf("expected floor at zero, got %d", settled.BalanceCents)
	}
}

func TestSettleIsolatesFailures(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	userID := uuid.New()
	giftCard := &models.Discount{
		ID:           uuid.New(),
		Type:         enums.DiscountTypeGiftCard,
		Code:         "GC-" + uuid.NewString()[:8],
		BalanceCents: 1000,
		UserID:       &userID,
	}
	if err := db.Create(giftCard).Error; err != nil {
		t.Fatalf("seed gift card: %v", err)
	}
	order := seedOrderWithItem(t, db, &userID, uuid.New(), 1)

	// Pivot pointing at a discount row that no longer exists.
	broken := &models.OrderDiscount{
		ID:                 uuid.New(),
		OrderID:            order.ID,
		DiscountID:         uuid.New(),
		AmountAppliedCents: 100,
	}
	good := &models.OrderDiscount{
		ID:                 uuid.New(),
		OrderID:            order.ID,
		DiscountID:         giftCard.ID,
		AmountAppliedCents: 250,
	}
	for _, pivot := range []*models.OrderDiscount{broken, good} {
		if err := db.Create(pivot).Error; err != nil {
			t.Fatalf("seed pivot: %v", err)
		}
	}

	err := svc.SettleAppliedDiscounts(context.Background(), order.ID)
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(multierr.Errors(err)) != 1 {
		t.Fatalf("expected one failure, got %v", multierr.Errors(err))
	}

	var settled models.Discount
	if err := db.First(&settled, "id = ?", giftCard.ID).Error; err != nil {
		t.Fatalf("load discount: %v", err)
	}
	if settled.BalanceCents != 750 {
		t.Fatalf("healthy discount must still settle, got %d", settled.BalanceCents)
	}
}
