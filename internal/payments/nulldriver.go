package payments

import (
	"context"

	"github.com/mvickers/tradepost-backend/pkg/db/models"
	"github.com/mvickers/tradepost-backend/pkg/enums"
)

// NullDriver is the "payments disabled" fallback. Every operation performs
// zero I/O and returns the same empty value a failed provider call would,
// so callers behave identically without branching on configuration.
type NullDriver struct{}

// NewNullDriver returns the no-op driver.
func NewNullDriver() *NullDriver {
	return &NullDriver{}
}

func (d *NullDriver) Name() string { return "null" }

func (d *NullDriver) CreateConnectedAccount(context.Context, *models.User) *ConnectedAccount {
	return nil
}

func (d *NullDriver) GetConnectedAccount(context.Context, string) *ConnectedAccount {
	return nil
}

func (d *NullDriver) UpdateConnectedAccount(context.Context, string, string) *ConnectedAccount {
	return nil
}

func (d *NullDriver) DeleteConnectedAccount(context.Context, string) bool { return false }

func (d *NullDriver) OnboardingURL(context.Context, string) string { return "" }

func (d *NullDriver) IsOnboardingComplete(context.Context, string) bool { return false }

func (d *NullDriver) DashboardURL(context.Context, string) string { return "" }

func (d *NullDriver) AccountBalance(context.Context, string) *Balance { return nil }

func (d *NullDriver) PlatformBalance(context.Context) *Balance { return nil }

func (d *NullDriver) CreatePayout(context.Context, string, int, enums.Currency) *PayoutResult {
	return nil
}

func (d *NullDriver) GetPayout(context.Context, string, string) *PayoutResult { return nil }

func (d *NullDriver) CancelPayout(context.Context, string, string) *PayoutResult { return nil }

func (d *NullDriver) ListPayouts(context.Context, string, int) []PayoutResult { return nil }

func (d *NullDriver) CreateTransfer(context.Context, string, int, enums.Currency) *Transfer {
	return nil
}

func (d *NullDriver) GetTransfer(context.Context, string) *Transfer { return nil }

func (d *NullDriver) ReverseTransfer(context.Context, string) *Transfer { return nil }

func (d *NullDriver) CreateProduct(context.Context, *models.Product) *ProviderProduct { return nil }

func (d *NullDriver) UpdateProduct(context.Context, *models.Product) *ProviderProduct { return nil }

func (d *NullDriver) DeleteProduct(context.Context, string) bool { return false }

func (d *NullDriver) CreatePrice(context.Context, *models.Price, string) *ProviderPrice { return nil }

func (d *NullDriver) DeactivatePrice(context.Context, string) bool { return false }

func (d *NullDriver) CreateCustomer(context.Context, *models.User) *Customer { return nil }

func (d *NullDriver) GetCustomer(context.Context, string) *Customer { return nil }

func (d *NullDriver) DeleteCustomer(context.Context, string) bool { return false }

func (d *NullDriver) SearchCustomerByEmail(context.Context, string) *Customer { return nil }

func (d *NullDriver) SyncCustomer(context.Context, string, string, string) *Customer { return nil }

func (d *NullDriver) BillingPortalURL(context.Context, string, string) string { return "" }

func (d *NullDriver) CreatePaymentMethod(context.Context, string, string) *PaymentMethod {
	return nil
}

func (d *NullDriver) GetPaymentMethod(context.Context, string) *PaymentMethod { return nil }

func (d *NullDriver) UpdatePaymentMethod(context.Context, string, int64, int64) *PaymentMethod {
	return nil
}

func (d *NullDriver) DeletePaymentMethod(context.Context, string) bool { return false }

func (d *NullDriver) CreateCoupon(context.Context, CouponParams) *Coupon { return nil }

func (d *NullDriver) StartSubscription(context.Context, string, string) *Subscription { return nil }

func (d *NullDriver) SwapSubscription(context.Context, string, string) *Subscription { return nil }

func (d *NullDriver) CancelSubscription(context.Context, string) bool { return false }

func (d *NullDriver) ContinueSubscription(context.Context, string) *Subscription { return nil }

func (d *NullDriver) UpdateSubscription(context.Context, string, SubscriptionUpdate) *Subscription {
	return nil
}

func (d *NullDriver) CurrentSubscription(context.Context, string) *Subscription { return nil }

func (d *NullDriver) ListSubscriptions(context.Context, string) []Subscription { return nil }

func (d *NullDriver) CreateCheckoutSession(context.Context, CheckoutParams) *CheckoutSession {
	return nil
}

func (d *NullDriver) GetCheckoutSession(context.Context, string) *CheckoutSession { return nil }

func (d *NullDriver) RefundOrder(context.Context, *models.Order, int, string) bool { return false }

func (d *NullDriver) CancelOrder(context.Context, *models.Order) bool { return false }

var _ Driver = (*NullDriver)(nil)
