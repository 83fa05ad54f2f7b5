package payments

import (
	"context"
	"time"

	"github.com/mvickers/tradepost-backend/pkg/db/models"
	"github.com/mvickers/tradepost-backend/pkg/enums"
)

// ConnectedAccount mirrors the provider-side seller account state.
type ConnectedAccount struct {
	ID               string
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
	Capabilities     []string
}

// OnboardingComplete reports whether the provider considers the account
// fully onboarded. All three provider flags must be set.
func (a *ConnectedAccount) OnboardingComplete() bool {
	if a == nil {
		return false
	}
	return a.DetailsSubmitted && a.ChargesEnabled && a.PayoutsEnabled
}

// Balance is a point-in-time funds snapshot for an account or the platform.
type Balance struct {
	AvailableCents int64
	PendingCents   int64
	Currency       enums.Currency
}

// PayoutResult carries the provider's view of one payout.
type PayoutResult struct {
	ID          string
	Status      string
	AmountCents int64
	Currency    enums.Currency
	ArrivalDate time.Time
}

// Transfer carries the provider's view of one platform-to-account transfer.
type Transfer struct {
	ID                   string
	AmountCents          int64
	Currency             enums.Currency
	DestinationAccountID string
	Reversed             bool
}

// ProviderProduct is the provider-side mirror of a catalog product.
type ProviderProduct struct {
	ID     string
	Name   string
	Active bool
}

// ProviderPrice is the provider-side mirror of a catalog price.
type ProviderPrice struct {
	ID          string
	ProductID   string
	AmountCents int64
	Currency    enums.Currency
	Active      bool
}

// CheckoutSession is a hosted checkout handle for an order.
type CheckoutSession struct {
	ID              string
	URL             string
	PaymentIntentID string
	PaymentStatus   string
	AmountCents     int64
}

// Customer is the provider-side buyer record.
type Customer struct {
	ID    string
	Email string
	Name  string
}

// PaymentMethod is a stored payment instrument attached to a provider
// customer.
type PaymentMethod struct {
	ID         string
	CustomerID string
	Type       string
	Brand      string
	Last4      string
	ExpMonth   int64
	ExpYear    int64
}

// Coupon is a provider-side promotional discount. Exactly one of
// PercentOff and AmountOffCents is set.
type Coupon struct {
	ID             string
	Name           string
	PercentOff     float64
	AmountOffCents int64
	Currency       enums.Currency
	Duration       string
}

// CouponParams describes a coupon to create at the provider.
type CouponParams struct {
	Name           string
	PercentOff     float64
	AmountOffCents int64
	Currency       enums.Currency
	Duration       string
}

// Subscription is the provider's view of one recurring billing agreement.
type Subscription struct {
	ID                string
	CustomerID        string
	PriceID           string
	Status            string
	Quantity          int64
	CancelAtPeriodEnd bool
	PeriodEnd         time.Time
}

// Active reports whether the subscription currently entitles the customer.
func (s *Subscription) Active() bool {
	if s == nil {
		return false
	}
	return s.Status == "active" || s.Status == "trialing"
}

// SubscriptionUpdate carries the optional fields of an in-place
// subscription change. Nil fields are left untouched.
type SubscriptionUpdate struct {
	Quantity               *int64
	DefaultPaymentMethodID *string
}

// CheckoutParams describes the order snapshot a checkout session is built
// from.
type CheckoutParams struct {
	Order      *models.Order
	Items      []models.OrderItem
	SuccessURL string
	CancelURL  string
	CustomerID string
}

// Driver is the uniform contract over one external payment/payout
// provider. Methods return a populated value, or nil/false/empty when the
// provider call failed; failures never surface as errors to callers. Full
// context (operation, classification, attempt count) is captured in logs
// by the implementation.
type Driver interface {
	Name() string

	// Connected accounts.
	CreateConnectedAccount(ctx context.Context, user *models.User) *ConnectedAccount
	GetConnectedAccount(ctx context.Context, accountID string) *ConnectedAccount
	UpdateConnectedAccount(ctx context.Context, accountID string, email string) *ConnectedAccount
	DeleteConnectedAccount(ctx context.Context, accountID string) bool
	OnboardingURL(ctx context.Context, accountID string) string
	IsOnboardingComplete(ctx context.Context, accountID string) bool
	DashboardURL(ctx context.Context, accountID string) string

	// Balances.
	AccountBalance(ctx context.Context, accountID string) *Balance
	PlatformBalance(ctx context.Context) *Balance

	// Payouts.
	CreatePayout(ctx context.Context, accountID string, amountCents int, currency enums.Currency) *PayoutResult
	GetPayout(ctx context.Context, accountID, payoutID string) *PayoutResult
	CancelPayout(ctx context.Context, accountID, payoutID string) *PayoutResult
	ListPayouts(ctx context.Context, accountID string, limit int) []PayoutResult

	// Transfers.
	CreateTransfer(ctx context.Context, accountID string, amountCents int, currency enums.Currency) *Transfer
	GetTransfer(ctx context.Context, transferID string) *Transfer
	ReverseTransfer(ctx context.Context, transferID string) *Transfer

	// Catalog mirroring.
	CreateProduct(ctx context.Context, product *models.Product) *ProviderProduct
	UpdateProduct(ctx context.Context, product *models.Product) *ProviderProduct
	DeleteProduct(ctx context.Context, providerProductID string) bool
	CreatePrice(ctx context.Context, price *models.Price, providerProductID string) *ProviderPrice
	DeactivatePrice(ctx context.Context, providerPriceID string) bool

	// Customers.
	CreateCustomer(ctx context.Context, user *models.User) *Customer
	GetCustomer(ctx context.Context, customerID string) *Customer
	DeleteCustomer(ctx context.Context, customerID string) bool
	SearchCustomerByEmail(ctx context.Context, email string) *Customer
	SyncCustomer(ctx context.Context, customerID, email, name string) *Customer
	BillingPortalURL(ctx context.Context, customerID, returnURL string) string

	// Payment methods.
	CreatePaymentMethod(ctx context.Context, customerID, providerMethodID string) *PaymentMethod
	GetPaymentMethod(ctx context.Context, paymentMethodID string) *PaymentMethod
	UpdatePaymentMethod(ctx context.Context, paymentMethodID string, expMonth, expYear int64) *PaymentMethod
	DeletePaymentMethod(ctx context.Context, paymentMethodID string) bool

	// Promotions.
	CreateCoupon(ctx context.Context, params CouponParams) *Coupon

	// Subscriptions.
	StartSubscription(ctx context.Context, customerID, priceID string) *Subscription
	SwapSubscription(ctx context.Context, subscriptionID, priceID string) *Subscription
	CancelSubscription(ctx context.Context, subscriptionID string) bool
	ContinueSubscription(ctx context.Context, subscriptionID string) *Subscription
	UpdateSubscription(ctx context.Context, subscriptionID string, update SubscriptionUpdate) *Subscription
	CurrentSubscription(ctx context.Context, customerID string) *Subscription
	ListSubscriptions(ctx context.Context, customerID string) []Subscription

	// Checkout lifecycle.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) *CheckoutSession
	GetCheckoutSession(ctx context.Context, sessionID string) *CheckoutSession
	RefundOrder(ctx context.Context, order *models.Order, amountCents int, reason string) bool
	CancelOrder(ctx context.Context, order *models.Order) bool
}
