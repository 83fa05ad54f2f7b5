package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/mvickers/tradepost-backend/internal/payments"
	"github.com/mvickers/tradepost-backend/pkg/config"
	"github.com/mvickers/tradepost-backend/pkg/db/models"
	"github.com/mvickers/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mvickers/tradepost-backend/pkg/errors"
	"github.com/mvickers/tradepost-backend/pkg/logger"
	"github.com/mvickers/tradepost-backend/pkg/metrics"
	"github.com/mvickers/tradepost-backend/pkg/retry"
)

const (
	testEnv = "test"
	liveEnv = "live"

	maxAttempts = 3
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errStoreRequired    = errors.New("account store is required")
	errLoggerRequired   = errors.New("logger is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// AccountStore persists the cached payout-account state on the local User
// record. Implementations run each mutation in its own transaction.
type AccountStore interface {
	SaveAccountState(ctx context.Context, userID uuid.UUID, state payments.AccountState) error
	SyncAccountState(ctx context.Context, accountID string, state payments.AccountState) (bool, error)
	ClearAccountState(ctx context.Context, accountID string) error
}

// Driver implements the provider contract against Stripe. Every outbound
// call is wrapped in the shared retry runner: rate limits retry up to
// three attempts with capped exponential backoff, anything else fails
// fast, and all failures degrade to the empty return value.
type Driver struct {
	api     api
	store   AccountStore
	runner  retry.Runner
	logg    *logger.Logger
	metrics *metrics.ProviderMetrics

	environment   string
	onboardingURL string
	checkoutURL   string
}

// Params configures the Stripe driver.
type Params struct {
	Config  config.ProviderConfig
	Store   AccountStore
	Logger  *logger.Logger
	Metrics *metrics.ProviderMetrics
	Sleeper retry.Sleeper
}

// New validates the credentials and builds the driver.
func New(ctx context.Context, params Params) (*Driver, error) {
	if params.Store == nil {
		return nil, errStoreRequired
	}
	if params.Logger == nil {
		return nil, errLoggerRequired
	}

	env, err := normalizeEnv(params.Config.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(params.Config.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	d := &Driver{
		api:           liveAPI{},
		store:         params.Store,
		runner:        retry.NewRunner(maxAttempts, nil, params.Sleeper),
		logg:          params.Logger,
		metrics:       params.Metrics,
		environment:   env,
		onboardingURL: params.Config.OnboardingURL,
		checkoutURL:   params.Config.CheckoutURL,
	}

	params.Logger.Info(ctx, fmt.Sprintf("stripe driver initialized (%s)", env))
	return d, nil
}

// Name implements payments.Driver.
func (d *Driver) Name() string { return "stripe" }

// Environment reports the normalized Stripe environment in use.
func (d *Driver) Environment() string { return d.environment }

func (d *Driver) CreateConnectedAccount(ctx context.Context, user *models.User) *payments.ConnectedAccount {
	if user == nil {
		return nil
	}

	var acct *stripe.Account
	ok := d.execute(ctx, "create_connected_account", func(ctx context.Context) error {
		params := &stripe.AccountParams{
			Type:  stripe.String(string(stripe.AccountTypeExpress)),
			Email: stripe.String(user.Email),
		}
		created, err := d.api.AccountNew(ctx, params)
		if err != nil {
			return classify(err, "create_connected_account")
		}
		acct = created
		return nil
	})
	if !ok {
		return nil
	}

	account := fromStripeAccount(acct)
	state := payments.StateFromAccount(account, time.Now())
	if err := d.store.SaveAccountState(ctx, user.ID, state); err != nil {
		d.logg.Error(d.logg.WithUserID(ctx, user.ID.String()), "persisting connected account state failed", err)
		return nil
	}
	return account
}

func (d *Driver) GetConnectedAccount(ctx context.Context, accountID string) *payments.ConnectedAccount {
	if accountID == "" {
		return nil
	}
	var acct *stripe.Account
	ok := d.execute(ctx, "get_connected_account", func(ctx context.Context) error {
		fetched, err := d.api.AccountGet(ctx, accountID, nil)
		if err != nil {
			return classify(err, "get_connected_account")
		}
		acct = fetched
		return nil
	})
	if !ok {
		return nil
	}
	return fromStripeAccount(acct)
}

func (d *Driver) UpdateConnectedAccount(ctx context.Context, accountID string, email string) *payments.ConnectedAccount {
	if accountID == "" {
		return nil
	}
	var acct *stripe.Account
	ok := d.execute(ctx, "update_connected_account", func(ctx context.Context) error {
		params := &stripe.AccountParams{Email: stripe.String(email)}
		updated, err := d.api.AccountUpdate(ctx, accountID, params)
		if err != nil {
			return classify(err, "update_connected_account")
		}
		acct = updated
		return nil
	})
	if !ok {
		return nil
	}
	return fromStripeAccount(acct)
}

func (d *Driver) DeleteConnectedAccount(ctx context.Context, accountID string) bool {
	if accountID == "" {
		return false
	}
	ok := d.execute(ctx, "delete_connected_account", func(ctx context.Context) error {
		_, err := d.api.AccountDelete(ctx, accountID, nil)
		if err != nil {
			return classify(err, "delete_connected_account")
		}
		return nil
	})
	if !ok {
		return false
	}
	if err := d.store.ClearAccountState(ctx, accountID); err != nil {
		d.logg.Error(d.logg.WithField(ctx, "account_id", accountID), "clearing connected account state failed", err)
		return false
	}
	return true
}

func (d *Driver) OnboardingURL(ctx context.Context, accountID string) string {
	if accountID == "" {
		return ""
	}
	var link *stripe.AccountLink
	ok := d.execute(ctx, "onboarding_url", func(ctx context.Context) error {
		params := &stripe.AccountLinkParams{
			Account:    stripe.String(accountID),
			RefreshURL: stripe.String(d.onboardingURL),
			ReturnURL:  stripe.String(d.onboardingURL),
			Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
		}
		created, err := d.api.AccountLinkNew(ctx, params)
		if err != nil {
			return classify(err, "onboarding_url")
		}
		link = created
		return nil
	})
	if !ok || link == nil {
		return ""
	}
	return link.URL
}

// IsOnboardingComplete performs a fresh provider lookup and syncs the
// cached local state, writing only when the computed completeness differs
// from the cached value.
func (d *Driver) IsOnboardingComplete(ctx context.Context, accountID string) bool {
	account := d.GetConnectedAccount(ctx, accountID)
	if account == nil {
		return false
	}
	state := payments.StateFromAccount(account, time.Now())
	if _, err := d.store.SyncAccountState(ctx, accountID, state); err != nil {
		d.logg.Error(d.logg.WithField(ctx, "account_id", accountID), "syncing onboarding state failed", err)
	}
	return account.OnboardingComplete()
}

func (d *Driver) DashboardURL(ctx context.Context, accountID string) string {
	if accountID == "" {
		return ""
	}
	var link *stripe.LoginLink
	ok := d.execute(ctx, "dashboard_url", func(ctx context.Context) error {
		params := &stripe.LoginLinkParams{Account: stripe.String(accountID)}
		created, err := d.api.LoginLinkNew(ctx, params)
		if err != nil {
			return classify(err, "dashboard_url")
		}
		link = created
		return nil
	})
	if !ok || link == nil {
		return ""
	}
	return link.URL
}

func (d *Driver) AccountBalance(ctx context.Context, accountID string) *payments.Balance {
	if accountID == "" {
		return nil
	}
	return d.balance(ctx, "account_balance", accountID)
}

func (d *Driver) PlatformBalance(ctx context.Context) *payments.Balance {
	return d.balance(ctx, "platform_balance", "")
}

func (d *Driver) balance(ctx context.Context, op, accountID string) *payments.Balance {
	var bal *stripe.Balance
	ok := d.execute(ctx, op, func(ctx context.Context) error {
		params := &stripe.BalanceParams{}
		if accountID != "" {
			params.StripeAccount = stripe.String(accountID)
		}
		fetched, err := d.api.BalanceGet(ctx, params)
		if err != nil {
			return classify(err, op)
		}
		bal = fetched
		return nil
	})
	if !ok || bal == nil {
		return nil
	}
	return fromStripeBalance(bal)
}

func (d *Driver) CreatePayout(ctx context.Context, accountID string, amountCents int, currency enums.Currency) *payments.PayoutResult {
	if accountID == "" || amountCents <= 0 {
		return nil
	}
	var po *stripe.Payout
	ok := d.execute(ctx, "create_payout", func(ctx context.Context) error {
		params := &stripe.PayoutParams{
			Amount:   stripe.Int64(int64(amountCents)),
			Currency: stripe.String(strings.ToLower(currency.String())),
		}
		params.StripeAccount = stripe.String(accountID)
		created, err := d.api.PayoutNew(ctx, params)
		if err != nil {
			return classify(err, "create_payout")
		}
		po = created
		return nil
	})
	if !ok || po == nil {
		return nil
	}
	return fromStripePayout(po)
}

func (d *Driver) GetPayout(ctx context.Context, accountID, payoutID string) *payments.PayoutResult {
	if payoutID == "" {
		return nil
	}
	var po *stripe.Payout
	ok := d.execute(ctx, "get_payout", func(ctx context.Context) error {
		params := &stripe.PayoutParams{}
		if accountID != "" {
			params.StripeAccount = stripe.String(accountID)
		}
		fetched, err := d.api.PayoutGet(ctx, payoutID, params)
		if err != nil {
			return classify(err, "get_payout")
		}
		po = fetched
		return nil
	})
	if !ok || po == nil {
		return nil
	}
	return fromStripePayout(po)
}

func (d *Driver) CancelPayout(ctx context.Context, accountID, payoutID string) *payments.PayoutResult {
	if payoutID == "" {
		return nil
	}
	var po *stripe.Payout
	ok := d.execute(ctx, "cancel_payout", func(ctx context.Context) error {
		params := &stripe.PayoutParams{}
		if accountID != "" {
			params.StripeAccount = stripe.String(accountID)
		}
		cancelled, err := d.api.PayoutCancel(ctx, payoutID, params)
		if err != nil {
			return classify(err, "cancel_payout")
		}
		po = cancelled
		return nil
	})
	if !ok || po == nil {
		return nil
	}
	return fromStripePayout(po)
}

func (d *Driver) ListPayouts(ctx context.Context, accountID string, limit int) []payments.PayoutResult {
	if accountID == "" {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}
	var rows []*stripe.Payout
	ok := d.execute(ctx, "list_payouts", func(ctx context.Context) error {
		params := &stripe.PayoutListParams{}
		params.StripeAccount = stripe.String(accountID)
		params.Limit = stripe.Int64(int64(limit))
		listed, err := d.api.PayoutList(ctx, params)
		if err != nil {
			return classify(err, "list_payouts")
		}
		rows = listed
		return nil
	})
	if !ok {
		return nil
	}
	payouts := make([]payments.PayoutResult, 0, len(rows))
	for _, row := range rows {
		if mapped := fromStripePayout(row); mapped != nil {
			payouts = append(payouts, *mapped)
		}
	}
	return payouts
}

func (d *Driver) CreateTransfer(ctx context.Context, accountID string, amountCents int, currency enums.Currency) *payments.Transfer {
	if accountID == "" || amountCents <= 0 {
		return nil
	}
	var tr *stripe.Transfer
	ok := d.execute(ctx, "create_transfer", func(ctx context.Context) error {
		params := &stripe.TransferParams{
			Amount:      stripe.Int64(int64(amountCents)),
			Currency:    stripe.String(strings.ToLower(currency.String())),
			Destination: stripe.String(accountID),
		}
		created, err := d.api.TransferNew(ctx, params)
		if err != nil {
			return classify(err, "create_transfer")
		}
		tr = created
		return nil
	})
	if !ok || tr == nil {
		return nil
	}
	return fromStripeTransfer(tr)
}

func (d *Driver) GetTransfer(ctx context.Context, transferID string) *payments.Transfer {
	if transferID == "" {
		return nil
	}
	var tr *stripe.Transfer
	ok := d.execute(ctx, "get_transfer", func(ctx context.Context) error {
		fetched, err := d.api.TransferGet(ctx, transferID, nil)
		if err != nil {
			return classify(err, "get_transfer")
		}
		tr = fetched
		return nil
	})
	if !ok || tr == nil {
		return nil
	}
	return fromStripeTransfer(tr)
}

func (d *Driver) ReverseTransfer(ctx context.Context, transferID string) *payments.Transfer {
	if transferID == "" {
		return nil
	}
	transfer := d.GetTransfer(ctx, transferID)
	if transfer == nil {
		return nil
	}
	ok := d.execute(ctx, "reverse_transfer", func(ctx context.Context) error {
		params := &stripe.TransferReversalParams{ID: stripe.String(transferID)}
		_, err := d.api.TransferReversalNew(ctx, params)
		if err != nil {
			return classify(err, "reverse_transfer")
		}
		return nil
	})
	if !ok {
		return nil
	}
	transfer.Reversed = true
	return transfer
}

func (d *Driver) CreateProduct(ctx context.Context, product *models.Product) *payments.ProviderProduct {
	if product == nil {
		return nil
	}
	var prod *stripe.Product
	ok := d.execute(ctx, "create_product", func(ctx context.Context) error {
		params := &stripe.ProductParams{Name: stripe.String(product.Name)}
		if product.Description != nil {
			params.Description = stripe.String(*product.Description)
		}
		created, err := d.api.ProductNew(ctx, params)
		if err != nil {
			return classify(err, "create_product")
		}
		prod = created
		return nil
	})
	if !ok || prod == nil {
		return nil
	}
	return fromStripeProduct(prod)
}

func (d *Driver) UpdateProduct(ctx context.Context, product *models.Product) *payments.ProviderProduct {
	if product == nil || product.ProviderProductID == nil {
		return nil
	}
	var prod *stripe.Product
	ok := d.execute(ctx, "update_product", func(ctx context.Context) error {
		params := &stripe.ProductParams{
			Name:   stripe.String(product.Name),
			Active: stripe.Bool(product.IsActive),
		}
		if product.Description != nil {
			params.Description = stripe.String(*product.Description)
		}
		updated, err := d.api.ProductUpdate(ctx, *product.ProviderProductID, params)
		if err != nil {
			return classify(err, "update_product")
		}
		prod = updated
		return nil
	})
	if !ok || prod == nil {
		return nil
	}
	return fromStripeProduct(prod)
}

func (d *Driver) DeleteProduct(ctx context.Context, providerProductID string) bool {
	if providerProductID == "" {
		return false
	}
	return d.execute(ctx, "delete_product", func(ctx context.Context) error {
		_, err := d.api.ProductDelete(ctx, providerProductID, nil)
		if err != nil {
			return classify(err, "delete_product")
		}
		return nil
	})
}

func (d *Driver) CreatePrice(ctx context.Context, price *models.Price, providerProductID string) *payments.ProviderPrice {
	if price == nil || providerProductID == "" {
		return nil
	}
	var pr *stripe.Price
	ok := d.execute(ctx, "create_price", func(ctx context.Context) error {
		params := &stripe.PriceParams{
			Product:    stripe.String(providerProductID),
			UnitAmount: stripe.Int64(int64(price.AmountCents)),
			Currency:   stripe.String(strings.ToLower(price.Currency.String())),
		}
		created, err := d.api.PriceNew(ctx, params)
		if err != nil {
			return classify(err, "create_price")
		}
		pr = created
		return nil
	})
	if !ok || pr == nil {
		return nil
	}
	return fromStripePrice(pr)
}

// DeactivatePrice soft-deletes: Stripe prices cannot be removed, only
// made inactive.
func (d *Driver) DeactivatePrice(ctx context.Context, providerPriceID string) bool {
	if providerPriceID == "" {
		return false
	}
	return d.execute(ctx, "deactivate_price", func(ctx context.Context) error {
		params := &stripe.PriceParams{Active: stripe.Bool(false)}
		_, err := d.api.PriceUpdate(ctx, providerPriceID, params)
		if err != nil {
			return classify(err, "deactivate_price")
		}
		return nil
	})
}

func (d *Driver) CreateCustomer(ctx context.Context, user *models.User) *payments.Customer {
	if user == nil {
		return nil
	}
	var cust *stripe.Customer
	ok := d.execute(ctx, "create_customer", func(ctx context.Context) error {
		params := &stripe.CustomerParams{
			Email: stripe.String(user.Email),
			Name:  stripe.String(user.Name),
		}
		created, err := d.api.CustomerNew(ctx, params)
		if err != nil {
			return classify(err, "create_customer")
		}
		cust = created
		return nil
	})
	if !ok || cust == nil {
		return nil
	}
	return fromStripeCustomer(cust)
}

func (d *Driver) GetCustomer(ctx context.Context, customerID string) *payments.Customer {
	if customerID == "" {
		return nil
	}
	var cust *stripe.Customer
	ok := d.execute(ctx, "get_customer", func(ctx context.Context) error {
		fetched, err := d.api.CustomerGet(ctx, customerID, nil)
		if err != nil {
			return classify(err, "get_customer")
		}
		cust = fetched
		return nil
	})
	if !ok || cust == nil {
		return nil
	}
	return fromStripeCustomer(cust)
}

func (d *Driver) DeleteCustomer(ctx context.Context, customerID string) bool {
	if customerID == "" {
		return false
	}
	return d.execute(ctx, "delete_customer", func(ctx context.Context) error {
		_, err := d.api.CustomerDelete(ctx, customerID, nil)
		if err != nil {
			return classify(err, "delete_customer")
		}
		return nil
	})
}

func (d *Driver) SearchCustomerByEmail(ctx context.Context, email string) *payments.Customer {
	if email == "" {
		return nil
	}
	var rows []*stripe.Customer
	ok := d.execute(ctx, "search_customer", func(ctx context.Context) error {
		params := &stripe.CustomerSearchParams{}
		params.Query = fmt.Sprintf("email:%q", email)
		found, err := d.api.CustomerSearch(ctx, params)
		if err != nil {
			return classify(err, "search_customer")
		}
		rows = found
		return nil
	})
	if !ok || len(rows) == 0 {
		return nil
	}
	return fromStripeCustomer(rows[0])
}

// SyncCustomer pushes the local email/name onto the provider record so
// receipts and portal sessions show current data.
func (d *Driver) SyncCustomer(ctx context.Context, customerID, email, name string) *payments.Customer {
	if customerID == "" {
		return nil
	}
	var cust *stripe.Customer
	ok := d.execute(ctx, "sync_customer", func(ctx context.Context) error {
		params := &stripe.CustomerParams{}
		if email != "" {
			params.Email = stripe.String(email)
		}
		if name != "" {
			params.Name = stripe.String(name)
		}
		updated, err := d.api.CustomerUpdate(ctx, customerID, params)
		if err != nil {
			return classify(err, "sync_customer")
		}
		cust = updated
		return nil
	})
	if !ok || cust == nil {
		return nil
	}
	return fromStripeCustomer(cust)
}

func (d *Driver) BillingPortalURL(ctx context.Context, customerID, returnURL string) string {
	if customerID == "" {
		return ""
	}
	var sess *stripe.BillingPortalSession
	ok := d.execute(ctx, "billing_portal_url", func(ctx context.Context) error {
		params := &stripe.BillingPortalSessionParams{
			Customer: stripe.String(customerID),
		}
		if returnURL != "" {
			params.ReturnURL = stripe.String(returnURL)
		}
		created, err := d.api.BillingPortalSessionNew(ctx, params)
		if err != nil {
			return classify(err, "billing_portal_url")
		}
		sess = created
		return nil
	})
	if !ok || sess == nil {
		return ""
	}
	return sess.URL
}

// CreatePaymentMethod attaches a provider-tokenized instrument to the
// customer. Stripe instruments are created client side; the server only
// ever sees the method id.
func (d *Driver) CreatePaymentMethod(ctx context.Context, customerID, providerMethodID string) *payments.PaymentMethod {
	if customerID == "" || providerMethodID == "" {
		return nil
	}
	var pm *stripe.PaymentMethod
	ok := d.execute(ctx, "create_payment_method", func(ctx context.Context) error {
		params := &stripe.PaymentMethodAttachParams{
			Customer: stripe.String(customerID),
		}
		attached, err := d.api.PaymentMethodAttach(ctx, providerMethodID, params)
		if err != nil {
			return classify(err, "create_payment_method")
		}
		pm = attached
		return nil
	})
	if !ok || pm == nil {
		return nil
	}
	return fromStripePaymentMethod(pm)
}

func (d *Driver) GetPaymentMethod(ctx context.Context, paymentMethodID string) *payments.PaymentMethod {
	if paymentMethodID == "" {
		return nil
	}
	var pm *stripe.PaymentMethod
	ok := d.execute(ctx, "get_payment_method", func(ctx context.Context) error {
		fetched, err := d.api.PaymentMethodGet(ctx, paymentMethodID, nil)
		if err != nil {
			return classify(err, "get_payment_method")
		}
		pm = fetched
		return nil
	})
	if !ok || pm == nil {
		return nil
	}
	return fromStripePaymentMethod(pm)
}

// UpdatePaymentMethod corrects card expiry; the number itself can never
// change on an attached instrument.
func (d *Driver) UpdatePaymentMethod(ctx context.Context, paymentMethodID string, expMonth, expYear int64) *payments.PaymentMethod {
	if paymentMethodID == "" || expMonth <= 0 || expYear <= 0 {
		return nil
	}
	var pm *stripe.PaymentMethod
	ok := d.execute(ctx, "update_payment_method", func(ctx context.Context) error {
		params := &stripe.PaymentMethodParams{
			Card: &stripe.PaymentMethodCardParams{
				ExpMonth: stripe.Int64(expMonth),
				ExpYear:  stripe.Int64(expYear),
			},
		}
		updated, err := d.api.PaymentMethodUpdate(ctx, paymentMethodID, params)
		if err != nil {
			return classify(err, "update_payment_method")
		}
		pm = updated
		return nil
	})
	if !ok || pm == nil {
		return nil
	}
	return fromStripePaymentMethod(pm)
}

func (d *Driver) DeletePaymentMethod(ctx context.Context, paymentMethodID string) bool {
	if paymentMethodID == "" {
		return false
	}
	return d.execute(ctx, "delete_payment_method", func(ctx context.Context) error {
		_, err := d.api.PaymentMethodDetach(ctx, paymentMethodID, nil)
		if err != nil {
			return classify(err, "delete_payment_method")
		}
		return nil
	})
}

func (d *Driver) CreateCoupon(ctx context.Context, couponParams payments.CouponParams) *payments.Coupon {
	if couponParams.PercentOff <= 0 && couponParams.AmountOffCents <= 0 {
		return nil
	}
	var cpn *stripe.Coupon
	ok := d.execute(ctx, "create_coupon", func(ctx context.Context) error {
		params := &stripe.CouponParams{}
		if couponParams.Name != "" {
			params.Name = stripe.String(couponParams.Name)
		}
		if couponParams.PercentOff > 0 {
			params.PercentOff = stripe.Float64(couponParams.PercentOff)
		} else {
			params.AmountOff = stripe.Int64(couponParams.AmountOffCents)
			params.Currency = stripe.String(strings.ToLower(couponParams.Currency.String()))
		}
		if couponParams.Duration != "" {
			params.Duration = stripe.String(couponParams.Duration)
		}
		created, err := d.api.CouponNew(ctx, params)
		if err != nil {
			return classify(err, "create_coupon")
		}
		cpn = created
		return nil
	})
	if !ok || cpn == nil {
		return nil
	}
	return fromStripeCoupon(cpn)
}

func (d *Driver) StartSubscription(ctx context.Context, customerID, priceID string) *payments.Subscription {
	if customerID == "" || priceID == "" {
		return nil
	}
	var sub *stripe.Subscription
	ok := d.execute(ctx, "start_subscription", func(ctx context.Context) error {
		params := &stripe.SubscriptionParams{
			Customer: stripe.String(customerID),
			Items: []*stripe.SubscriptionItemsParams{
				{Price: stripe.String(priceID)},
			},
		}
		created, err := d.api.SubscriptionNew(ctx, params)
		if err != nil {
			return classify(err, "start_subscription")
		}
		sub = created
		return nil
	})
	if !ok || sub == nil {
		return nil
	}
	return fromStripeSubscription(sub)
}

// SwapSubscription moves the subscription to a different price in place,
// replacing the single line item rather than cancel-and-recreate.
func (d *Driver) SwapSubscription(ctx context.Context, subscriptionID, priceID string) *payments.Subscription {
	if subscriptionID == "" || priceID == "" {
		return nil
	}
	var sub *stripe.Subscription
	ok := d.execute(ctx, "swap_subscription", func(ctx context.Context) error {
		current, err := d.api.SubscriptionGet(ctx, subscriptionID, nil)
		if err != nil {
			return classify(err, "swap_subscription")
		}
		if current.Items == nil || len(current.Items.Data) == 0 {
			return pkgerrors.New(pkgerrors.CodeDependency, "subscription has no items to swap")
		}
		params := &stripe.SubscriptionParams{
			Items: []*stripe.SubscriptionItemsParams{
				{
					ID:    stripe.String(current.Items.Data[0].ID),
					Price: stripe.String(priceID),
				},
			},
		}
		updated, err := d.api.SubscriptionUpdate(ctx, subscriptionID, params)
		if err != nil {
			return classify(err, "swap_subscription")
		}
		sub = updated
		return nil
	})
	if !ok || sub == nil {
		return nil
	}
	return fromStripeSubscription(sub)
}

// CancelSubscription schedules the cancellation for the period boundary;
// the customer stays entitled until then.
func (d *Driver) CancelSubscription(ctx context.Context, subscriptionID string) bool {
	if subscriptionID == "" {
		return false
	}
	return d.execute(ctx, "cancel_subscription", func(ctx context.Context) error {
		params := &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		}
		_, err := d.api.SubscriptionUpdate(ctx, subscriptionID, params)
		if err != nil {
			return classify(err, "cancel_subscription")
		}
		return nil
	})
}

// ContinueSubscription undoes a pending period-end cancellation.
func (d *Driver) ContinueSubscription(ctx context.Context, subscriptionID string) *payments.Subscription {
	if subscriptionID == "" {
		return nil
	}
	var sub *stripe.Subscription
	ok := d.execute(ctx, "continue_subscription", func(ctx context.Context) error {
		params := &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(false),
		}
		updated, err := d.api.SubscriptionUpdate(ctx, subscriptionID, params)
		if err != nil {
			return classify(err, "continue_subscription")
		}
		sub = updated
		return nil
	})
	if !ok || sub == nil {
		return nil
	}
	return fromStripeSubscription(sub)
}

func (d *Driver) UpdateSubscription(ctx context.Context, subscriptionID string, update payments.SubscriptionUpdate) *payments.Subscription {
	if subscriptionID == "" {
		return nil
	}
	if update.Quantity == nil && update.DefaultPaymentMethodID == nil {
		return nil
	}
	var sub *stripe.Subscription
	ok := d.execute(ctx, "update_subscription", func(ctx context.Context) error {
		params := &stripe.SubscriptionParams{}
		if update.DefaultPaymentMethodID != nil {
			params.DefaultPaymentMethod = stripe.String(*update.DefaultPaymentMethodID)
		}
		if update.Quantity != nil {
			current, err := d.api.SubscriptionGet(ctx, subscriptionID, nil)
			if err != nil {
				return classify(err, "update_subscription")
			}
			if current.Items == nil || len(current.Items.Data) == 0 {
				return pkgerrors.New(pkgerrors.CodeDependency, "subscription has no items to update")
			}
			params.Items = []*stripe.SubscriptionItemsParams{
				{
					ID:       stripe.String(current.Items.Data[0].ID),
					Quantity: stripe.Int64(*update.Quantity),
				},
			}
		}
		updated, err := d.api.SubscriptionUpdate(ctx, subscriptionID, params)
		if err != nil {
			return classify(err, "update_subscription")
		}
		sub = updated
		return nil
	})
	if !ok || sub == nil {
		return nil
	}
	return fromStripeSubscription(sub)
}

// CurrentSubscription returns the customer's newest active or trialing
// subscription, or nil when none entitles them.
func (d *Driver) CurrentSubscription(ctx context.Context, customerID string) *payments.Subscription {
	for _, sub := range d.ListSubscriptions(ctx, customerID) {
		sub := sub
		if sub.Active() {
			return &sub
		}
	}
	return nil
}

func (d *Driver) ListSubscriptions(ctx context.Context, customerID string) []payments.Subscription {
	if customerID == "" {
		return nil
	}
	var rows []*stripe.Subscription
	ok := d.execute(ctx, "list_subscriptions", func(ctx context.Context) error {
		params := &stripe.SubscriptionListParams{
			Customer: stripe.String(customerID),
			Status:   stripe.String("all"),
		}
		found, err := d.api.SubscriptionList(ctx, params)
		if err != nil {
			return classify(err, "list_subscriptions")
		}
		rows = found
		return nil
	})
	if !ok {
		return nil
	}
	subs := make([]payments.Subscription, 0, len(rows))
	for _, row := range rows {
		if mapped := fromStripeSubscription(row); mapped != nil {
			subs = append(subs, *mapped)
		}
	}
	return subs
}

func (d *Driver) CreateCheckoutSession(ctx context.Context, params payments.CheckoutParams) *payments.CheckoutSession {
	if params.Order == nil || len(params.Items) == 0 {
		return nil
	}
	successURL := params.SuccessURL
	if successURL == "" {
		successURL = d.checkoutURL
	}
	cancelURL := params.CancelURL
	if cancelURL == "" {
		cancelURL = d.checkoutURL
	}

	var sess *stripe.CheckoutSession
	ok := d.execute(ctx, "create_checkout_session", func(ctx context.Context) error {
		sessionParams := &stripe.CheckoutSessionParams{
			Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
			SuccessURL:        stripe.String(successURL),
			CancelURL:         stripe.String(cancelURL),
			ClientReferenceID: stripe.String(params.Order.ID.String()),
		}
		if params.CustomerID != "" {
			sessionParams.Customer = stripe.String(params.CustomerID)
		}
		for _, item := range params.Items {
			sessionParams.LineItems = append(sessionParams.LineItems, &stripe.CheckoutSessionLineItemParams{
				Quantity: stripe.Int64(int64(item.Qty)),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(params.Order.Currency.String())),
					UnitAmount: stripe.Int64(int64(item.UnitPriceCents)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(item.Name),
					},
				},
			})
		}
		created, err := d.api.CheckoutSessionNew(ctx, sessionParams)
		if err != nil {
			return classify(err, "create_checkout_session")
		}
		sess = created
		return nil
	})
	if !ok || sess == nil {
		return nil
	}
	return fromStripeCheckoutSession(sess)
}

func (d *Driver) GetCheckoutSession(ctx context.Context, sessionID string) *payments.CheckoutSession {
	if sessionID == "" {
		return nil
	}
	var sess *stripe.CheckoutSession
	ok := d.execute(ctx, "get_checkout_session", func(ctx context.Context) error {
		fetched, err := d.api.CheckoutSessionGet(ctx, sessionID, nil)
		if err != nil {
			return classify(err, "get_checkout_session")
		}
		sess = fetched
		return nil
	})
	if !ok || sess == nil {
		return nil
	}
	return fromStripeCheckoutSession(sess)
}

func (d *Driver) RefundOrder(ctx context.Context, order *models.Order, amountCents int, reason string) bool {
	if order == nil || order.ProviderPaymentIntentID == nil || amountCents <= 0 {
		return false
	}
	return d.execute(ctx, "refund_order", func(ctx context.Context) error {
		params := &stripe.RefundParams{
			PaymentIntent: stripe.String(*order.ProviderPaymentIntentID),
			Amount:        stripe.Int64(int64(amountCents)),
		}
		if reason != "" {
			params.Reason = stripe.String(reason)
		}
		_, err := d.api.RefundNew(ctx, params)
		if err != nil {
			return classify(err, "refund_order")
		}
		return nil
	})
}

// CancelOrder refunds the full captured amount; Stripe has no separate
// cancel primitive once payment is captured.
func (d *Driver) CancelOrder(ctx context.Context, order *models.Order) bool {
	if order == nil {
		return false
	}
	if order.AmountPaidCents <= 0 {
		return true
	}
	return d.RefundOrder(ctx, order, order.AmountPaidCents, "requested_by_customer")
}

// execute wraps a provider call with retry, metrics, and failure logging.
// It reports whether the call ultimately succeeded.
func (d *Driver) execute(ctx context.Context, op string, fn func(ctx context.Context) error) bool {
	start := time.Now()
	attempts, err := d.runner.Do(ctx, fn, pkgerrors.IsRateLimit)
	d.metrics.ObserveCallDuration(op, time.Since(start))
	for i := 1; i < attempts; i++ {
		d.metrics.IncRetry(op)
	}
	if err != nil {
		d.metrics.IncFailure(op)
		fields := map[string]any{
			"operation": op,
			"attempts":  attempts,
		}
		if typed := pkgerrors.As(err); typed != nil {
			fields["classification"] = string(typed.Code())
		}
		d.logg.Error(d.logg.WithFields(ctx, fields), fmt.Sprintf("stripe %s failed", op), err)
		return false
	}
	return true
}

func fromStripeAccount(acct *stripe.Account) *payments.ConnectedAccount {
	if acct == nil {
		return nil
	}
	account := &payments.ConnectedAccount{
		ID:               acct.ID,
		DetailsSubmitted: acct.DetailsSubmitted,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
	}
	if acct.Capabilities != nil {
		if acct.Capabilities.CardPayments == stripe.AccountCapabilityStatusActive {
			account.Capabilities = append(account.Capabilities, "card_payments")
		}
		if acct.Capabilities.Transfers == stripe.AccountCapabilityStatusActive {
			account.Capabilities = append(account.Capabilities, "transfers")
		}
	}
	return account
}

func fromStripeBalance(bal *stripe.Balance) *payments.Balance {
	if bal == nil {
		return nil
	}
	mapped := &payments.Balance{}
	for _, amount := range bal.Available {
		if amount == nil {
			continue
		}
		mapped.AvailableCents += amount.Amount
		mapped.Currency = enums.Currency(strings.ToUpper(string(amount.Currency)))
	}
	for _, amount := range bal.Pending {
		if amount == nil {
			continue
		}
		mapped.PendingCents += amount.Amount
	}
	return mapped
}

func fromStripePayout(po *stripe.Payout) *payments.PayoutResult {
	if po == nil {
		return nil
	}
	return &payments.PayoutResult{
		ID:          po.ID,
		Status:      string(po.Status),
		AmountCents: po.Amount,
		Currency:    enums.Currency(strings.ToUpper(string(po.Currency))),
		ArrivalDate: time.Unix(po.ArrivalDate, 0),
	}
}

func fromStripeTransfer(tr *stripe.Transfer) *payments.Transfer {
	if tr == nil {
		return nil
	}
	mapped := &payments.Transfer{
		ID:          tr.ID,
		AmountCents: tr.Amount,
		Currency:    enums.Currency(strings.ToUpper(string(tr.Currency))),
		Reversed:    tr.Reversed,
	}
	if tr.Destination != nil {
		mapped.DestinationAccountID = tr.Destination.ID
	}
	return mapped
}

func fromStripeProduct(prod *stripe.Product) *payments.ProviderProduct {
	if prod == nil {
		return nil
	}
	return &payments.ProviderProduct{
		ID:     prod.ID,
		Name:   prod.Name,
		Active: prod.Active,
	}
}

func fromStripePrice(pr *stripe.Price) *payments.ProviderPrice {
	if pr == nil {
		return nil
	}
	mapped := &payments.ProviderPrice{
		ID:          pr.ID,
		AmountCents: pr.UnitAmount,
		Currency:    enums.Currency(strings.ToUpper(string(pr.Currency))),
		Active:      pr.Active,
	}
	if pr.Product != nil {
		mapped.ProductID = pr.Product.ID
	}
	return mapped
}

func fromStripeCustomer(cust *stripe.Customer) *payments.Customer {
	if cust == nil {
		return nil
	}
	return &payments.Customer{
		ID:    cust.ID,
		Email: cust.Email,
		Name:  cust.Name,
	}
}

func fromStripeCheckoutSession(sess *stripe.CheckoutSession) *payments.CheckoutSession {
	if sess == nil {
		return nil
	}
	mapped := &payments.CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		PaymentStatus: string(sess.PaymentStatus),
		AmountCents:   sess.AmountTotal,
	}
	if sess.PaymentIntent != nil {
		mapped.PaymentIntentID = sess.PaymentIntent.ID
	}
	return mapped
}

func fromStripePaymentMethod(pm *stripe.PaymentMethod) *payments.PaymentMethod {
	if pm == nil {
		return nil
	}
	mapped := &payments.PaymentMethod{
		ID:   pm.ID,
		Type: string(pm.Type),
	}
	if pm.Customer != nil {
		mapped.CustomerID = pm.Customer.ID
	}
	if pm.Card != nil {
		mapped.Brand = string(pm.Card.Brand)
		mapped.Last4 = pm.Card.Last4
		mapped.ExpMonth = pm.Card.ExpMonth
		mapped.ExpYear = pm.Card.ExpYear
	}
	return mapped
}

func fromStripeCoupon(cpn *stripe.Coupon) *payments.Coupon {
	if cpn == nil {
		return nil
	}
	return &payments.Coupon{
		ID:             cpn.ID,
		Name:           cpn.Name,
		PercentOff:     cpn.PercentOff,
		AmountOffCents: cpn.AmountOff,
		Currency:       enums.Currency(strings.ToUpper(string(cpn.Currency))),
		Duration:       string(cpn.Duration),
	}
}

func fromStripeSubscription(sub *stripe.Subscription) *payments.Subscription {
	if sub == nil {
		return nil
	}
	mapped := &payments.Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		mapped.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		mapped.Quantity = item.Quantity
		mapped.PeriodEnd = time.Unix(item.CurrentPeriodEnd, 0)
		if item.Price != nil {
			mapped.PriceID = item.Price.ID
		}
	}
	return mapped
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}

var _ payments.Driver = (*Driver)(nil)
