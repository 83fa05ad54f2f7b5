package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/accountlink"
	"github.com/stripe/stripe-go/v84/balance"
	portalsession "github.com/stripe/stripe-go/v84/billingportal/session"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/coupon"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/loginlink"
	"github.com/stripe/stripe-go/v84/paymentmethod"
	"github.com/stripe/stripe-go/v84/payout"
	"github.com/stripe/stripe-go/v84/price"
	"github.com/stripe/stripe-go/v84/product"
	"github.com/stripe/stripe-go/v84/refund"
	"github.com/stripe/stripe-go/v84/subscription"
	"github.com/stripe/stripe-go/v84/transfer"
	"github.com/stripe/stripe-go/v84/transferreversal"
)

// api is the subset of Stripe operations the driver needs, kept behind an
// interface so the driver can be tested without real I/O.
type api interface {
	AccountNew(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error)
	AccountGet(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error)
	AccountUpdate(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error)
	AccountDelete(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error)
	AccountLinkNew(ctx context.Context, params *stripe.AccountLinkParams) (*stripe.AccountLink, error)
	LoginLinkNew(ctx context.Context, params *stripe.LoginLinkParams) (*stripe.LoginLink, error)

	BalanceGet(ctx context.Context, params *stripe.BalanceParams) (*stripe.Balance, error)

	PayoutNew(ctx context.Context, params *stripe.PayoutParams) (*stripe.Payout, error)
	PayoutGet(ctx context.Context, id string, params *stripe.PayoutParams) (*stripe.Payout, error)
	PayoutCancel(ctx context.Context, id string, params *stripe.PayoutParams) (*stripe.Payout, error)
	PayoutList(ctx context.Context, params *stripe.PayoutListParams) ([]*stripe.Payout, error)

	TransferNew(ctx context.Context, params *stripe.TransferParams) (*stripe.Transfer, error)
	TransferGet(ctx context.Context, id string, params *stripe.TransferParams) (*stripe.Transfer, error)
	TransferReversalNew(ctx context.Context, params *stripe.TransferReversalParams) (*stripe.TransferReversal, error)

	ProductNew(ctx context.Context, params *stripe.ProductParams) (*stripe.Product, error)
	ProductUpdate(ctx context.Context, id string, params *stripe.ProductParams) (*stripe.Product, error)
	ProductDelete(ctx context.Context, id string, params *stripe.ProductParams) (*stripe.Product, error)
	PriceNew(ctx context.Context, params *stripe.PriceParams) (*stripe.Price, error)
	PriceUpdate(ctx context.Context, id string, params *stripe.PriceParams) (*stripe.Price, error)

	CustomerNew(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	CustomerGet(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)
	CustomerUpdate(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)
	CustomerDelete(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)
	CustomerSearch(ctx context.Context, params *stripe.CustomerSearchParams) ([]*stripe.Customer, error)

	PaymentMethodAttach(ctx context.Context, id string, params *stripe.PaymentMethodAttachParams) (*stripe.PaymentMethod, error)
	PaymentMethodGet(ctx context.Context, id string, params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error)
	PaymentMethodUpdate(ctx context.Context, id string, params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error)
	PaymentMethodDetach(ctx context.Context, id string, params *stripe.PaymentMethodDetachParams) (*stripe.PaymentMethod, error)

	CouponNew(ctx context.Context, params *stripe.CouponParams) (*stripe.Coupon, error)

	SubscriptionNew(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	SubscriptionGet(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	SubscriptionUpdate(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	SubscriptionCancel(ctx context.Context, id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error)
	SubscriptionList(ctx context.Context, params *stripe.SubscriptionListParams) ([]*stripe.Subscription, error)

	BillingPortalSessionNew(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)

	CheckoutSessionNew(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CheckoutSessionGet(ctx context.Context, id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	RefundNew(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error)
}

type liveAPI struct{}

func (liveAPI) AccountNew(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error) {
	if params != nil {
		params.Context = ctx
	}
	return account.New(params)
}

func (liveAPI) AccountGet(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error) {
	if params == nil {
		params = &stripe.AccountParams{}
	}
	params.Context = ctx
	return account.GetByID(id, params)
}

func (liveAPI) AccountUpdate(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error) {
	if params != nil {
		params.Context = ctx
	}
	return account.Update(id, params)
}

func (liveAPI) AccountDelete(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error) {
	if params != nil {
		params.Context = ctx
	}
	return account.Del(id, params)
}

func (liveAPI) AccountLinkNew(ctx context.Context, params *stripe.AccountLinkParams) (*stripe.AccountLink, error) {
	if params != nil {
		params.Context = ctx
	}
	return accountlink.New(params)
}

func (liveAPI) LoginLinkNew(ctx context.Context, params *stripe.LoginLinkParams) (*stripe.LoginLink, error) {
	if params != nil {
		params.Context = ctx
	}
	return loginlink.New(params)
}

func (liveAPI) BalanceGet(ctx context.Context, params *stripe.BalanceParams) (*stripe.Balance, error) {
	if params == nil {
		params = &stripe.BalanceParams{}
	}
	params.Context = ctx
	return balance.Get(params)
}

func (liveAPI) PayoutNew(ctx context.Context, params *stripe.PayoutParams) (*stripe.Payout, error) {
	if params != nil {
		params.Context = ctx
	}
	return payout.New(params)
}

func (liveAPI) PayoutGet(ctx context.Context, id string, params *stripe.PayoutParams) (*stripe.Payout, error) {
	if params == nil {
		params = &stripe.PayoutParams{}
	}
	params.Context = ctx
	return payout.Get(id, params)
}

func (liveAPI) PayoutCancel(ctx context.Context, id string, params *stripe.PayoutParams) (*stripe.Payout, error) {
	if params == nil {
		params = &stripe.PayoutParams{}
	}
	params.Context = ctx
	return payout.Cancel(id, params)
}

func (liveAPI) PayoutList(ctx context.Context, params *stripe.PayoutListParams) ([]*stripe.Payout, error) {
	if params == nil {
		params = &stripe.PayoutListParams{}
	}
	params.Context = ctx
	iter := payout.List(params)
	var payouts []*stripe.Payout
	for iter.Next() {
		payouts = append(payouts, iter.Payout())
	}
	return payouts, iter.Err()
}

func (liveAPI) TransferNew(ctx context.Context, params *stripe.TransferParams) (*stripe.Transfer, error) {
	if params != nil {
		params.Context = ctx
	}
	return transfer.New(params)
}

func (liveAPI) TransferGet(ctx context.Context, id string, params *stripe.TransferParams) (*stripe.Transfer, error) {
	if params == nil {
		params = &stripe.TransferParams{}
	}
	params.Context = ctx
	return transfer.Get(id, params)
}

func (liveAPI) TransferReversalNew(ctx context.Context, params *stripe.TransferReversalParams) (*stripe.TransferReversal, error) {
	if params != nil {
		params.Context = ctx
	}
	return transferreversal.New(params)
}

func (liveAPI) ProductNew(ctx context.Context, params *stripe.ProductParams) (*stripe.Product, error) {
	if params != nil {
		params.Context = ctx
	}
	return product.New(params)
}

func (liveAPI) ProductUpdate(ctx context.Context, id string, params *stripe.ProductParams) (*stripe.Product, error) {
	if params != nil {
		params.Context = ctx
	}
	return product.Update(id, params)
}

func (liveAPI) ProductDelete(ctx context.Context, id string, params *stripe.ProductParams) (*stripe.Product, error) {
	if params != nil {
		params.Context = ctx
	}
	return product.Del(id, params)
}

func (liveAPI) PriceNew(ctx context.Context, params *stripe.PriceParams) (*stripe.Price, error) {
	if params != nil {
		params.Context = ctx
	}
	return price.New(params)
}

func (liveAPI) PriceUpdate(ctx context.Context, id string, params *stripe.PriceParams) (*stripe.Price, error) {
	if params != nil {
		params.Context = ctx
	}
	return price.Update(id, params)
}

func (liveAPI) CustomerNew(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.New(params)
}

func (liveAPI) CustomerGet(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params == nil {
		params = &stripe.CustomerParams{}
	}
	params.Context = ctx
	return customer.Get(id, params)
}

func (liveAPI) CustomerUpdate(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.Update(id, params)
}

func (liveAPI) CustomerDelete(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params == nil {
		params = &stripe.CustomerParams{}
	}
	params.Context = ctx
	return customer.Del(id, params)
}

func (liveAPI) CustomerSearch(ctx context.Context, params *stripe.CustomerSearchParams) ([]*stripe.Customer, error) {
	if params == nil {
		params = &stripe.CustomerSearchParams{}
	}
	params.Context = ctx
	iter := customer.Search(params)
	var customers []*stripe.Customer
	for iter.Next() {
		customers = append(customers, iter.Customer())
	}
	return customers, iter.Err()
}

func (liveAPI) CheckoutSessionNew(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}

func (liveAPI) CheckoutSessionGet(ctx context.Context, id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params == nil {
		params = &stripe.CheckoutSessionParams{}
	}
	params.Context = ctx
	return session.Get(id, params)
}

func (liveAPI) RefundNew(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error) {
	if params != nil {
		params.Context = ctx
	}
	return refund.New(params)
}

func (liveAPI) PaymentMethodAttach(ctx context.Context, id string, params *stripe.PaymentMethodAttachParams) (*stripe.PaymentMethod, error) {
	if params == nil {
		params = &stripe.PaymentMethodAttachParams{}
	}
	params.Context = ctx
	return paymentmethod.Attach(id, params)
}

func (liveAPI) PaymentMethodGet(ctx context.Context, id string, params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error) {
	if params == nil {
		params = &stripe.PaymentMethodParams{}
	}
	params.Context = ctx
	return paymentmethod.Get(id, params)
}

func (liveAPI) PaymentMethodUpdate(ctx context.Context, id string, params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentmethod.Update(id, params)
}

func (liveAPI) PaymentMethodDetach(ctx context.Context, id string, params *stripe.PaymentMethodDetachParams) (*stripe.PaymentMethod, error) {
	if params == nil {
		params = &stripe.PaymentMethodDetachParams{}
	}
	params.Context = ctx
	return paymentmethod.Detach(id, params)
}

func (liveAPI) CouponNew(ctx context.Context, params *stripe.CouponParams) (*stripe.Coupon, error) {
	if params != nil {
		params.Context = ctx
	}
	return coupon.New(params)
}

func (liveAPI) SubscriptionNew(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params != nil {
		params.Context = ctx
	}
	return subscription.New(params)
}

func (liveAPI) SubscriptionGet(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params == nil {
		params = &stripe.SubscriptionParams{}
	}
	params.Context = ctx
	return subscription.Get(id, params)
}

func (liveAPI) SubscriptionUpdate(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params != nil {
		params.Context = ctx
	}
	return subscription.Update(id, params)
}

func (liveAPI) SubscriptionCancel(ctx context.Context, id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error) {
	if params == nil {
		params = &stripe.SubscriptionCancelParams{}
	}
	params.Context = ctx
	return subscription.Cancel(id, params)
}

func (liveAPI) SubscriptionList(ctx context.Context, params *stripe.SubscriptionListParams) ([]*stripe.Subscription, error) {
	if params == nil {
		params = &stripe.SubscriptionListParams{}
	}
	params.Context = ctx
	iter := subscription.List(params)
	var subs []*stripe.Subscription
	for iter.Next() {
		subs = append(subs, iter.Subscription())
	}
	return subs, iter.Err()
}

func (liveAPI) BillingPortalSessionNew(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return portalsession.New(params)
}
