package stripe

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/mvickers/tradepost-backend/pkg/errors"
)

// classify maps a Stripe API error onto the domain error taxonomy. Rate
// limits are the only retryable class; everything else is logged once and
// degraded to the default return value.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}

	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
	}

	if stripeErr.HTTPStatusCode == http.StatusTooManyRequests || stripeErr.Code == stripe.ErrorCodeRateLimit {
		return pkgerrors.Wrap(pkgerrors.CodeRateLimit, err, fmt.Sprintf("stripe %s rate limited", op))
	}

	switch {
	case stripeErr.HTTPStatusCode == http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, fmt.Sprintf("stripe %s failed", op))
	case stripeErr.HTTPStatusCode == http.StatusConflict:
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, fmt.Sprintf("stripe %s failed", op))
	case stripeErr.HTTPStatusCode >= 500:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
	case stripeErr.HTTPStatusCode >= 400:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("stripe %s failed", op))
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
	}
}
