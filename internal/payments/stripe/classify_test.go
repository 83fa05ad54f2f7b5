package stripe

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/mvickers/tradepost-backend/pkg/errors"
)

func TestClassifyRateLimit(t *testing.T) {
	err := classify(&stripe.Error{
		Code:           stripe.ErrorCodeRateLimit,
		HTTPStatusCode: http.StatusTooManyRequests,
	}, "create_payout")

	if !pkgerrors.IsRateLimit(err) {
		t.Fatalf("expected rate-limit classification, got %v", err)
	}
}

func TestClassifyStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		want   pkgerrors.Code
	}{
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusUnprocessableEntity, pkgerrors.CodeValidation},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
		{http.StatusBadGateway, pkgerrors.CodeDependency},
	}

	for _, tc := range cases {
		err := classify(&stripe.Error{HTTPStatusCode: tc.status}, "op")
		if !pkgerrors.IsCode(err, tc.want) {
			t.Fatalf("status %d: expected %s, got %v", tc.status, tc.want, err)
		}
	}
}

func TestClassifyNonStripeError(t *testing.T) {
	err := classify(errors.New("connection reset"), "op")
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency classification, got %v", err)
	}
}

func TestClassifyNil(t *testing.T) {
	if err := classify(nil, "op"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
