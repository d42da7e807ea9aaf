package checkout

import (
	"context"
	"strings"

	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
)

// Gateway submits session descriptions to the payment processor. Implementations
// must not retry.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	FetchSubscription(ctx context.Context, subscriptionID string) (SubscriptionSnapshot, error)
}

// validateRequest rejects descriptions the processor would refuse anyway.
func validateRequest(req SessionRequest) error {
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "session request missing user id")
	case req.AmountMinorUnits <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "session amount must be positive")
	case strings.TrimSpace(req.Currency) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "session currency is required")
	case req.Mode != ModeSubscription && req.Mode != ModePayment:
		return pkgerrors.New(pkgerrors.CodeValidation, "session mode is invalid")
	case req.SuccessURL == "" || req.CancelURL == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "session redirect urls are required")
	case strings.TrimSpace(req.ItemName) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "session line item name is required")
	case req.Mode == ModeSubscription && req.BillingPeriod.StripeInterval() == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription sessions need a recurring billing period")
	}
	return nil
}
