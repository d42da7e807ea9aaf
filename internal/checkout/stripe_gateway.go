package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/tinkerly/tinkerly-backend/pkg/enums"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
)

const defaultGatewayTimeout = 10 * time.Second

// StripeGateway creates Stripe Checkout sessions. Every call runs under a
// bounded timeout and is attempted exactly once.
type StripeGateway struct {
	client  StripeCheckoutClient
	timeout time.Duration
}

// NewStripeGateway returns nil when client is nil so callers can answer CONFIG_ERROR.
func NewStripeGateway(client StripeCheckoutClient, timeout time.Duration) *StripeGateway {
	if client == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return &StripeGateway{client: client, timeout: timeout}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if g == nil || g.client == nil {
		return Session{}, pkgerrors.New(pkgerrors.CodeConfig, "payment processor is not configured")
	}
	if err := validateRequest(req); err != nil {
		return Session{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	created, err := g.client.CreateSession(callCtx, buildSessionParams(req))
	if err != nil {
		return Session{}, translateStripeError(callCtx, err, "create checkout session")
	}
	if created == nil || created.ID == "" {
		return Session{}, pkgerrors.New(pkgerrors.CodeGateway, "payment processor returned an empty session")
	}
	return Session{RedirectURL: created.URL, SessionID: created.ID}, nil
}

func (g *StripeGateway) FetchSubscription(ctx context.Context, subscriptionID string) (SubscriptionSnapshot, error) {
	if g == nil || g.client == nil {
		return SubscriptionSnapshot{}, pkgerrors.New(pkgerrors.CodeConfig, "payment processor is not configured")
	}
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return SubscriptionSnapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	sub, err := g.client.GetSubscription(callCtx, subscriptionID, nil)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return SubscriptionSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "subscription not found")
		}
		return SubscriptionSnapshot{}, translateStripeError(callCtx, err, "fetch subscription")
	}
	if sub == nil {
		return SubscriptionSnapshot{}, pkgerrors.New(pkgerrors.CodeGateway, "payment processor returned no subscription")
	}

	snapshot := SubscriptionSnapshot{
		ID:       sub.ID,
		Status:   enums.SubscriptionStatus(sub.Status),
		Metadata: sub.Metadata,
	}
	if sub.Customer != nil {
		snapshot.CustomerID = sub.Customer.ID
	}
	return snapshot, nil
}

func buildSessionParams(req SessionRequest) *stripe.CheckoutSessionParams {
	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.ItemName),
	}
	if req.ItemDescription != "" {
		productData.Description = stripe.String(req.ItemDescription)
	}

	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:    stripe.String(req.Currency),
		UnitAmount:  stripe.Int64(req.AmountMinorUnits),
		ProductData: productData,
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(req.Mode)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: priceData,
			Quantity:  stripe.Int64(1),
		}},
	}

	metadata := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		metadata[k] = v
		params.AddMetadata(k, v)
	}

	if req.Mode == ModeSubscription {
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(req.BillingPeriod.StripeInterval()),
		}
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{Metadata: metadata}
	} else {
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: metadata}
	}

	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	return params
}

// translateStripeError maps processor failures onto the uniform error shape
// without interpreting them.
func translateStripeError(ctx context.Context, err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s timed out", op))
	}
	if errors.Is(err, context.Canceled) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s cancelled", op))
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		msg := stripeErr.Msg
		if msg == "" {
			msg = fmt.Sprintf("%s failed", op)
		}
		details := map[string]any{
			"type":       string(stripeErr.Type),
			"code":       string(stripeErr.Code),
			"httpStatus": stripeErr.HTTPStatusCode,
		}
		if stripeErr.DeclineCode != "" {
			details["declineCode"] = string(stripeErr.DeclineCode)
		}
		if stripeErr.Param != "" {
			details["param"] = stripeErr.Param
		}
		if stripeErr.RequestID != "" {
			details["requestId"] = stripeErr.RequestID
		}
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, msg).WithDetails(details)
	}

	return pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("%s failed", op))
}
