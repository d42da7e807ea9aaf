package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/tinkerly/tinkerly-backend/internal/checkout"
	"github.com/tinkerly/tinkerly-backend/internal/entitlements"
	"github.com/tinkerly/tinkerly-backend/pkg/db/models"
	"github.com/tinkerly/tinkerly-backend/pkg/enums"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
	"github.com/tinkerly/tinkerly-backend/pkg/metrics"
)

// Outcome labels how an event was handled.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeIgnored   Outcome = "ignored"
)

type entitlementUpdater interface {
	Apply(ctx context.Context, input entitlements.ApplyInput) (*models.Entitlement, error)
	RevokeSubscription(ctx context.Context, subscriptionID string) error
}

type projectUpdater interface {
	UpdateStatus(ctx context.Context, projectID uuid.UUID, status enums.ProjectStatus) error
}

type ServiceParams struct {
	Entitlements entitlementUpdater
	Projects     projectUpdater
	Metrics      *metrics.BillingMetrics
	Logger       *logger.Logger
}

// Service turns verified Stripe events into entitlement and project changes.
type Service struct {
	entitlements entitlementUpdater
	projects     projectUpdater
	metrics      *metrics.BillingMetrics
	logg         *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Entitlements == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		entitlements: params.Entitlements,
		projects:     params.Projects,
		metrics:      params.Metrics,
		logg:         logg,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil || event.Data == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithEventID(ctx, event.ID)

	var (
		outcome Outcome
		err     error
	)
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		outcome, err = s.completeCheckout(ctx, &sess)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		err = s.entitlements.RevokeSubscription(ctx, sub.ID)
		outcome = OutcomeProcessed
	default:
		outcome = OutcomeIgnored
	}

	if err != nil {
		s.metrics.IncWebhook(string(event.Type), "failed")
		return "", err
	}
	s.metrics.IncWebhook(string(event.Type), string(outcome))
	return outcome, nil
}

func (s *Service) completeCheckout(ctx context.Context, sess *stripe.CheckoutSession) (Outcome, error) {
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		s.logg.Info(ctx, fmt.Sprintf("checkout session %s not paid yet (%s)", sess.ID, sess.PaymentStatus))
		return OutcomeIgnored, nil
	}

	meta := sess.Metadata
	userID := strings.TrimSpace(meta[checkout.MetaUserID])
	if userID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "checkout session metadata missing userId")
	}
	if sess.ClientReferenceID != "" && sess.ClientReferenceID != userID {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "checkout session reference does not match metadata")
	}
	ctx = s.logg.WithUserID(ctx, userID)

	switch enums.PurchaseType(meta[checkout.MetaType]) {
	case enums.PurchaseTypeSubscription:
		subscriptionID := ""
		if sess.Subscription != nil {
			subscriptionID = sess.Subscription.ID
		}
		if subscriptionID == "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "subscription checkout without subscription id")
		}
		if _, err := s.entitlements.Apply(ctx, entitlements.ApplyInput{
			UserID:         userID,
			CatalogEntryID: meta[checkout.MetaCatalogEntryID],
			SubscriptionID: subscriptionID,
		}); err != nil {
			return "", err
		}
	case enums.PurchaseTypeCredits:
		if _, err := s.entitlements.Apply(ctx, entitlements.ApplyInput{
			UserID:         userID,
			CatalogEntryID: meta[checkout.MetaCatalogEntryID],
		}); err != nil {
			return "", err
		}
	case enums.PurchaseTypeProjectPayment:
		projectID, err := uuid.Parse(meta[checkout.MetaProjectID])
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout session metadata has an invalid projectId")
		}
		if s.projects == nil {
			return "", pkgerrors.New(pkgerrors.CodeConfig, "project store is not configured")
		}
		if err := s.projects.UpdateStatus(ctx, projectID, enums.ProjectStatusInDevelopment); err != nil {
			return "", err
		}
	default:
		s.logg.Warn(ctx, fmt.Sprintf("checkout session %s has unknown purchase type %q", sess.ID, meta[checkout.MetaType]))
		return OutcomeIgnored, nil
	}

	s.logg.Info(ctx, fmt.Sprintf("checkout session %s fulfilled", sess.ID))
	return OutcomeProcessed, nil
}
