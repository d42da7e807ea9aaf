package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinkerly/tinkerly-backend/internal/pricing"
	"github.com/tinkerly/tinkerly-backend/pkg/db/models"
	"github.com/tinkerly/tinkerly-backend/pkg/enums"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
	"github.com/tinkerly/tinkerly-backend/pkg/metrics"
)

// ProjectStore is the project persistence used to validate project payments.
type ProjectStore interface {
	FindForUser(ctx context.Context, userID string, projectID uuid.UUID) (*models.Project, error)
	UpdateStatus(ctx context.Context, projectID uuid.UUID, status enums.ProjectStatus) error
}

// Service creates hosted checkout sessions for catalog purchases and project payments.
type Service interface {
	CreateSubscriptionSession(ctx context.Context, intent Intent) (SubscriptionResult, error)
	CreateCreditSession(ctx context.Context, intent Intent) (Session, error)
	CreateProjectPaymentSession(ctx context.Context, intent ProjectIntent) (Session, error)
}

// SubscriptionResult is a session plus the echo of what was priced.
type SubscriptionResult struct {
	Session
	Debug SubscriptionDebug
}

type SubscriptionDebug struct {
	Tier    string `json:"tier"`
	Amount  int64  `json:"amount"`
	Credits int    `json:"credits"`
}

// ServiceParams groups dependencies for the checkout service. Gateway and
// Projects may be nil.
type ServiceParams struct {
	Builder  *Builder
	Gateway  Gateway
	Projects ProjectStore
	Metrics  *metrics.BillingMetrics
	Logger   *logger.Logger
}

type service struct {
	builder  *Builder
	gateway  Gateway
	projects ProjectStore
	metrics  *metrics.BillingMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Builder == nil {
		return nil, fmt.Errorf("session builder required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	gateway := params.Gateway
	if sg, ok := gateway.(*StripeGateway); ok && sg == nil {
		gateway = nil
	}
	return &service{
		builder:  params.Builder,
		gateway:  gateway,
		projects: params.Projects,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

func (s *service) CreateSubscriptionSession(ctx context.Context, intent Intent) (SubscriptionResult, error) {
	ctx = s.logg.WithUserID(ctx, intent.UserID)
	ctx = s.logg.WithCatalogEntry(ctx, intent.CatalogEntryID)

	req, entry, err := s.builder.Subscription(intent)
	if errors.Is(err, ErrFreePlan) {
		s.logg.Info(ctx, "free tier selected, skipping checkout")
		return SubscriptionResult{
			Session: Session{RedirectURL: s.builder.FreePlanURL(entry.ID)},
			Debug:   SubscriptionDebug{Tier: entry.ID, Amount: 0, Credits: entry.EntitlementQuantity},
		}, nil
	}
	if err != nil {
		return SubscriptionResult{}, err
	}

	session, err := s.submit(ctx, req)
	if err != nil {
		return SubscriptionResult{}, err
	}
	return SubscriptionResult{
		Session: session,
		Debug: SubscriptionDebug{
			Tier:    entry.ID,
			Amount:  req.AmountMinorUnits,
			Credits: entry.EntitlementQuantity,
		},
	}, nil
}

func (s *service) CreateCreditSession(ctx context.Context, intent Intent) (Session, error) {
	ctx = s.logg.WithUserID(ctx, intent.UserID)
	ctx = s.logg.WithCatalogEntry(ctx, intent.CatalogEntryID)

	req, _, err := s.builder.Credits(intent)
	if err != nil {
		if errors.Is(err, ErrFreePlan) {
			return Session{}, pkgerrors.Wrap(pkgerrors.CodeValidation, pricing.ErrInvalidPlan, "credit package has no price")
		}
		return Session{}, err
	}
	return s.submit(ctx, req)
}

func (s *service) CreateProjectPaymentSession(ctx context.Context, intent ProjectIntent) (Session, error) {
	ctx = s.logg.WithUserID(ctx, intent.UserID)

	req, err := s.builder.ProjectPayment(intent)
	if err != nil {
		return Session{}, err
	}
	projectID := uuid.MustParse(req.Metadata[MetaProjectID])
	ctx = s.logg.WithField(ctx, "project_id", projectID.String())

	if s.projects != nil {
		if err := s.checkProject(ctx, req.UserID, projectID, intent.Amount); err != nil {
			return Session{}, err
		}
	}

	session, err := s.submit(ctx, req)
	if err != nil {
		return Session{}, err
	}

	if s.projects != nil {
		if err := s.projects.UpdateStatus(ctx, projectID, enums.ProjectStatusPaymentPending); err != nil {
			s.logg.Error(ctx, "failed to mark project payment pending", err)
		}
	}
	return session, nil
}

func (s *service) checkProject(ctx context.Context, userID string, projectID uuid.UUID, amount decimal.Decimal) error {
	project, err := s.projects.FindForUser(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
	}
	if project.TotalCost.Valid && !project.TotalCost.Decimal.Equal(amount) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount does not match the project quote").
			WithDetails(map[string]any{"expected": project.TotalCost.Decimal.StringFixed(2)})
	}
	switch project.Status {
	case enums.ProjectStatusCompleted, enums.ProjectStatusCancelled, enums.ProjectStatusInDevelopment:
		return pkgerrors.Newf(pkgerrors.CodeValidation, "project in status %s cannot be paid", project.Status)
	}
	return nil
}

func (s *service) submit(ctx context.Context, req SessionRequest) (Session, error) {
	if s.gateway == nil {
		return Session{}, pkgerrors.New(pkgerrors.CodeConfig, "payment processor is not configured")
	}
	session, err := s.gateway.CreateSession(ctx, req)
	if err != nil {
		s.metrics.IncGatewayFailure(string(pkgerrors.CodeOf(err)))
		s.logg.Error(ctx, "checkout session creation failed", err)
		return Session{}, err
	}
	s.metrics.IncSession(string(req.Type))
	ctx = s.logg.WithField(ctx, "session_id", session.SessionID)
	s.logg.Info(ctx, "checkout session created")
	return session, nil
}
