package entitlements

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tinkerly/tinkerly-backend/internal/checkout"
	"github.com/tinkerly/tinkerly-backend/internal/pricing"
	"github.com/tinkerly/tinkerly-backend/pkg/db"
	"github.com/tinkerly/tinkerly-backend/pkg/db/models"
	"github.com/tinkerly/tinkerly-backend/pkg/enums"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
	"github.com/tinkerly/tinkerly-backend/pkg/metrics"
)

// SubscriptionFetcher confirms a subscription with the payment processor.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, subscriptionID string) (checkout.SubscriptionSnapshot, error)
}

// Service applies confirmed purchases and meters analysis usage.
type Service interface {
	Apply(ctx context.Context, input ApplyInput) (*models.Entitlement, error)
	RevokeSubscription(ctx context.Context, subscriptionID string) error
	Get(ctx context.Context, userID string) (*models.Entitlement, error)
	CheckAnalysisQuota(ctx context.Context, userID string) (Quota, error)
	ConsumeAnalysis(ctx context.Context, userID string) (Quota, error)
	RefundAnalysis(ctx context.Context, userID string, source QuotaSource) error
	ResetAnalyses(ctx context.Context) (int64, error)
	VerifyAndApplyTierUpdate(ctx context.Context, input TierUpdateInput) (*models.Entitlement, error)
}

// ApplyInput describes a confirmed purchase.
type ApplyInput struct {
	UserID         string
	CatalogEntryID string
	SubscriptionID string
}

// TierUpdateInput is a client-reported subscription completion.
type TierUpdateInput struct {
	UserID         string
	Tier           string
	SubscriptionID string
}

type ServiceParams struct {
	Repo          Repository
	Catalog       *pricing.Catalog
	Tx            db.Transactor
	Subscriptions SubscriptionFetcher
	Metrics       *metrics.BillingMetrics
	Logger        *logger.Logger
	// Clock defaults to time.Now.
	Clock         func() time.Time
}

type service struct {
	repo          Repository
	catalog       *pricing.Catalog
	tx            db.Transactor
	subscriptions SubscriptionFetcher
	metrics       *metrics.BillingMetrics
	logg          *logger.Logger
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("entitlement repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("pricing catalog required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:          params.Repo,
		catalog:       params.Catalog,
		tx:            params.Tx,
		subscriptions: params.Subscriptions,
		metrics:       params.Metrics,
		logg:          logg,
		now:           now,
	}, nil
}

// period is the UTC calendar month analysis allowances are metered in.
func (s *service) period() string {
	return s.now().UTC().Format("2006-01")
}

func (s *service) Apply(ctx context.Context, input ApplyInput) (*models.Entitlement, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "userId is required")
	}
	entry, err := s.catalog.Lookup(input.CatalogEntryID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithUserID(ctx, userID)
	ctx = s.logg.WithCatalogEntry(ctx, entry.ID)

	var updated *models.Entitlement
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Ensure(ctx, userID, s.period()); err != nil {
			return err
		}
		switch entry.Kind {
		case enums.PurchaseTypeSubscription:
			var subID *string
			if id := strings.TrimSpace(input.SubscriptionID); id != "" && !entry.IsFree() {
				subID = &id
			}
			if err := repo.SetTier(ctx, userID, entry.Tier(), subID); err != nil {
				return err
			}
		case enums.PurchaseTypeCredits:
			if err := repo.AddCredits(ctx, userID, entry.EntitlementQuantity); err != nil {
				return err
			}
		default:
			return pkgerrors.Newf(pkgerrors.CodeValidation, "catalog entry %s is not an entitlement", entry.ID)
		}
		row, err := repo.Find(ctx, userID)
		if err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, persistence(err, "apply entitlement")
	}

	s.metrics.IncEntitlement(string(entry.Kind))
	s.logg.Info(ctx, "entitlement applied")
	return updated, nil
}

func (s *service) RevokeSubscription(ctx context.Context, subscriptionID string) error {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	ctx = s.logg.WithField(ctx, "subscription_id", subscriptionID)

	affected, err := s.repo.RevokeSubscription(ctx, subscriptionID)
	if err != nil {
		return persistence(err, "revoke subscription")
	}
	if affected == 0 {
		s.logg.Warn(ctx, "no entitlement held the cancelled subscription")
		return nil
	}
	s.metrics.IncEntitlement("revoke")
	s.logg.Info(ctx, "subscription revoked, tier reset to free")
	return nil
}

// Get returns the stored entitlement or an unsaved free default.
func (s *service) Get(ctx context.Context, userID string) (*models.Entitlement, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "userId is required")
	}
	row, err := s.repo.Find(ctx, userID)
	if err != nil {
		return nil, persistence(err, "load entitlement")
	}
	if row == nil {
		return &models.Entitlement{UserID: userID, Tier: enums.SubscriptionTierFree}, nil
	}
	return row, nil
}

// ResetAnalyses starts the current period. It runs at most once per period no
// matter how often the worker restarts or the cron route is called.
func (s *service) ResetAnalyses(ctx context.Context) (int64, error) {
	period := s.period()
	affected, err := s.repo.ResetAnalyses(ctx, period)
	if err != nil {
		return 0, persistence(err, "reset analyses")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"period": period, "affected": affected}), "entitlements.analyses_reset")
	return affected, nil
}

// VerifyAndApplyTierUpdate applies a client-reported tier only after Stripe
// confirms the subscription belongs to the caller and was bought for that tier.
func (s *service) VerifyAndApplyTierUpdate(ctx context.Context, input TierUpdateInput) (*models.Entitlement, error) {
	tierID := strings.ToLower(strings.TrimSpace(input.Tier))
	entry, err := s.catalog.LookupKind(tierID, enums.PurchaseTypeSubscription)
	if err != nil {
		return nil, err
	}
	if entry.IsFree() {
		if err := s.ensureNoLiveSubscription(ctx, input.UserID); err != nil {
			return nil, err
		}
		return s.Apply(ctx, ApplyInput{UserID: input.UserID, CatalogEntryID: entry.ID})
	}

	subscriptionID := strings.TrimSpace(input.SubscriptionID)
	if subscriptionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripeSubscriptionId is required for paid tiers")
	}
	if s.subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "payment processor is not configured")
	}

	snapshot, err := s.subscriptions.FetchSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !snapshot.Status.Entitling() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "subscription is %s, not active", snapshot.Status)
	}
	if snapshot.Metadata[checkout.MetaUserID] != strings.TrimSpace(input.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "subscription belongs to another user")
	}
	if snapshot.Metadata[checkout.MetaCatalogEntryID] != entry.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "subscription was not purchased for this tier")
	}

	return s.Apply(ctx, ApplyInput{UserID: input.UserID, CatalogEntryID: entry.ID, SubscriptionID: snapshot.ID})
}

// ensureNoLiveSubscription refuses a downgrade to free while the stored
// subscription still entitles the user. The row keeps the subscription id
// until Stripe reports the cancellation.
func (s *service) ensureNoLiveSubscription(ctx context.Context, userID string) error {
	row, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if row.Tier == enums.SubscriptionTierFree || row.StripeSubscriptionID == nil || *row.StripeSubscriptionID == "" {
		return nil
	}
	if s.subscriptions == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cancel the paid subscription before downgrading to free")
	}
	snapshot, err := s.subscriptions.FetchSubscription(ctx, *row.StripeSubscriptionID)
	if err != nil {
		return err
	}
	if snapshot.Status.Entitling() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cancel the paid subscription before downgrading to free")
	}
	return nil
}

func persistence(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, op+" failed")
}
