package entitlements

import (
	"context"
	"strings"

	"github.com/tinkerly/tinkerly-backend/pkg/db/models"
	"github.com/tinkerly/tinkerly-backend/pkg/enums"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
)

// QuotaSource names where a consumed analysis was charged.
type QuotaSource string

const (
	QuotaSourceAllowance QuotaSource = "allowance"
	QuotaSourceCredits   QuotaSource = "credits"
)

// Quota is a user's analysis budget for the current period.
type Quota struct {
	Tier      enums.SubscriptionTier `json:"tier"`
	Allowance int                    `json:"allowance"`
	Used      int                    `json:"used"`
	Credits   int                    `json:"credits"`
	Source    QuotaSource            `json:"source,omitempty"`
}

// Remaining is the unused allowance plus purchased credits.
func (q Quota) Remaining() int {
	left := q.Allowance - q.Used
	if left < 0 {
		left = 0
	}
	return left + q.Credits
}

func (s *service) CheckAnalysisQuota(ctx context.Context, userID string) (Quota, error) {
	row, err := s.Get(ctx, userID)
	if err != nil {
		return Quota{}, err
	}
	quota := s.quotaFor(row)
	if quota.Remaining() == 0 {
		return quota, exhausted(quota)
	}
	return quota, nil
}

// ConsumeAnalysis charges one analysis to the tier allowance, falling back to
// one credit.
func (s *service) ConsumeAnalysis(ctx context.Context, userID string) (Quota, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Quota{}, pkgerrors.New(pkgerrors.CodeValidation, "userId is required")
	}
	if err := s.repo.Ensure(ctx, userID, s.period()); err != nil {
		return Quota{}, persistence(err, "ensure entitlement")
	}
	row, err := s.Get(ctx, userID)
	if err != nil {
		return Quota{}, err
	}
	quota := s.quotaFor(row)

	ok, err := s.repo.ConsumeAllowance(ctx, userID, quota.Allowance)
	if err != nil {
		return Quota{}, persistence(err, "consume analysis")
	}
	if ok {
		quota.Used++
		quota.Source = QuotaSourceAllowance
		return quota, nil
	}

	ok, err = s.repo.ConsumeCredit(ctx, userID)
	if err != nil {
		return Quota{}, persistence(err, "consume credit")
	}
	if !ok {
		if quota.Used < quota.Allowance {
			quota.Used = quota.Allowance
		}
		quota.Credits = 0
		return quota, exhausted(quota)
	}
	if quota.Used < quota.Allowance {
		quota.Used = quota.Allowance
	}
	quota.Credits--
	quota.Source = QuotaSourceCredits
	return quota, nil
}

// RefundAnalysis undoes a ConsumeAnalysis whose analysis was not delivered.
// source is the Source of the consumed Quota; an empty source is a no-op.
func (s *service) RefundAnalysis(ctx context.Context, userID string, source QuotaSource) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "userId is required")
	}
	switch source {
	case QuotaSourceAllowance:
		if err := s.repo.RefundAllowance(ctx, userID); err != nil {
			return persistence(err, "refund analysis")
		}
	case QuotaSourceCredits:
		if err := s.repo.AddCredits(ctx, userID, 1); err != nil {
			return persistence(err, "refund credit")
		}
	}
	return nil
}

func (s *service) quotaFor(row *models.Entitlement) Quota {
	quota := Quota{Tier: row.Tier, Used: row.AnalysesUsed, Credits: row.Credits}
	if entry, err := s.catalog.LookupKind(string(row.Tier), enums.PurchaseTypeSubscription); err == nil {
		quota.Allowance = entry.EntitlementQuantity
	}
	return quota
}

func exhausted(q Quota) error {
	return pkgerrors.New(pkgerrors.CodeRateLimit, "analysis quota exhausted").
		WithDetails(map[string]any{
			"tier":      q.Tier,
			"allowance": q.Allowance,
			"used":      q.Used,
			"credits":   q.Credits,
		})
}
