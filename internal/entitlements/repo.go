package entitlements

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tinkerly/tinkerly-backend/pkg/db"
	"github.com/tinkerly/tinkerly-backend/pkg/db/models"
	"github.com/tinkerly/tinkerly-backend/pkg/enums"
)

// Repository persists per-user entitlements. Counter changes are single
// conditional statements so concurrent requests cannot overdraw.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, userID string) (*models.Entitlement, error)
	Ensure(ctx context.Context, userID, period string) error
	SetTier(ctx context.Context, userID string, tier enums.SubscriptionTier, subscriptionID *string) error
	AddCredits(ctx context.Context, userID string, credits int) error
	ConsumeAllowance(ctx context.Context, userID string, allowance int) (bool, error)
	ConsumeCredit(ctx context.Context, userID string) (bool, error)
	RefundAllowance(ctx context.Context, userID string) error
	RevokeSubscription(ctx context.Context, subscriptionID string) (int64, error)
	ResetAnalyses(ctx context.Context, period string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Find returns nil without error when the user has no entitlement row yet.
func (r *repository) Find(ctx context.Context, userID string) (*models.Entitlement, error) {
	var row models.Entitlement
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Ensure inserts the free default row for userID if none exists. New rows
// start in period so a reset later in the same period leaves them alone.
func (r *repository) Ensure(ctx context.Context, userID, period string) error {
	row := models.Entitlement{UserID: userID, Tier: enums.SubscriptionTierFree, ResetPeriod: period}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (r *repository) SetTier(ctx context.Context, userID string, tier enums.SubscriptionTier, subscriptionID *string) error {
	return r.db.WithContext(ctx).
		Model(&models.Entitlement{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"tier":                   tier,
			"stripe_subscription_id": subscriptionID,
		}).Error
}

func (r *repository) AddCredits(ctx context.Context, userID string, credits int) error {
	return r.db.WithContext(ctx).
		Model(&models.Entitlement{}).
		Where("user_id = ?", userID).
		Update("credits", gorm.Expr("credits + ?", credits)).Error
}

// ConsumeAllowance counts one analysis against the tier allowance. It reports
// false when the allowance is already used up.
func (r *repository) ConsumeAllowance(ctx context.Context, userID string, allowance int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Entitlement{}).
		Where("user_id = ? AND analyses_used < ?", userID, allowance).
		Update("analyses_used", gorm.Expr("analyses_used + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ConsumeCredit spends one purchased credit. It reports false when the balance is zero.
func (r *repository) ConsumeCredit(ctx context.Context, userID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Entitlement{}).
		Where("user_id = ? AND credits > 0", userID).
		Update("credits", gorm.Expr("credits - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RefundAllowance returns one analysis to the tier allowance, never below zero.
func (r *repository) RefundAllowance(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Entitlement{}).
		Where("user_id = ? AND analyses_used > 0", userID).
		Update("analyses_used", gorm.Expr("analyses_used - 1")).Error
}

// RevokeSubscription downgrades every row holding subscriptionID to free.
func (r *repository) RevokeSubscription(ctx context.Context, subscriptionID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Entitlement{}).
		Where("stripe_subscription_id = ?", subscriptionID).
		Updates(map[string]any{
			"tier":                   enums.SubscriptionTierFree,
			"stripe_subscription_id": nil,
		})
	return res.RowsAffected, res.Error
}

// ResetAnalyses zeroes counters of rows not yet reset for period. Repeating it
// within the same period touches nothing.
func (r *repository) ResetAnalyses(ctx context.Context, period string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Entitlement{}).
		Where("reset_period <> ?", period).
		Updates(map[string]any{
			"analyses_used": 0,
			"reset_period":  period,
		})
	return res.RowsAffected, res.Error
}
