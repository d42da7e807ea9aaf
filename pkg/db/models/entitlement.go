package models

import (
	"time"

	"github.com/tinkerly/tinkerly-backend/pkg/enums"
)

// Entitlement is the per-user tier and credit balance.
type Entitlement struct {
	UserID               string                 `gorm:"column:user_id;primaryKey"`
	Tier                 enums.SubscriptionTier `gorm:"column:tier;not null;default:'free'"`
	Credits              int                    `gorm:"column:credits;not null;default:0"`
	AnalysesUsed         int                    `gorm:"column:analyses_used;not null;default:0"`
	StripeSubscriptionID *string                `gorm:"column:stripe_subscription_id;index"`
	ResetPeriod          string                 `gorm:"column:reset_period;not null;default:''"`
	CreatedAt            time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Entitlement) TableName() string { return "entitlements" }
