package enums

import (
	"fmt"
	"strings"
)

// SubscriptionTier is the plan level stored on an entitlement.
type SubscriptionTier string

const (
	SubscriptionTierFree         SubscriptionTier = "free"
	SubscriptionTierStarter      SubscriptionTier = "starter"
	SubscriptionTierProfessional SubscriptionTier = "professional"
	SubscriptionTierEnterprise   SubscriptionTier = "enterprise"
)

var validSubscriptionTiers = []SubscriptionTier{
	SubscriptionTierFree,
	SubscriptionTierStarter,
	SubscriptionTierProfessional,
	SubscriptionTierEnterprise,
}

func (s SubscriptionTier) String() string {
	return string(s)
}

func (s SubscriptionTier) IsValid() bool {
	for _, candidate := range validSubscriptionTiers {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSubscriptionTier converts raw input into a SubscriptionTier.
func ParseSubscriptionTier(value string) (SubscriptionTier, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validSubscriptionTiers {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription tier %q", value)
}
