package enums

import (
	"fmt"
	"strings"
)

// BillingPeriod names the cadence a catalog price is charged at.
type BillingPeriod string

const (
	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodAnnual  BillingPeriod = "annual"
	BillingPeriodOneTime BillingPeriod = "one_time"
)

var validBillingPeriods = []BillingPeriod{
	BillingPeriodMonthly,
	BillingPeriodAnnual,
	BillingPeriodOneTime,
}

// String implements fmt.Stringer.
func (b BillingPeriod) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillingPeriod.
func (b BillingPeriod) IsValid() bool {
	for _, candidate := range validBillingPeriods {
		if candidate == b {
			return true
		}
	}
	return false
}

// Recurring reports whether the period renews.
func (b BillingPeriod) Recurring() bool {
	return b == BillingPeriodMonthly || b == BillingPeriodAnnual
}

// StripeInterval maps a recurring period onto Stripe's price interval.
func (b BillingPeriod) StripeInterval() string {
	switch b {
	case BillingPeriodMonthly:
		return "month"
	case BillingPeriodAnnual:
		return "year"
	}
	return ""
}

// ParseBillingPeriod converts raw input into a BillingPeriod. Matching is case-insensitive.
func ParseBillingPeriod(value string) (BillingPeriod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validBillingPeriods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing period %q", value)
}
