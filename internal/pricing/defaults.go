package pricing

import "github.com/tinkerly/tinkerly-backend/pkg/enums"

func subscriptionTier(id, name, description string, monthly, annual int64, analyses int) Entry {
	return Entry{
		ID:          id,
		Kind:        enums.PurchaseTypeSubscription,
		DisplayName: name,
		Description: description,
		Prices: map[enums.BillingPeriod]int64{
			enums.BillingPeriodMonthly: monthly,
			enums.BillingPeriodAnnual:  annual,
		},
		EntitlementQuantity: analyses,
	}
}

func creditPackage(id, name, description string, price int64, credits int) Entry {
	return Entry{
		ID:                  id,
		Kind:                enums.PurchaseTypeCredits,
		DisplayName:         name,
		Description:         description,
		Prices:              map[enums.BillingPeriod]int64{enums.BillingPeriodOneTime: price},
		EntitlementQuantity: credits,
	}
}

// DefaultEntries is the production catalog.
func DefaultEntries() []Entry {
	return []Entry{
		subscriptionTier("free", "Free", "Try Tinkerly with a few analyses", 0, 0, 3),
		subscriptionTier("starter", "Starter", "For makers scoping their first builds", 999, 9990, 15),
		subscriptionTier("professional", "Professional", "For freelancers running several projects", 2999, 29990, 50),
		subscriptionTier("enterprise", "Enterprise", "For studios and agencies", 9999, 99990, 200),
		creditPackage("credits_10", "10 Credits", "10 extra analyses", 499, 10),
		creditPackage("credits_50", "50 Credits", "50 extra analyses", 1999, 50),
		creditPackage("credits_150", "150 Credits", "150 extra analyses", 4999, 150),
	}
}

// Default builds the production catalog in currency. It panics only if the
// built-in entries are inconsistent.
func Default(currency string) *Catalog {
	catalog, err := New(currency, DefaultEntries()...)
	if err != nil {
		panic(err)
	}
	return catalog
}
