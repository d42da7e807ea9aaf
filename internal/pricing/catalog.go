package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tinkerly/tinkerly-backend/pkg/enums"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
)

const DefaultCurrency = "usd"

var (
	ErrInvalidPlan          = errors.New("invalid plan")
	ErrInvalidBillingPeriod = errors.New("invalid billing period")
)

// Entry is one purchasable catalog item: a subscription tier or a credit package.
// Prices are minor units keyed by billing period. A missing period has no price;
// a zero price is free.
type Entry struct {
	ID                  string
	Kind                enums.PurchaseType
	DisplayName         string
	Description         string
	Prices              map[enums.BillingPeriod]int64
	Currency            string
	EntitlementQuantity int
}

// Price resolves the price for period.
func (e Entry) Price(period enums.BillingPeriod) (int64, error) {
	amount, ok := e.Prices[period]
	if !ok {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidBillingPeriod,
			fmt.Sprintf("%s has no %s price", e.ID, period)).
			WithDetails(map[string]any{"catalogEntryId": e.ID, "billingPeriod": string(period)})
	}
	return amount, nil
}

// Periods lists the billing periods the entry is sold at, in a stable order.
func (e Entry) Periods() []enums.BillingPeriod {
	out := make([]enums.BillingPeriod, 0, len(e.Prices))
	for _, period := range []enums.BillingPeriod{enums.BillingPeriodMonthly, enums.BillingPeriodAnnual, enums.BillingPeriodOneTime} {
		if _, ok := e.Prices[period]; ok {
			out = append(out, period)
		}
	}
	return out
}

// IsFree reports whether every price on the entry is zero.
func (e Entry) IsFree() bool {
	for _, amount := range e.Prices {
		if amount != 0 {
			return false
		}
	}
	return len(e.Prices) > 0
}

// Tier returns the subscription tier an entry grants. Credit packages return "".
func (e Entry) Tier() enums.SubscriptionTier {
	if e.Kind != enums.PurchaseTypeSubscription {
		return ""
	}
	return enums.SubscriptionTier(e.ID)
}

func (e Entry) clone() Entry {
	prices := make(map[enums.BillingPeriod]int64, len(e.Prices))
	for period, amount := range e.Prices {
		prices[period] = amount
	}
	e.Prices = prices
	return e
}

// Catalog is the immutable set of entries shared by every handler.
type Catalog struct {
	entries  map[string]Entry
	order    []string
	currency string
}

// New validates entries and builds a catalog priced in currency.
func New(currency string, entries ...Entry) (*Catalog, error) {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, fmt.Errorf("currency %q must be a 3-letter ISO code", currency)
	}

	c := &Catalog{entries: make(map[string]Entry, len(entries)), currency: currency}
	for _, entry := range entries {
		entry.ID = strings.TrimSpace(entry.ID)
		if entry.ID == "" {
			return nil, errors.New("catalog entry id is required")
		}
		if _, dup := c.entries[entry.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q", entry.ID)
		}
		if err := validateEntry(entry); err != nil {
			return nil, err
		}
		entry = entry.clone()
		entry.Currency = currency
		c.entries[entry.ID] = entry
		c.order = append(c.order, entry.ID)
	}
	return c, nil
}

func validateEntry(entry Entry) error {
	if !entry.Kind.IsCatalogKind() {
		return fmt.Errorf("catalog entry %q has invalid kind %q", entry.ID, entry.Kind)
	}
	if len(entry.Prices) == 0 {
		return fmt.Errorf("catalog entry %q has no prices", entry.ID)
	}
	if entry.EntitlementQuantity <= 0 {
		return fmt.Errorf("catalog entry %q must grant a positive quantity", entry.ID)
	}
	for period, amount := range entry.Prices {
		if amount < 0 {
			return fmt.Errorf("catalog entry %q has negative %s price", entry.ID, period)
		}
		switch entry.Kind {
		case enums.PurchaseTypeSubscription:
			if !period.Recurring() {
				return fmt.Errorf("subscription %q cannot be priced %s", entry.ID, period)
			}
		case enums.PurchaseTypeCredits:
			if period != enums.BillingPeriodOneTime {
				return fmt.Errorf("credit package %q must be priced one_time", entry.ID)
			}
		}
	}
	if entry.Kind == enums.PurchaseTypeSubscription && !enums.SubscriptionTier(entry.ID).IsValid() {
		return fmt.Errorf("subscription %q is not a known tier", entry.ID)
	}
	return nil
}

// Currency is the lowercase ISO code every entry is priced in.
func (c *Catalog) Currency() string {
	return c.currency
}

// Lookup returns the entry for id.
func (c *Catalog) Lookup(id string) (Entry, error) {
	entry, ok := c.entries[strings.TrimSpace(id)]
	if !ok {
		return Entry{}, invalidPlan(id)
	}
	return entry.clone(), nil
}

// LookupKind is Lookup restricted to one kind; a credit package id is not a tier.
func (c *Catalog) LookupKind(id string, kind enums.PurchaseType) (Entry, error) {
	entry, err := c.Lookup(id)
	if err != nil {
		return Entry{}, err
	}
	if entry.Kind != kind {
		return Entry{}, invalidPlan(id)
	}
	return entry, nil
}

// Entries lists entries of kind in declaration order. An empty kind lists all.
func (c *Catalog) Entries(kind enums.PurchaseType) []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		entry := c.entries[id]
		if kind == "" || entry.Kind == kind {
			out = append(out, entry.clone())
		}
	}
	return out
}

// IDs returns every entry id, sorted.
func (c *Catalog) IDs() []string {
	ids := append([]string(nil), c.order...)
	sort.Strings(ids)
	return ids
}

func invalidPlan(id string) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidPlan, fmt.Sprintf("unknown plan %q", id)).
		WithDetails(map[string]any{"catalogEntryId": id})
}
