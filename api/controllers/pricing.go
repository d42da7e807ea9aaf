package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tinkerly/tinkerly-backend/api/responses"
	"github.com/tinkerly/tinkerly-backend/internal/pricing"
	"github.com/tinkerly/tinkerly-backend/pkg/enums"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
)

type pricingResponse struct {
	Currency      string         `json:"currency"`
	Subscriptions []catalogEntry `json:"subscriptions"`
	Credits       []catalogEntry `json:"credits"`
}

type catalogEntry struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Quantity    int            `json:"quantity"`
	Prices      []catalogPrice `json:"prices"`
}

type catalogPrice struct {
	BillingPeriod string `json:"billingPeriod"`
	AmountCents   int64  `json:"amountCents"`
	Amount        string `json:"amount"`
}

// Pricing publishes the catalog so clients never hard-code prices.
func Pricing(catalog *pricing.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing catalog unavailable"))
			return
		}
		responses.WriteSuccess(w, pricingResponse{
			Currency:      catalog.Currency(),
			Subscriptions: toCatalogEntries(catalog.Entries(enums.PurchaseTypeSubscription)),
			Credits:       toCatalogEntries(catalog.Entries(enums.PurchaseTypeCredits)),
		})
	}
}

func toCatalogEntries(entries []pricing.Entry) []catalogEntry {
	out := make([]catalogEntry, 0, len(entries))
	for _, entry := range entries {
		item := catalogEntry{
			ID:          entry.ID,
			Name:        entry.DisplayName,
			Description: entry.Description,
			Quantity:    entry.EntitlementQuantity,
		}
		for _, period := range entry.Periods() {
			cents := entry.Prices[period]
			item.Prices = append(item.Prices, catalogPrice{
				BillingPeriod: string(period),
				AmountCents:   cents,
				Amount:        decimal.New(cents, -2).StringFixed(2),
			})
		}
		out = append(out, item)
	}
	return out
}
