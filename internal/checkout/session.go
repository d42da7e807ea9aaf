package checkout

import (
	"github.com/tinkerly/tinkerly-backend/pkg/enums"
)

// Mode is the Stripe Checkout mode a session runs in.
type Mode string

const (
	ModeSubscription Mode = "subscription"
	ModePayment      Mode = "payment"
)

// Metadata keys echoed back by Stripe on completion.
const (
	MetaUserID              = "userId"
	MetaCatalogEntryID      = "catalogEntryId"
	MetaType                = "type"
	MetaEntitlementQuantity = "entitlementQuantity"
	MetaBillingPeriod       = "billingPeriod"
	MetaProjectID           = "projectId"
)

// SessionRequest is a gateway-ready checkout session description. It captures
// the amount at build time.
type SessionRequest struct {
	UserID           string
	CatalogEntryID   string
	Type             enums.PurchaseType
	BillingPeriod    enums.BillingPeriod
	AmountMinorUnits int64
	Currency         string
	Mode             Mode
	ItemName         string
	ItemDescription  string
	SuccessURL       string
	CancelURL        string
	IdempotencyKey   string
	Metadata         map[string]string
}

// Session is what the gateway hands back for a created checkout.
type Session struct {
	RedirectURL string
	SessionID   string
}

// SubscriptionSnapshot is the processor's confirmed view of a subscription.
type SubscriptionSnapshot struct {
	ID         string
	Status     enums.SubscriptionStatus
	CustomerID string
	Metadata   map[string]string
}
