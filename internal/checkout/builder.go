package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinkerly/tinkerly-backend/internal/pricing"
	"github.com/tinkerly/tinkerly-backend/pkg/enums"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
)

const (
	sessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"
	productPrefix        = "Tinkerly"

	// Stripe caps a single unit amount at eight digits.
	maxAmountMinorUnits = 99_999_999
)

// ErrFreePlan marks a zero-price entry; callers redirect locally instead of
// creating a session.
var ErrFreePlan = errors.New("free plan requires no checkout")

// Intent is a catalog purchase request as received from a client.
type Intent struct {
	UserID         string
	CatalogEntryID string
	BillingPeriod  string
	Nonce          string
}

// ProjectIntent is a one-off payment for a scoped project.
type ProjectIntent struct {
	UserID     string
	ProjectID  string
	Amount     decimal.Decimal
	Title      string
	Timeline   string
	Complexity string
	Nonce      string
}

// Builder turns intents into session requests. It never performs I/O.
type Builder struct {
	catalog *pricing.Catalog
	baseURL string
}

func NewBuilder(catalog *pricing.Catalog, publicURL string) (*Builder, error) {
	if catalog == nil {
		return nil, errors.New("pricing catalog required")
	}
	base := strings.TrimRight(strings.TrimSpace(publicURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("public url %q must be absolute", publicURL)
	}
	return &Builder{catalog: catalog, baseURL: base}, nil
}

// DashboardURL is where free-tier selections and completed checkouts land.
func (b *Builder) DashboardURL() string {
	return b.baseURL + "/dashboard"
}

// FreePlanURL is the local redirect for a zero-price tier.
func (b *Builder) FreePlanURL(tierID string) string {
	return b.DashboardURL() + "?plan=" + url.QueryEscape(tierID)
}

// Subscription builds a recurring session for a tier. Zero-price tiers return
// the entry together with ErrFreePlan.
func (b *Builder) Subscription(intent Intent) (SessionRequest, pricing.Entry, error) {
	userID, err := requireUserID(intent.UserID)
	if err != nil {
		return SessionRequest{}, pricing.Entry{}, err
	}
	entry, err := b.catalog.LookupKind(intent.CatalogEntryID, enums.PurchaseTypeSubscription)
	if err != nil {
		return SessionRequest{}, pricing.Entry{}, err
	}
	period, err := parseRecurringPeriod(intent.BillingPeriod)
	if err != nil {
		return SessionRequest{}, entry, err
	}
	amount, err := entry.Price(period)
	if err != nil {
		return SessionRequest{}, entry, err
	}
	if amount == 0 {
		return SessionRequest{}, entry, ErrFreePlan
	}

	req := SessionRequest{
		UserID:           userID,
		CatalogEntryID:   entry.ID,
		Type:             enums.PurchaseTypeSubscription,
		BillingPeriod:    period,
		AmountMinorUnits: amount,
		Currency:         entry.Currency,
		Mode:             ModeSubscription,
		ItemName:         fmt.Sprintf("%s %s (%s)", productPrefix, entry.DisplayName, period),
		ItemDescription:  subscriptionDescription(entry.EntitlementQuantity, period),
		SuccessURL:       b.successURL("/dashboard", "subscription"),
		CancelURL:        b.baseURL + "/pricing?checkout=cancelled",
		Metadata: map[string]string{
			MetaUserID:              userID,
			MetaCatalogEntryID:      entry.ID,
			MetaType:                string(enums.PurchaseTypeSubscription),
			MetaEntitlementQuantity: strconv.Itoa(entry.EntitlementQuantity),
			MetaBillingPeriod:       string(period),
		},
	}
	req.IdempotencyKey = IdempotencyKey(userID, entry.ID, string(period), intent.Nonce)
	return req, entry, nil
}

// Credits builds a one-time payment session for a credit package.
func (b *Builder) Credits(intent Intent) (SessionRequest, pricing.Entry, error) {
	userID, err := requireUserID(intent.UserID)
	if err != nil {
		return SessionRequest{}, pricing.Entry{}, err
	}
	entry, err := b.catalog.LookupKind(intent.CatalogEntryID, enums.PurchaseTypeCredits)
	if err != nil {
		return SessionRequest{}, pricing.Entry{}, err
	}
	amount, err := entry.Price(enums.BillingPeriodOneTime)
	if err != nil {
		return SessionRequest{}, entry, err
	}
	if amount == 0 {
		return SessionRequest{}, entry, ErrFreePlan
	}

	req := SessionRequest{
		UserID:           userID,
		CatalogEntryID:   entry.ID,
		Type:             enums.PurchaseTypeCredits,
		BillingPeriod:    enums.BillingPeriodOneTime,
		AmountMinorUnits: amount,
		Currency:         entry.Currency,
		Mode:             ModePayment,
		ItemName:         fmt.Sprintf("%s %s", productPrefix, entry.DisplayName),
		ItemDescription:  fmt.Sprintf("%d analysis credits", entry.EntitlementQuantity),
		SuccessURL:       b.successURL("/dashboard", "credits"),
		CancelURL:        b.baseURL + "/pricing?checkout=cancelled",
		Metadata: map[string]string{
			MetaUserID:              userID,
			MetaCatalogEntryID:      entry.ID,
			MetaType:                string(enums.PurchaseTypeCredits),
			MetaEntitlementQuantity: strconv.Itoa(entry.EntitlementQuantity),
		},
	}
	req.IdempotencyKey = IdempotencyKey(userID, entry.ID, string(enums.BillingPeriodOneTime), intent.Nonce)
	return req, entry, nil
}

// ProjectPayment builds a one-time session for a project quote. The amount
// arrives in major units and must convert exactly to minor units.
func (b *Builder) ProjectPayment(intent ProjectIntent) (SessionRequest, error) {
	userID, err := requireUserID(intent.UserID)
	if err != nil {
		return SessionRequest{}, err
	}
	projectID, err := uuid.Parse(strings.TrimSpace(intent.ProjectID))
	if err != nil {
		return SessionRequest{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "projectId must be a uuid")
	}
	amount, err := ToMinorUnits(intent.Amount)
	if err != nil {
		return SessionRequest{}, err
	}
	title := strings.TrimSpace(intent.Title)
	if title == "" {
		return SessionRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "projectTitle is required")
	}

	projectPath := "/dashboard/projects/" + projectID.String()
	req := SessionRequest{
		UserID:           userID,
		Type:             enums.PurchaseTypeProjectPayment,
		BillingPeriod:    enums.BillingPeriodOneTime,
		AmountMinorUnits: amount,
		Currency:         b.catalog.Currency(),
		Mode:             ModePayment,
		ItemName:         fmt.Sprintf("%s project: %s", productPrefix, title),
		ItemDescription:  projectDescription(intent.Timeline, intent.Complexity),
		SuccessURL:       b.successURL(projectPath, "project"),
		CancelURL:        b.baseURL + projectPath + "?payment=cancelled",
		Metadata: map[string]string{
			MetaUserID:              userID,
			MetaCatalogEntryID:      "",
			MetaType:                string(enums.PurchaseTypeProjectPayment),
			MetaEntitlementQuantity: "0",
			MetaProjectID:           projectID.String(),
		},
	}
	req.IdempotencyKey = IdempotencyKey(userID, projectID.String(), string(enums.BillingPeriodOneTime), intent.Nonce)
	return req, nil
}

// ToMinorUnits converts a major-unit decimal amount to a positive minor-unit integer.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount supports at most two decimal places")
	}
	minor := amount.Shift(2)
	if minor.GreaterThan(decimal.NewFromInt(maxAmountMinorUnits)) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds the maximum chargeable value")
	}
	return minor.IntPart(), nil
}

// IdempotencyKey derives the processor idempotency key from a client nonce.
// Without a nonce it returns "" and every request creates a distinct session.
func IdempotencyKey(userID, subject, period, nonce string) string {
	nonce = strings.TrimSpace(nonce)
	if nonce == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{userID, subject, period, nonce}, "|")))
	return hex.EncodeToString(sum[:])
}

func (b *Builder) successURL(path, purchase string) string {
	return fmt.Sprintf("%s%s?checkout=success&purchase=%s&session_id=%s", b.baseURL, path, purchase, sessionIDPlaceholder)
}

func requireUserID(raw string) (string, error) {
	userID := strings.TrimSpace(raw)
	if userID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "userId is required")
	}
	return userID, nil
}

func parseRecurringPeriod(raw string) (enums.BillingPeriod, error) {
	period, err := enums.ParseBillingPeriod(raw)
	if err != nil || !period.Recurring() {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, pricing.ErrInvalidBillingPeriod,
			fmt.Sprintf("billingPeriod %q must be monthly or annual", raw))
	}
	return period, nil
}

func subscriptionDescription(quantity int, period enums.BillingPeriod) string {
	if period == enums.BillingPeriodAnnual {
		return fmt.Sprintf("%d analyses per month, billed annually", quantity)
	}
	return fmt.Sprintf("%d analyses per month", quantity)
}

func projectDescription(timeline, complexity string) string {
	parts := []string{}
	if t := strings.TrimSpace(timeline); t != "" {
		parts = append(parts, "timeline "+t)
	}
	if c := strings.TrimSpace(complexity); c != "" {
		parts = append(parts, "complexity "+c)
	}
	if len(parts) == 0 {
		return "Project development"
	}
	return "Project development, " + strings.Join(parts, ", ")
}
