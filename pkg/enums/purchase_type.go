package enums

import "fmt"

// PurchaseType is the `type` discriminator carried in checkout metadata.
type PurchaseType string

const (
	PurchaseTypeSubscription   PurchaseType = "subscription"
	PurchaseTypeCredits        PurchaseType = "credits"
	PurchaseTypeProjectPayment PurchaseType = "project_payment"
)

var validPurchaseTypes = []PurchaseType{
	PurchaseTypeSubscription,
	PurchaseTypeCredits,
	PurchaseTypeProjectPayment,
}

func (p PurchaseType) String() string {
	return string(p)
}

func (p PurchaseType) IsValid() bool {
	for _, candidate := range validPurchaseTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsCatalogKind reports whether the type names a pricing catalog kind.
func (p PurchaseType) IsCatalogKind() bool {
	return p == PurchaseTypeSubscription || p == PurchaseTypeCredits
}

func ParsePurchaseType(value string) (PurchaseType, error) {
	for _, candidate := range validPurchaseTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase type %q", value)
}
