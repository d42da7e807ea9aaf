package enums

import "fmt"

// ProjectStatus tracks a scoped project through payment and delivery.
type ProjectStatus string

const (
	ProjectStatusDraft          ProjectStatus = "draft"
	ProjectStatusAnalyzed       ProjectStatus = "analyzed"
	ProjectStatusPaymentPending ProjectStatus = "payment_pending"
	ProjectStatusInDevelopment  ProjectStatus = "in_development"
	ProjectStatusCompleted      ProjectStatus = "completed"
	ProjectStatusCancelled      ProjectStatus = "cancelled"
)

var validProjectStatuses = []ProjectStatus{
	ProjectStatusDraft,
	ProjectStatusAnalyzed,
	ProjectStatusPaymentPending,
	ProjectStatusInDevelopment,
	ProjectStatusCompleted,
	ProjectStatusCancelled,
}

func (p ProjectStatus) String() string {
	return string(p)
}

func (p ProjectStatus) IsValid() bool {
	for _, candidate := range validProjectStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsActive reports whether the project counts toward active work.
func (p ProjectStatus) IsActive() bool {
	return p == ProjectStatusInDevelopment || p == ProjectStatusPaymentPending
}

func ParseProjectStatus(value string) (ProjectStatus, error) {
	for _, candidate := range validProjectStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid project status %q", value)
}
