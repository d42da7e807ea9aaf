package projects

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"

	"github.com/tinkerly/tinkerly-backend/pkg/db/models"
)

const (
	progressTarget = 10
	progressCap    = 100
)

// Stats summarizes a user's projects for the dashboard.
type Stats struct {
	TotalProjects    int             `json:"totalProjects"`
	ActiveProjects   int             `json:"activeProjects"`
	TotalSaved       decimal.Decimal `json:"totalSaved"`
	CreditsRemaining int             `json:"creditsRemaining"`
	MonthlyProgress  int             `json:"monthlyProgress"`
}

// MarshalJSON emits TotalSaved as a JSON number; decimal encodes as a string.
func (s Stats) MarshalJSON() ([]byte, error) {
	type plain Stats
	return json.Marshal(struct {
		plain
		TotalSaved json.Number `json:"totalSaved"`
	}{
		plain:      plain(s),
		TotalSaved: json.Number(s.TotalSaved.String()),
	})
}

// Summarize is order-invariant. A null total cost counts as zero.
func Summarize(projects []models.Project) Stats {
	stats := Stats{TotalSaved: decimal.Zero}
	for _, p := range projects {
		stats.TotalProjects++
		if p.Status.IsActive() {
			stats.ActiveProjects++
		}
		cost := decimal.Zero
		if p.TotalCost.Valid {
			cost = p.TotalCost.Decimal
		}
		// Savings against a 2x agency quote.
		stats.TotalSaved = stats.TotalSaved.Add(cost.Mul(decimal.NewFromInt(2)).Sub(cost))
	}
	stats.MonthlyProgress = monthlyProgress(stats.TotalProjects)
	return stats
}

func monthlyProgress(total int) int {
	pct := int(math.Round(float64(total) / progressTarget * 100))
	if pct > progressCap {
		return progressCap
	}
	return pct
}
