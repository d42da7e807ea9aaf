package analysis

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
)

var ErrMissingFields = errors.New("project title and description are required")

const systemPrompt = `You are a senior software consultant who scopes development projects.
Answer with a single JSON object and nothing else.

Rubric:
- complexityScore is an integer from 1 (trivial) to 10 (very complex).
- complexityLevel is one of "Low", "Medium", "High", "Very High".
- hourlyRate follows the complexity band: 1-3 => 50, 4-6 => 75, 7-10 => 100.
- estimatedCost = estimatedHours * hourlyRate.
- phases lists at least one delivery phase; phase costs sum to estimatedCost.

Schema:
{
  "complexityScore": number,
  "complexityLevel": string,
  "estimatedHours": number,
  "hourlyRate": number,
  "estimatedCost": number,
  "estimatedTimeline": string,
  "phases": [{"name": string, "description": string, "durationWeeks": number, "cost": number}],
  "risks": [string],
  "recommendations": [string],
  "summary": string
}`

// BuildPrompt embeds the scoping rubric and the project description.
func BuildPrompt(data ProjectData) (Prompt, error) {
	title := strings.TrimSpace(data.Title)
	description := strings.TrimSpace(data.Description)

	missing := []string{}
	if title == "" {
		missing = append(missing, "title")
	}
	if description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return Prompt{}, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrMissingFields, "project title and description are required").
			WithDetails(map[string]any{"missing": missing})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project title: %s\n", title)
	fmt.Fprintf(&b, "Description: %s\n", description)
	if category := strings.TrimSpace(data.Category); category != "" {
		fmt.Fprintf(&b, "Category: %s\n", category)
	}
	if requirements := strings.TrimSpace(data.Requirements); requirements != "" {
		fmt.Fprintf(&b, "Requirements: %s\n", requirements)
	}
	b.WriteString("\nProvide the analysis as JSON following the schema.")

	return Prompt{System: systemPrompt, User: b.String()}, nil
}
