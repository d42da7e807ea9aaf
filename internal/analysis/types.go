package analysis

// ProjectData is the free-text project description submitted for scoping.
type ProjectData struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category,omitempty"`
	Requirements string `json:"requirements,omitempty"`
}

// Prompt is the chat prompt sent to the language model.
type Prompt struct {
	System string
	User   string
}

// Result is the validated analysis returned to clients.
type Result struct {
	ComplexityScore   int      `json:"complexityScore" validate:"min=1,max=10"`
	ComplexityLevel   string   `json:"complexityLevel" validate:"required"`
	EstimatedHours    float64  `json:"estimatedHours" validate:"gt=0"`
	HourlyRate        int      `json:"hourlyRate" validate:"oneof=50 75 100"`
	EstimatedCost     float64  `json:"estimatedCost" validate:"gte=0"`
	EstimatedTimeline string   `json:"estimatedTimeline" validate:"required"`
	Phases            []Phase  `json:"phases" validate:"required,min=1,dive"`
	Risks             []string `json:"risks" validate:"required"`
	Recommendations   []string `json:"recommendations,omitempty"`
	Summary           string   `json:"summary" validate:"required"`
}

type Phase struct {
	Name          string  `json:"name" validate:"required"`
	Description   string  `json:"description" validate:"required"`
	DurationWeeks float64 `json:"durationWeeks" validate:"gt=0"`
	Cost          float64 `json:"cost" validate:"gte=0"`
}

// RateForComplexity returns the hourly band for a complexity score, or 0 when
// the score is out of range.
func RateForComplexity(score int) int {
	switch {
	case score >= 1 && score <= 3:
		return 50
	case score >= 4 && score <= 6:
		return 75
	case score >= 7 && score <= 10:
		return 100
	}
	return 0
}
