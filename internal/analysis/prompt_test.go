package analysis

import (
	"errors"
	"strings"
	"testing"

	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
)

func TestBuildPromptEmbedsRubricAndProject(t *testing.T) {
	prompt, err := BuildPrompt(ProjectData{
		Title:        "Booking app",
		Description:  "Clients book salon appointments",
		Category:     "mobile",
		Requirements: "iOS and Android",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"1-3 => 50", "4-6 => 75", "7-10 => 100", `"phases"`, `"complexityScore"`} {
		if !strings.Contains(prompt.System, want) {
			t.Fatalf("system prompt missing %q", want)
		}
	}
	for _, want := range []string{"Booking app", "Clients book salon appointments", "Category: mobile", "Requirements: iOS and Android"} {
		if !strings.Contains(prompt.User, want) {
			t.Fatalf("user prompt missing %q", want)
		}
	}
}

func TestBuildPromptOmitsEmptyOptionalFields(t *testing.T) {
	prompt, err := BuildPrompt(ProjectData{Title: "t", Description: "d"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(prompt.User, "Category:") || strings.Contains(prompt.User, "Requirements:") {
		t.Fatalf("unexpected optional fields in %q", prompt.User)
	}
}

func TestBuildPromptMissingFields(t *testing.T) {
	cases := []ProjectData{
		{Title: "Booking app", Description: ""},
		{Title: "Booking app", Description: "   "},
		{Title: "", Description: "something"},
	}
	for _, data := range cases {
		_, err := BuildPrompt(data)
		if !errors.Is(err, ErrMissingFields) {
			t.Fatalf("expected ErrMissingFields for %+v, got %v", data, err)
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation code, got %v", err)
		}
	}
}

func TestRateForComplexity(t *testing.T) {
	cases := map[int]int{0: 0, 1: 50, 3: 50, 4: 75, 6: 75, 7: 100, 10: 100, 11: 0}
	for score, want := range cases {
		if got := RateForComplexity(score); got != want {
			t.Fatalf("RateForComplexity(%d) = %d, want %d", score, got, want)
		}
	}
}
