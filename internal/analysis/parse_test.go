package analysis

import (
	"strings"
	"testing"
	"unicode/utf8"

	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
)

const validReply = `{
  "complexityScore": 5,
  "complexityLevel": "Medium",
  "estimatedHours": 120,
  "hourlyRate": 75,
  "estimatedCost": 9000,
  "estimatedTimeline": "6-8 weeks",
  "phases": [
    {"name": "Discovery", "description": "Requirements", "durationWeeks": 1, "cost": 1500},
    {"name": "Build", "description": "Implementation", "durationWeeks": 6, "cost": 7500}
  ],
  "risks": ["Third-party API limits"],
  "recommendations": ["Start with an MVP"],
  "summary": "A medium sized booking app."
}`

func TestParseResponse(t *testing.T) {
	res, err := ParseResponse(validReply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ComplexityScore != 5 || res.HourlyRate != 75 || len(res.Phases) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestParseResponseStripsCodeFence(t *testing.T) {
	for _, raw := range []string{
		"```json\n" + validReply + "\n```",
		"```\n" + validReply + "\n```",
		"  \n```JSON\n" + validReply + "```  ",
	} {
		if _, err := ParseResponse(raw); err != nil {
			t.Fatalf("expected fenced reply to parse, got %v", err)
		}
	}
}

func TestParseResponseRejectsNonJSON(t *testing.T) {
	raw := strings.Repeat("Sorry, I cannot help with that. ", 40)
	_, err := ParseResponse(raw)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeParse {
		t.Fatalf("expected parse error, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	excerpt, _ := details["excerpt"].(string)
	if excerpt == "" || utf8.RuneCountInString(excerpt) > 500 {
		t.Fatalf("expected excerpt of at most 500 chars, got %d", utf8.RuneCountInString(excerpt))
	}
	if !strings.HasPrefix(raw, excerpt) {
		t.Fatalf("excerpt must be a prefix of the raw text")
	}
}

func TestParseResponseNeverFabricatesFields(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"missing phases":  strings.Replace(validReply, `"phases": [`, `"ignored": [`, 1),
		"score too high":  strings.Replace(validReply, `"complexityScore": 5`, `"complexityScore": 12`, 1),
		"unknown band":    strings.Replace(validReply, `"hourlyRate": 75`, `"hourlyRate": 80`, 1),
		"band mismatch":   strings.Replace(validReply, `"hourlyRate": 75`, `"hourlyRate": 100`, 1),
		"negative cost":   strings.Replace(validReply, `"estimatedCost": 9000`, `"estimatedCost": -1`, 1),
		"no summary":      strings.Replace(validReply, `"summary": "A medium sized booking app."`, `"summary": ""`, 1),
		"trailing text":   validReply + " thanks!",
		"string for int":  strings.Replace(validReply, `"complexityScore": 5`, `"complexityScore": "5"`, 1),
		"truncated reply": validReply[:len(validReply)/2],
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseResponse(raw); !pkgerrors.IsCode(err, pkgerrors.CodeParse) {
				t.Fatalf("expected parse error, got %v", err)
			}
		})
	}
}

func TestExcerptKeepsRunesIntact(t *testing.T) {
	raw := strings.Repeat("é", 600)
	got := excerpt(raw)
	if utf8.RuneCountInString(got) != 500 || !utf8.ValidString(got) {
		t.Fatalf("unexpected excerpt length %d", utf8.RuneCountInString(got))
	}
}
