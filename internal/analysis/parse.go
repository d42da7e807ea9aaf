package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
)

const maxExcerptChars = 500

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		res := sl.Current().Interface().(Result)
		if want := RateForComplexity(res.ComplexityScore); want != 0 && res.HourlyRate != want {
			sl.ReportError(res.HourlyRate, "hourlyRate", "HourlyRate", "band", fmt.Sprint(want))
		}
	}, Result{})
	return v
}

// ParseResponse decodes the model's reply. It never fills in missing fields:
// anything off-schema is a PARSE_ERROR carrying an excerpt of the raw text.
func ParseResponse(raw string) (Result, error) {
	body := stripFence(raw)
	if body == "" {
		return Result{}, parseError(raw, errors.New("empty response"))
	}

	decoder := json.NewDecoder(strings.NewReader(body))
	decoder.DisallowUnknownFields()
	var res Result
	if err := decoder.Decode(&res); err != nil {
		return Result{}, parseError(raw, err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return Result{}, parseError(raw, errors.New("trailing data after JSON object"))
	}
	if err := validate.Struct(res); err != nil {
		return Result{}, parseError(raw, err)
	}
	return res, nil
}

// stripFence removes an optional markdown code fence around the JSON.
func stripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		lang := text[:nl]
		if !strings.ContainsAny(lang, "{[") {
			text = text[nl+1:]
		}
	}
	text = strings.TrimSpace(text)
	return strings.TrimSpace(strings.TrimSuffix(text, "```"))
}

func parseError(raw string, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeParse, cause, "analysis response did not match the expected schema").
		WithDetails(map[string]any{
			"reason":  cause.Error(),
			"excerpt": excerpt(raw),
		})
}

// excerpt truncates to maxExcerptChars runes without splitting a character.
func excerpt(raw string) string {
	if utf8.RuneCountInString(raw) <= maxExcerptChars {
		return raw
	}
	runes := []rune(raw)
	return string(runes[:maxExcerptChars])
}
