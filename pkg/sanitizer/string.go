package sanitizer

import (
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func stripControl(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			// Tabs and newlines separate words; keep the gap so the
			// following normalization collapses it instead of gluing
			// the words together.
			if unicode.IsSpace(r) {
				result.WriteRune(' ')
			}
			continue
		}
		result.WriteRune(r)
	}
	return result.String()
}

// SanitizeReason normalizes a cancellation or rollback reason before it
// is validated and written to the audit log.
func SanitizeReason(input string) string {
	p := Pipeline{
		stripControl,
		TrimAndNormalize,
	}
	return p.Apply(input)
}

// SanitizeNotes normalizes optional free-text notes on a reservation.
func SanitizeNotes(input string) string {
	p := Pipeline{
		stripControl,
		TrimAndNormalize,
	}
	return p.Apply(input)
}
