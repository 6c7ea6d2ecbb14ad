// Package sanitize normalizes text returned by the external processor.
// Values are kept verbatim unless the caller declares them HTML.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Format declares how a callback value is encoded.
type Format string

const (
	// FormatText is plain text, stored as sent apart from trimming.
	FormatText Format = "text"
	// FormatHTML is markup that is reduced to its text content.
	FormatHTML Format = "html"
)

// ParseFormat maps a declared format to a Format. Anything other than
// "html" is plain text.
func ParseFormat(raw string) Format {
	if strings.EqualFold(strings.TrimSpace(raw), string(FormatHTML)) {
		return FormatHTML
	}
	return FormatText
}

// Sanitizer converts declared HTML to plain text.
// A Policy is safe for concurrent use once built.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// New creates a sanitizer with bluemonday's strict policy.
func New() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Text trims multi-line text such as a summary. HTML values have every tag
// removed and entities decoded first. Line breaks are kept.
func (s *Sanitizer) Text(raw string, format Format) string {
	if format == FormatHTML {
		// Strict policy escapes entities; callers store plain text.
		raw = html.UnescapeString(s.policy.Sanitize(raw))
	}
	return strings.TrimSpace(raw)
}

// Line is Text with all whitespace runs collapsed to single spaces.
// Used for titles.
func (s *Sanitizer) Line(raw string, format Format) string {
	return strings.Join(strings.Fields(s.Text(raw, format)), " ")
}

// Lines applies Line to each value, keeping order.
func (s *Sanitizer) Lines(raw []string, format Format) []string {
	if raw == nil {
		return nil
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = s.Line(v, format)
	}
	return out
}
