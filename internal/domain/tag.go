package domain

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// MaxTagNameLength bounds a normalized tag name in bytes.
const MaxTagNameLength = 100

// Tag is a shared, case-normalized label. Tags are global: two users whose
// content yields the same name share one row.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeTagName trims, NFC-normalizes and lower-cases a raw tag name.
// An empty result means the name should be skipped.
func NormalizeTagName(raw string) string {
	name := strings.ToLower(norm.NFC.String(strings.TrimSpace(raw)))
	if len(name) > MaxTagNameLength {
		name = strings.ToValidUTF8(name[:MaxTagNameLength], "")
		name = strings.TrimSpace(name)
	}
	return name
}

// NormalizeTagNames normalizes names, dropping empties and duplicates while
// keeping first-seen order.
func NormalizeTagNames(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		name := NormalizeTagName(r)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
