package sources

import (
	"encoding/json"
	"strings"
	"time"
)

// sourceRow is one raw JSON row from either wire API.
type sourceRow map[string]any

// str returns the trimmed string value of a field, "" when absent or not a
// string.
func (r sourceRow) str(key string) string {
	v, ok := r[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// strPtr returns nil for absent fields so "unknown" survives normalization.
func (r sourceRow) strPtr(key string) *string {
	s := r.str(key)
	if s == "" {
		return nil
	}
	return &s
}

// Municipal feeds are inconsistent about timestamp shapes: Socrata floating
// timestamps, RFC3339, bare dates, and legacy US-style dates all appear.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// timePtr parses a timestamp field, nil when absent or unparseable.
func (r sourceRow) timePtr(key string) *time.Time {
	s := r.str(key)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// raw re-encodes the row for the raw_payload column. Encoding a decoded
// map cannot fail, so the error is ignored.
func (r sourceRow) raw() json.RawMessage {
	b, _ := json.Marshal(r)
	return b
}

// soqlQuote escapes a literal for SoQL/SQL where clauses.
func soqlQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
