package ingest

import "strings"

// pick resolves a logical field against an ordered list of column aliases.
// The first alias with a non-empty value wins. Export tools disagree on
// header casing, so aliases are matched exactly as listed.
func pick(row map[string]string, aliases ...string) (string, bool) {
	for _, alias := range aliases {
		if v, ok := row[alias]; ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

// pickOptional resolves an optional column. A present-but-empty cell yields a
// non-nil empty string; only a column absent under every alias yields nil.
// The two fingerprint differently, so the distinction must survive parsing.
func pickOptional(row map[string]string, aliases ...string) *string {
	if v, ok := pick(row, aliases...); ok {
		return &v
	}
	for _, alias := range aliases {
		if _, ok := row[alias]; ok {
			empty := ""
			return &empty
		}
	}
	return nil
}
