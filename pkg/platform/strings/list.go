// Package strings holds slice helpers shared by configuration parsing and
// API response shaping.
package strings

import (
	"strings"
)

// CompactUnique trims each value and drops empties and repeats, keeping the
// first occurrence's position. A nil or empty input is returned as is.
func CompactUnique(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SplitList parses a comma separated setting such as a broker list.
// It returns nil for a blank input.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	out := CompactUnique(strings.Split(raw, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
