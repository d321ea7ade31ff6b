// Package strings holds the small text helpers shared by pipeline stages.
package strings

import (
	"strings"
	"unicode/utf8"
)

// DedupeAndTrim trims every element and drops empty and repeated ones, keeping
// the first occurrence. Reasoner search terms go through it.
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "}) // ["foo", "bar"]
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeExact drops repeated elements compared byte for byte, without trimming.
// Policy excerpts go through it so their text reaches the judge unchanged.
func DedupeExact(values []string) []string {
	return dedupe(values, func(s string) string { return s })
}

func dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = normalize(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Preview shortens s to at most n runes, appending "..." when something was cut.
func Preview(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
