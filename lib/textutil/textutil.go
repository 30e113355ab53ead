package textutil

import (
	"regexp"
	"strings"

	"docsis-exporter/lib/htmlutil"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases name and strips all of its whitespace, it is
// meant for loose substring matching, not for exact header comparison.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// MatchName reports whether the normalized name contains any of matchers.
// Matchers are expected to be lowercase without whitespace.
func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// NormalizeHeader is the canonical form a column header is compared in:
// lowercase, trimmed, inner whitespace collapsed to a single space.
func NormalizeHeader(name string) string {
	return strings.ToLower(htmlutil.CollapseWhitespace(name))
}
