// Package scores pulls "N/10" review scores out of free-form video
// descriptions.
package scores

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// "decent 7/10", "STRONG 8.5/10"
	adjectivePattern = regexp.MustCompile(`(?i)\b(?:light|decent|strong)\s(\d+(?:\.\d+)?/10)\b`)
	// A whole whitespace-delimited token such as "7/10".
	simplePattern = regexp.MustCompile(`^\d+(?:\.\d+)?/10$`)
)

// Extract returns every score in description: first the scores qualified by
// an adjective (light, decent, strong), then every standalone "N/10" token.
// A qualified score is reported by both passes, matching the historical
// output format. The result is never nil.
func Extract(description string) []string {
	out := make([]string, 0, 2)
	for _, m := range adjectivePattern.FindAllStringSubmatch(description, -1) {
		out = append(out, m[1])
	}
	for _, token := range strings.FieldsFunc(description, unicode.IsSpace) {
		if simplePattern.MatchString(token) {
			out = append(out, token)
		}
	}
	return out
}
