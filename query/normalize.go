package query

import (
	"regexp"
	"strings"
)

var (
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize turns raw tool-call arguments into a canonical search query:
// punctuation is stripped, whitespace collapsed, and the result trimmed and lowercased.
// Letters and digits of any script are kept.
func Normalize(q string) string {
	q = nonWord.ReplaceAllString(q, "")
	q = whitespace.ReplaceAllString(q, " ")
	return strings.ToLower(strings.TrimSpace(q))
}
