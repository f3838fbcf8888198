package guard

import (
	"regexp"
	"strings"
)

var (
	fenceRe     = regexp.MustCompile("```[a-zA-Z0-9]*")
	punctRe     = regexp.MustCompile(`[` + "`" + `*_#>\-]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// normalize strips code fences and markdown punctuation, lowercases, and
// collapses whitespace, used both as the tool-call argument-signature key
// and as the group-broadcast similarity input.
func normalize(s string) string {
	s = fenceRe.ReplaceAllString(s, "")
	s = punctRe.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
