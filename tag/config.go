// Package tag splits a block of text into ordered, classified segments
// delimited by @@agent, @@group, @@user, and ##file tags.
package tag

import "strings"

// Kind classifies a ParsedTag.
type Kind string

const (
	KindAgent Kind = "agent"
	KindGroup Kind = "group"
	KindUser  Kind = "user"
	KindFile  Kind = "file"
)

// ParsedTag is one classified, ordered segment of a parsed input.
type ParsedTag struct {
	Kind    Kind
	Tag     string
	Content string
	Index   int
}

// Config controls which tokens the parser recognises and how permissively.
type Config struct {
	// AgentTokens are the names recognised after @@ (or @) as agent tags.
	// Matching is case-insensitive.
	AgentTokens []string

	// UserTokens are recognised as the user tag. Defaults to ["user"].
	UserTokens []string

	// GroupTokens are recognised as the group tag. Defaults to ["group"].
	GroupTokens []string

	// FileTokens are recognised as the ##token: file-tag prefix. Defaults
	// to ["file"].
	FileTokens []string

	// AllowSingleAt permits a single @ to introduce an agent/group/user tag,
	// in addition to the canonical @@.
	AllowSingleAt bool

	// AllowSingleHash permits a single # to introduce a file tag, in
	// addition to the canonical ##.
	AllowSingleHash bool

	// AllowFileShorthand permits ##<path> (no "file:" prefix) to classify
	// as a file tag.
	AllowFileShorthand bool

	// BoundaryChars are the runes that may precede a tag besides
	// start-of-string. Defaults to whitespace plus newline.
	BoundaryChars string
}

// DefaultConfig returns the Config used when no agent-specific overrides are
// supplied: the user/group/file token defaults, single-@ and single-#
// disabled, file shorthand enabled, and whitespace boundaries.
func DefaultConfig() Config {
	return Config{
		UserTokens:          []string{"user"},
		GroupTokens:         []string{"group"},
		FileTokens:          []string{"file"},
		AllowFileShorthand:  true,
		BoundaryChars:       " \t\n\r",
	}
}

func (c Config) boundaryChars() string {
	if c.BoundaryChars == "" {
		return " \t\n\r"
	}
	return c.BoundaryChars
}

func (c Config) isBoundary(r rune) bool {
	return strings.ContainsRune(c.boundaryChars(), r)
}

func matchToken(tokens []string, name string) bool {
	for _, t := range tokens {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}
