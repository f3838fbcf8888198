package tag

import "strings"

func isTokenRune(r rune) bool {
	return r == '_' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// isTrailingPunct reports whether r is sentence punctuation that commonly
// follows a tag token ("@@group. hi all") without being part of it or of
// the boundary whitespace that follows.
func isTrailingPunct(r rune) bool {
	switch r {
	case '.', ',', ';', ':', '!', '?':
		return true
	}
	return false
}

// tagMatch describes a recognised tag found at a given byte offset.
type tagMatch struct {
	start        int // offset of the tag's first rune
	contentStart int // offset where the tag's content begins
	kind         Kind
	tag          string
}

// Parse splits text into ordered ParsedTag segments according to cfg. Tags
// only begin at the start of text or immediately after a boundary rune;
// unrecognised tokens are left as plain content. The returned index numbers
// segments in output order, starting at 0.
func Parse(text string, cfg Config) []ParsedTag {
	matches := findTags(text, cfg)
	if len(matches) == 0 {
		return []ParsedTag{{Kind: KindGroup, Content: strings.TrimSpace(text)}}
	}

	var out []ParsedTag
	if lead := strings.TrimSpace(text[:matches[0].start]); lead != "" {
		out = append(out, ParsedTag{Kind: KindGroup, Content: lead})
	}

	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1].start
		}
		out = append(out, ParsedTag{
			Kind:    m.kind,
			Tag:     m.tag,
			Content: strings.TrimSpace(text[m.contentStart:end]),
		})
	}

	for i := range out {
		out[i].Index = i
	}
	return out
}

func findTags(text string, cfg Config) []tagMatch {
	var matches []tagMatch
	atBoundary := true // start-of-string counts as a boundary

	for i := 0; i < len(text); {
		r := rune(text[i])
		width := 1

		if atBoundary {
			if m, ok := matchAt(text, i, cfg); ok {
				matches = append(matches, m)
				i = m.contentStart
				atBoundary = false
				continue
			}
		}

		atBoundary = cfg.isBoundary(r)
		i += width
	}
	return matches
}

// matchAt attempts to recognise a tag starting exactly at offset i.
func matchAt(text string, i int, cfg Config) (tagMatch, bool) {
	if m, ok := matchAgentLike(text, i, cfg, "@@"); ok {
		return m, true
	}
	if cfg.AllowSingleAt {
		if m, ok := matchAgentLike(text, i, cfg, "@"); ok {
			return m, true
		}
	}
	if m, ok := matchFile(text, i, cfg, "##"); ok {
		return m, true
	}
	if cfg.AllowSingleHash {
		if m, ok := matchFile(text, i, cfg, "#"); ok {
			return m, true
		}
	}
	return tagMatch{}, false
}

func matchAgentLike(text string, i int, cfg Config, prefix string) (tagMatch, bool) {
	if !strings.HasPrefix(text[i:], prefix) {
		return tagMatch{}, false
	}
	// Avoid "@@" being re-matched as two single "@" tags when prefix is "@".
	if prefix == "@" && strings.HasPrefix(text[i:], "@@") {
		return tagMatch{}, false
	}
	j := i + len(prefix)
	start := j
	for j < len(text) && isTokenRune(rune(text[j])) {
		j++
	}
	token := text[start:j]
	if token == "" {
		return tagMatch{}, false
	}

	contentStart := j
	for contentStart < len(text) && isTrailingPunct(rune(text[contentStart])) {
		contentStart++
	}

	switch {
	case matchToken(cfg.AgentTokens, token):
		return tagMatch{start: i, contentStart: contentStart, kind: KindAgent, tag: token}, true
	case matchToken(cfg.UserTokens, token):
		return tagMatch{start: i, contentStart: contentStart, kind: KindUser, tag: token}, true
	case matchToken(cfg.GroupTokens, token):
		return tagMatch{start: i, contentStart: contentStart, kind: KindGroup, tag: token}, true
	default:
		return tagMatch{}, false
	}
}

func matchFile(text string, i int, cfg Config, prefix string) (tagMatch, bool) {
	if !strings.HasPrefix(text[i:], prefix) {
		return tagMatch{}, false
	}
	if prefix == "#" && strings.HasPrefix(text[i:], "##") {
		return tagMatch{}, false
	}
	j := i + len(prefix)
	start := j
	for j < len(text) && isTokenRune(rune(text[j])) {
		j++
	}
	token := text[start:j]

	if token != "" && matchToken(cfg.FileTokens, token) && j < len(text) && text[j] == ':' {
		j++
		nameStart := j
		for j < len(text) && !cfg.isBoundary(rune(text[j])) {
			j++
		}
		return tagMatch{start: i, contentStart: j, kind: KindFile, tag: normalizeFilename(text[nameStart:j])}, true
	}

	if cfg.AllowFileShorthand {
		j = start
		for j < len(text) && !cfg.isBoundary(rune(text[j])) {
			j++
		}
		name := text[start:j]
		if name == "" {
			return tagMatch{}, false
		}
		return tagMatch{start: i, contentStart: j, kind: KindFile, tag: normalizeFilename(name)}, true
	}

	return tagMatch{}, false
}

func normalizeFilename(name string) string {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, ".") {
		return name
	}
	return "./" + name
}
