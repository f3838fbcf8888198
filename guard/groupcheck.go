package guard

import "strings"

const (
	tokenJaccardThreshold  = 0.82
	trigramOverlapThreshold = 0.68
	lowSignalMaxChars      = 12
	lowSignalMaxWords      = 8
)

var boilerplatePhrases = map[string]bool{
	"ok":             true,
	"okay":           true,
	"sounds good":    true,
	"got it":         true,
	"sure":           true,
	"will do":        true,
	"on it":          true,
	"noted":          true,
	"thanks":         true,
	"understood":     true,
	"sounds good to me": true,
	"will do that":   true,
}

// GuardCheck inspects an outgoing route before it fans out. Only "group"
// routes are checked: content too similar to recent group broadcasts, and
// carrying no new signal, is suppressed rather than repeated to every peer.
func (g *GuardRail) GuardCheck(route, content string, peers []string) Decision {
	if route != "group" {
		return Decision{}
	}

	norm := normalize(content)
	defer g.rememberGroupNorm(norm)

	if len(g.recentGroupNorms) == 0 || norm == "" {
		return Decision{}
	}

	maxJaccard, maxTrigram := 0.0, 0.0
	for _, prior := range g.recentGroupNorms {
		if j := tokenJaccard(norm, prior); j > maxJaccard {
			maxJaccard = j
		}
		if t := trigramOverlap(norm, prior); t > maxTrigram {
			maxTrigram = t
		}
	}

	if maxJaccard < tokenJaccardThreshold || maxTrigram < trigramOverlapThreshold {
		return Decision{}
	}
	if !isLowSignal(norm) {
		return Decision{}
	}

	return Decision{
		Nudge:             "that message repeats what was already said to the group; add new information or stay quiet",
		Severity:          SeverityWarning,
		SuppressBroadcast: true,
		MuteMs:            1000,
	}
}

func (g *GuardRail) rememberGroupNorm(norm string) {
	if norm == "" {
		return
	}
	g.recentGroupNorms = append(g.recentGroupNorms, norm)
	if len(g.recentGroupNorms) > groupWindowSize {
		g.recentGroupNorms = g.recentGroupNorms[len(g.recentGroupNorms)-groupWindowSize:]
	}
}

func isLowSignal(norm string) bool {
	if len(norm) < lowSignalMaxChars {
		return true
	}
	if boilerplatePhrases[norm] {
		return true
	}
	words := strings.Fields(norm)
	return len(words) <= lowSignalMaxWords
}

func tokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

func trigramOverlap(a, b string) float64 {
	setA := trigramSet(a)
	setB := trigramSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for tri := range setA {
		if setB[tri] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func trigramSet(s string) map[string]bool {
	set := make(map[string]bool)
	if len(s) < 3 {
		if s != "" {
			set[s] = true
		}
		return set
	}
	for i := 0; i+3 <= len(s); i++ {
		set[s[i:i+3]] = true
	}
	return set
}
