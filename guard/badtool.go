package guard

import "fmt"

// NoteBadToolCall records a malformed tool invocation. Only reason
// "missing-arg" accumulates toward the end-turn limit; other reasons are
// logged by the caller but produce no guard decision here.
func (g *GuardRail) NoteBadToolCall(name, reason string, missingArgs []string) Decision {
	if reason != "missing-arg" {
		return Decision{}
	}

	g.badToolCount++

	sev := SeverityWarning
	if g.severityEscalation {
		switch {
		case g.badToolCount >= g.badToolEndTurnLimit:
			sev = SeverityFinal
		case g.badToolCount >= (g.badToolEndTurnLimit+1)/2:
			sev = SeverityStrong
		}
	} else if g.badToolCount >= g.badToolEndTurnLimit {
		sev = SeverityFinal
	}

	d := Decision{
		Nudge:    fmt.Sprintf("tool %q is missing required argument(s) %v; provide them or stop calling it", name, missingArgs),
		Severity: sev,
	}
	if g.badToolCount >= g.badToolEndTurnLimit {
		d.EndTurn = true
	}
	return d
}
