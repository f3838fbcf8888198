// Package guard implements the per-agent GuardRail: stagnation, repeat-loop
// and low-signal detection that nudges, mutes or ends an agent's turn.
//
// The package keeps the teacher's pipeline-of-named-checks registry shape
// (Register/New/List, Name() string) for the one observation point that is
// genuinely a list of ordered, independently named checks: the tool-call
// repeat detectors run by NoteToolCall. The other observation points
// (BeginTurn, NoteAssistantTurn, NoteBadToolCall, GuardCheck, OnIdle)
// describe fixed behaviour on a single stateful type, not a swappable
// pipeline, so they are plain methods.
package guard

// Option configures optional GuardRail behaviour at construction time.
type Option func(*GuardRail)

// WithSeverityEscalation enables WARNING/STRONG/FINAL severity escalation
// on repeated missing-argument tool calls within a turn. Off by default;
// when off, NoteBadToolCall always reports SeverityWarning until the
// end-turn limit is reached, where it reports SeverityFinal.
func WithSeverityEscalation() Option {
	return func(g *GuardRail) { g.severityEscalation = true }
}

type toolCallState struct {
	repeats         int
	lastResSig      string
	unchangedStreak int
	failureStreak   int
}

// GuardRail observes one agent's turn activity and decides when to nudge,
// mute, suppress a broadcast, or force a turn to end. One GuardRail
// instance is owned exclusively by one agent.
type GuardRail struct {
	severityEscalation bool

	// per-turn state, reset by BeginTurn.
	maxToolHops               int
	badToolEndTurnLimit       int
	repeatToolSigEndTurnLimit int
	badToolCount              int
	consecutiveNoToolCalls    int

	// cross-turn state, persists across BeginTurn calls for this agent's
	// lifetime.
	toolCalls map[string]*toolCallState

	// sliding window of recent normalised group-broadcast contents,
	// consulted by GuardCheck's similarity comparison.
	recentGroupNorms []string
}

const groupWindowSize = 6

// New constructs a GuardRail with the given options applied.
func New(opts ...Option) *GuardRail {
	g := &GuardRail{toolCalls: make(map[string]*toolCallState)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BeginTurn zeroes per-turn counters and derives the adaptive end-turn
// limits from the hop budget for this turn.
func (g *GuardRail) BeginTurn(maxToolHops int) {
	g.maxToolHops = maxToolHops
	g.badToolCount = 0

	badLimit := (maxToolHops + 3) / 4
	repeatLimit := (maxToolHops + 2) / 3

	g.badToolEndTurnLimit = clamp(badLimit, 1, 4)
	g.repeatToolSigEndTurnLimit = clamp(repeatLimit, 2, 4)
}

// NoteAssistantTurn records whether the assistant's latest turn issued any
// tool calls, tracking the consecutive no-tool-call streak.
func (g *GuardRail) NoteAssistantTurn(text string, toolCalls int) {
	if toolCalls == 0 {
		g.consecutiveNoToolCalls++
	} else {
		g.consecutiveNoToolCalls = 0
	}
}

// ConsecutiveNoToolCalls reports the current no-tool-call streak, for
// callers (the turn executor, the scheduler) reacting to an agent stalling
// without ever calling a tool.
func (g *GuardRail) ConsecutiveNoToolCalls() int {
	return g.consecutiveNoToolCalls
}
