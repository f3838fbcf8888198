package guard

import (
	"fmt"
	"sort"
	"sync"
)

// ToolCallObservation summarises one tool call's history for the repeat
// detectors registered below.
type ToolCallObservation struct {
	Name        string
	Repeats     int
	RepeatLimit int
	Unchanged   int
	FailStreak  int
}

// ToolCallDetector is one named, independently registered check run in
// order by NoteToolCall. A zero Decision means "no opinion"; the first
// non-zero decision wins.
type ToolCallDetector interface {
	Name() string
	Check(obs ToolCallObservation) Decision
}

// DetectorFactory creates a ToolCallDetector from a configuration map.
// Built-in detectors ignore cfg; the factory shape lets a caller register a
// configurable detector (a custom threshold, say) the same way.
type DetectorFactory func(cfg map[string]any) (ToolCallDetector, error)

// registry holds the named detector factories. It is populated via Register
// (typically in init functions) and consumed via New and List.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]DetectorFactory)
	// evalOrder is the fixed most-severe-first order NoteToolCall evaluates
	// detectors in.
	evalOrder = []string{"repeat-limit", "no-progress", "failure-streak", "mild-repeat"}
)

// Register adds a named detector factory to the global registry. It is safe
// to call from init functions. Register panics if name is empty or already
// registered.
func Register(name string, f DetectorFactory) {
	if name == "" {
		panic("guard: Register called with empty name")
	}
	if f == nil {
		panic("guard: Register called with nil factory for " + name)
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[name]; dup {
		panic("guard: Register called twice for " + name)
	}
	registry[name] = f
}

// NewDetector creates a ToolCallDetector by looking up the named factory in
// the registry and invoking it with cfg. Returns an error if the name is
// not registered.
func NewDetector(name string, cfg map[string]any) (ToolCallDetector, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("guard: unknown detector %q", name)
	}
	return f(cfg)
}

// List returns the sorted names of all registered detector factories.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("repeat-limit", func(map[string]any) (ToolCallDetector, error) {
		return repeatLimitDetector{}, nil
	})
	Register("no-progress", func(map[string]any) (ToolCallDetector, error) {
		return noProgressDetector{}, nil
	})
	Register("failure-streak", func(map[string]any) (ToolCallDetector, error) {
		return failureStreakDetector{}, nil
	})
	Register("mild-repeat", func(map[string]any) (ToolCallDetector, error) {
		return mildRepeatDetector{}, nil
	})
}

type repeatLimitDetector struct{}

func (repeatLimitDetector) Name() string { return "repeat-limit" }
func (repeatLimitDetector) Check(obs ToolCallObservation) Decision {
	if obs.Repeats >= obs.RepeatLimit {
		return Decision{
			Nudge:    fmt.Sprintf("tool %q has been called with the same arguments %d times; stop repeating it", obs.Name, obs.Repeats),
			Severity: SeverityFinal,
			EndTurn:  true,
			MuteMs:   1500,
		}
	}
	return Decision{}
}

type noProgressDetector struct{}

func (noProgressDetector) Name() string { return "no-progress" }
func (noProgressDetector) Check(obs ToolCallObservation) Decision {
	if obs.Unchanged >= 2 {
		return Decision{
			Nudge:    fmt.Sprintf("tool %q keeps returning the same result; this looks like a no-progress loop", obs.Name),
			Severity: SeverityStrong,
			EndTurn:  true,
		}
	}
	return Decision{}
}

type failureStreakDetector struct{}

func (failureStreakDetector) Name() string { return "failure-streak" }
func (failureStreakDetector) Check(obs ToolCallObservation) Decision {
	if obs.FailStreak >= 2 {
		return Decision{
			Nudge:    fmt.Sprintf("tool %q has failed %d times in a row", obs.Name, obs.FailStreak),
			Severity: SeverityWarning,
		}
	}
	return Decision{}
}

type mildRepeatDetector struct{}

func (mildRepeatDetector) Name() string { return "mild-repeat" }
func (mildRepeatDetector) Check(obs ToolCallObservation) Decision {
	if obs.Repeats == 2 {
		return Decision{
			Nudge:    fmt.Sprintf("tool %q has now been called twice with the same arguments", obs.Name),
			Severity: SeverityWarning,
		}
	}
	return Decision{}
}
