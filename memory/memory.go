// Package memory implements each agent's bounded, multi-lane conversational
// memory: an append-only message buffer that is summarised lane-by-lane
// once it grows past a configured budget, with idempotent persistence to a
// per-agent file.
//
// The package keeps Beluga's registry pattern — implementations register a
// Factory via init() and callers look one up by name with New — even though
// LaneSummaryMemory is, for now, the only registered implementation; the
// registry is what lets a future memory variant (a smaller footprint for a
// constrained agent, say) be swapped in without touching callers.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/orgrun/org/schema"
)

// Memory is the per-agent conversational store. Implementations must be
// safe for concurrent use: Add may be called by the agent's turn executor
// while a background summarisation pass is in flight.
type Memory interface {
	// Add appends msg to the buffer and triggers the summarisation policy
	// check. It never blocks on summarisation itself.
	Add(msg schema.Message)

	// Messages returns a snapshot of the current buffer in chronological
	// order.
	Messages() []schema.Message

	// Load restores this memory's state from its persistence file for the
	// given agent id. A missing or empty file loads default (empty) state.
	Load(id string) error

	// Save persists this memory's state to its per-agent file via an
	// atomic rename.
	Save(id string) error
}

// Factory creates a Memory from a Config. Implementations register a
// Factory via Register in their init() function.
type Factory func(cfg Config) (Memory, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a named factory to the registry. Panics on an empty name,
// a nil factory, or a duplicate registration.
func Register(name string, f Factory) {
	if name == "" {
		panic("memory: Register called with empty name")
	}
	if f == nil {
		panic("memory: Register called with nil factory for " + name)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("memory: Register called twice for " + name)
	}
	registry[name] = f
}

// New creates a Memory by looking up name in the registry.
func New(name string, cfg Config) (Memory, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("memory: unknown provider %q (registered: %v)", name, List())
	}
	return f(cfg)
}

// List returns the sorted names of all registered factories.
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
	Register("lane-summary", func(cfg Config) (Memory, error) {
		return NewLaneSummaryMemory(cfg), nil
	})
}

// Factory takes a bare Config; direct callers that need the optional
// collaborators (persona distillation, a normative policy block, a
// scrubber, a dynamic budget) should construct with NewLaneSummaryMemory
// and its Option functions instead of going through the registry.
