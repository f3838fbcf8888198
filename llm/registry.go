package llm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/orgrun/org/config"
)

// Factory builds a ChatModel from a ProviderConfig. Provider packages
// register a Factory via Register in their init() function so that
// importing a provider package for side effect (see the package doc
// comment's blank import example) is enough to make it available here.
type Factory func(cfg config.ProviderConfig) (ChatModel, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a named factory to the registry, overwriting any existing
// factory registered under the same name. Providers call this from init()
// so the last blank-imported package wins, matching Go's own init-order
// semantics rather than panicking on re-registration.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// New creates a ChatModel by looking up name in the registry and invoking
// its factory with cfg.
func New(name string, cfg config.ProviderConfig) (ChatModel, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("llm: unknown provider %q (registered: %v)", name, List())
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
