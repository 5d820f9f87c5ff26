package model

import (
	"sort"
	"sync"

	"github.com/adalundhe/lattice/core/errors"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Loader)
)

// RegisterBackend makes a model loader available under a name. Backends
// register from their package init; the serving path resolves the configured
// name lazily, so a missing backend surfaces on first model use.
func RegisterBackend(name string, loader Loader) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = loader
}

// OpenBackend returns the loader registered under name.
func OpenBackend(name string) (Loader, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	loader, ok := registry[name]
	if !ok {
		return nil, errors.Configuration("no model backend registered as %q (available: %v)", name, backendNames())
	}
	return loader, nil
}

func backendNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
