// Package store persists synthesized documents.
//
// A DocumentStore holds two artifacts: the staged document, which
// accumulates captures during a test run and may be reloaded by a fresh
// process, and the production document, which is written once the run
// completes. Stores assume a single writer; two test runs staging into the
// same target overwrite each other.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vitalvas/autodoc/openapi"
)

// DocumentStore is the durability boundary of the engine. Implementations
// must serialize documents on save so callers never share live references
// with the store.
type DocumentStore interface {
	// SaveStaged replaces the staged document.
	SaveStaged(doc *openapi.Document) error

	// LoadStaged returns the staged document, or nil when nothing is staged.
	LoadStaged() (*openapi.Document, error)

	// ClearStaged discards the staged document.
	ClearStaged() error

	// Commit writes doc as the production document, overwriting any
	// previous one, and clears the staged document.
	Commit(doc *openapi.Document) error

	// ReadProduction returns the production document. It fails with
	// ErrProductionMissing when nothing was committed.
	ReadProduction() (*openapi.Document, error)
}

// Built-in backend kinds.
const (
	KindJSON   = "json"
	KindYAML   = "yaml"
	KindMemory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	// Kind is "json" (default), "yaml", "memory", or the name of a
	// registered backend. The memory backend keeps nothing across
	// processes.
	Kind string

	// Path is the production document file.
	Path string

	// StagedPath is the staged document file. Defaults to
	// DefaultStagedPath(Path).
	StagedPath string
}

// Factory builds a custom backend from its configuration.
type Factory func(cfg Config) (DocumentStore, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a custom backend available under kind. Registering a
// built-in kind or the same kind twice replaces the previous factory.
func Register(kind string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[kind] = factory
}

// Backends returns the registered custom backend kinds, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// New builds the backend selected by cfg. It is called once at startup.
func New(cfg Config) (DocumentStore, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Kind]
	registryMu.RUnlock()
	if ok {
		return factory(cfg)
	}

	switch cfg.Kind {
	case "", KindJSON:
		return NewFile(cfg.Path, cfg.StagedPath, JSONCodec{})
	case KindYAML:
		return NewFile(cfg.Path, cfg.StagedPath, YAMLCodec{})
	case KindMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrBackendNotFound, cfg.Kind)
	}
}
