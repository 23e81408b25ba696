package loader

import (
	"slices"
	"sync"

	"github.com/dshills/clipai/internal/plugin"
)

// Factory constructs one plugin type.
type Factory struct {
	// Name identifies the plugin type within its module.
	Name string

	// New returns a fresh, uninitialized instance.
	New func() (plugin.Plugin, error)
}

// FactoryOf adapts a constructor that cannot fail.
func FactoryOf(name string, fn func() plugin.Plugin) Factory {
	return Factory{
		Name: name,
		New: func() (plugin.Plugin, error) {
			return fn(), nil
		},
	}
}

// Catalog holds compiled-in modules, each a named list of factories.
// Modules register themselves from init functions.
type Catalog struct {
	mu      sync.RWMutex
	modules map[string][]Factory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{modules: make(map[string][]Factory)}
}

// Register appends factories to module.
func (c *Catalog) Register(module string, factories ...Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules[module] = append(c.modules[module], factories...)
}

// Lookup returns the factories of module.
func (c *Catalog) Lookup(module string) ([]Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.modules[module]
	return slices.Clone(f), ok
}

// Modules returns the registered module names, sorted.
func (c *Catalog) Modules() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.modules))
	for name := range c.modules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

var defaultCatalog = NewCatalog()

// DefaultCatalog returns the process-wide catalog used by Register.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// Register adds factories to the process-wide catalog. It is meant to be
// called from init.
func Register(module string, factories ...Factory) {
	defaultCatalog.Register(module, factories...)
}
