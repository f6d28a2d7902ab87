package pipeline

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs one stage instance. It returns an error when the
// settings are missing a required field or hold an invalid value.
type Factory func(s Settings, env *Env) (Receiver, error)

// Catalog maps stage types to factories.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register adds a factory for stageType. Registering a type twice is an error.
func (c *Catalog) Register(stageType string, f Factory) error {
	if stageType == "" {
		return fmt.Errorf("stage type cannot be empty")
	}
	if f == nil {
		return fmt.Errorf("factory for stage type '%s' cannot be nil", stageType)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[stageType]; exists {
		return fmt.Errorf("stage type '%s' already registered", stageType)
	}
	c.factories[stageType] = f
	return nil
}

// Lookup returns the factory for stageType.
func (c *Catalog) Lookup(stageType string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[stageType]
	return f, ok
}

// Types lists the registered stage types in sorted order.
func (c *Catalog) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	types := make([]string, 0, len(c.factories))
	for t := range c.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
