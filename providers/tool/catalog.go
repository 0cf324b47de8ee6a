package tool

import (
	"slices"
	"strings"
	"sync"

	"github.com/leofalp/aigoflow/providers/ai"
)

// Catalog is a concurrency-safe set of tools keyed by lower-cased name.
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]GenericTool
}

func NewCatalog() *Catalog {
	return &Catalog{tools: make(map[string]GenericTool)}
}

func NewCatalogWithTools(tools ...GenericTool) *Catalog {
	catalog := NewCatalog()
	catalog.AddTools(tools...)
	return catalog
}

// AddTools registers tools, replacing any existing tool of the same name.
func (c *Catalog) AddTools(tools ...GenericTool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tools {
		c.tools[strings.ToLower(t.ToolInfo().Name)] = t
	}
}

// Get looks a tool up by name, ignoring case.
func (c *Catalog) Get(name string) (GenericTool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, exists := c.tools[strings.ToLower(name)]
	return t, exists
}

func (c *Catalog) Has(name string) bool {
	_, exists := c.Get(name)
	return exists
}

// Descriptions returns the tool descriptions sorted by name, so requests built
// from the same catalog are byte-identical.
func (c *Catalog) Descriptions() []ai.ToolDescription {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	slices.Sort(names)

	descriptions := make([]ai.ToolDescription, 0, len(names))
	for _, name := range names {
		descriptions = append(descriptions, c.tools[name].ToolInfo())
	}
	return descriptions
}

func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}
