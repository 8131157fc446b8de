package blocks

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"text/template"

	"github.com/phrazzld/copyblocks/internal/domain"
	"github.com/phrazzld/copyblocks/internal/generation"
)

// Catalog errors
var (
	ErrDuplicateBlock  = errors.New("duplicate block definition")
	ErrMissingSEOBlock = errors.New("catalog must define the " + domain.SEOMetadataBlock + " block")
)

// PromptData is the context a block prompt template is rendered with.
type PromptData struct {
	Title        string
	Topic        string
	FocusKeyword string
	Category     string
	// Context carries caller-supplied extra lines, rendered as "key: value" in key order.
	Context map[string]string
	Block   domain.BlockDefinition
}

type entry struct {
	def  domain.BlockDefinition
	tmpl *template.Template
}

// Catalog is the read-mostly set of block definitions. Replace swaps the whole
// set at once, so readers never observe a partially loaded catalog.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewCatalog validates defs and builds a catalog from them.
func NewCatalog(defs []domain.BlockDefinition) (*Catalog, error) {
	c := &Catalog{}
	if err := c.Replace(defs); err != nil {
		return nil, err
	}
	return c, nil
}

// Replace validates and compiles defs, then installs them atomically.
// On error the current definitions stay in place.
func (c *Catalog) Replace(defs []domain.BlockDefinition) error {
	entries := make(map[string]entry, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("block %q: %w", def.ID, err)
		}
		if _, exists := entries[def.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateBlock, def.ID)
		}

		tmpl, err := compile(def)
		if err != nil {
			return fmt.Errorf("block %q: parsing prompt template: %w", def.ID, err)
		}
		def.Fields = append([]domain.FieldSpec(nil), def.Fields...)
		entries[def.ID] = entry{def: def, tmpl: tmpl}
	}

	if _, ok := entries[domain.SEOMetadataBlock]; !ok {
		return ErrMissingSEOBlock
	}

	c.mu.Lock()
	c.entries = entries
	c.order = defaultOrder(entries)
	c.mu.Unlock()
	return nil
}

func compile(def domain.BlockDefinition) (*template.Template, error) {
	tmpl, err := template.New(def.ID).Option("missingkey=zero").Parse(pageContextTemplate)
	if err != nil {
		return nil, err
	}
	return tmpl.Parse(def.PromptTemplate)
}

// defaultOrder sorts by position then id. The seo block is excluded because
// callers always prepend it.
func defaultOrder(entries map[string]entry) []string {
	defs := make([]domain.BlockDefinition, 0, len(entries))
	for id, e := range entries {
		if id == domain.SEOMetadataBlock {
			continue
		}
		defs = append(defs, e.def)
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Position != defs[j].Position {
			return defs[i].Position < defs[j].Position
		}
		return defs[i].ID < defs[j].ID
	})

	order := make([]string, len(defs))
	for i, d := range defs {
		order[i] = d.ID
	}
	return order
}

// Get returns the definition for a block id or an unknown block error.
func (c *Catalog) Get(id string) (domain.BlockDefinition, error) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return domain.BlockDefinition{}, generation.NewUnknownBlockError(id)
	}
	return e.def, nil
}

// Has reports whether the catalog defines id.
func (c *Catalog) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[id]
	return ok
}

// DefaultOrder returns the default page block order, without the seo block.
func (c *Catalog) DefaultOrder() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Len returns the number of definitions, including the seo block.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RenderPrompt executes the block's prompt template.
func (c *Catalog) RenderPrompt(id string, data PromptData) (string, error) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return "", generation.NewUnknownBlockError(id)
	}

	data.Block = e.def
	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt for block %q: %w", id, err)
	}
	return buf.String(), nil
}
