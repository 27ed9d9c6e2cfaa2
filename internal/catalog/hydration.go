package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

// NotAvailable is the explicit marker for hydration fields the side table
// does not carry. Consumers render it verbatim instead of inventing text.
const NotAvailable = "not available"

// Row is one hydration entry: descriptive metadata keyed by entity name
// that the graph itself does not store.
type Row struct {
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Application string `json:"application,omitempty"`
	API         string `json:"api,omitempty"`
	Entity      string `json:"entity,omitempty"`
	Element     string `json:"element,omitempty"`
}

// Field returns the named field, or NotAvailable when empty or unknown.
func (r Row) Field(key string) string {
	var v string
	switch key {
	case "description":
		v = r.Description
	case "category":
		v = r.Category
	case "application":
		v = r.Application
	case "api":
		v = r.API
	case "entity":
		v = r.Entity
	case "element":
		v = r.Element
	}
	if v == "" {
		return NotAvailable
	}
	return v
}

// Hydration is the side table of entity metadata, read from a JSON file
// mapping entity name to Row. A missing file is an empty table, not an
// error; serialization then degrades to graph properties only.
type Hydration struct {
	mu   sync.RWMutex
	path string
	log  *zap.Logger
	rows map[string]Row
}

// NewHydration creates the table over the given file path without reading
// it. Call Reload to populate.
func NewHydration(path string, log *zap.Logger) *Hydration {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hydration{path: path, log: log, rows: map[string]Row{}}
}

// Reload re-reads the side table file. A missing file clears the table
// and returns nil; a malformed file keeps the previous rows and returns
// the parse error.
func (h *Hydration) Reload() error {
	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		h.mu.Lock()
		h.rows = map[string]Row{}
		h.mu.Unlock()
		h.log.Debug("hydration file absent", zap.String("path", h.path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read hydration table: %w", err)
	}

	rows := map[string]Row{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("parse hydration table %s: %w", h.path, err)
	}

	h.mu.Lock()
	h.rows = rows
	h.mu.Unlock()

	h.log.Info("hydration table reloaded", zap.String("path", h.path), zap.Int("rows", len(rows)))
	return nil
}

// Lookup returns the row for an entity name.
func (h *Hydration) Lookup(name string) (Row, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	row, ok := h.rows[name]
	return row, ok
}

// Len returns the number of hydrated entities.
func (h *Hydration) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rows)
}

// Path returns the file backing the table.
func (h *Hydration) Path() string {
	return h.path
}
