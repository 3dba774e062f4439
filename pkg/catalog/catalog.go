// Package catalog implements the record source contract over a directory
// of JSON documents: a schema file declaring the type hierarchy and any
// number of record files holding the data.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/whatevertogo/asset-analyzer/pkg/logging"
	"github.com/whatevertogo/asset-analyzer/pkg/record"
)

// SchemaFileName is the reserved file declaring the catalog's types.
const SchemaFileName = "schema.json"

// Catalog loads records from a directory and serves them as a
// record.Source. It doubles as the reference extractor: references are
// the ref-kind field values resolved against the loaded set.
type Catalog struct {
	dir string

	mu      sync.RWMutex
	types   map[string]*record.Type
	records map[string]*record.Record
	order   []string // record keys in deterministic listing order
}

// Open loads the catalog directory. Malformed record files are logged
// and skipped rather than failing the load; a missing or broken schema
// file does fail, since nothing can be typed without it.
func Open(dir string) (*Catalog, error) {
	c := &Catalog{dir: dir}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Dir returns the catalog directory path.
func (c *Catalog) Dir() string { return c.dir }

// Reload re-reads the directory wholesale, replacing the record set. It
// is the refresh path the file watcher drives.
func (c *Catalog) Reload() error {
	types, err := loadSchema(filepath.Join(c.dir, SchemaFileName))
	if err != nil {
		return fmt.Errorf("catalog %s: %w", c.dir, err)
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", c.dir, err)
	}

	records := make(map[string]*record.Record)
	var order []string

	var names []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == SchemaFileName || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(c.dir, name)
		docs, err := loadRecordFile(path, types)
		if err != nil {
			logging.Warn("skipping malformed record file", "path", path, "error", err)
			continue
		}
		for _, r := range docs {
			if _, dup := records[r.Key]; dup {
				logging.Warn("duplicate record key, keeping first occurrence", "key", r.Key, "path", path)
				continue
			}
			records[r.Key] = r
			order = append(order, r.Key)
		}
	}

	c.mu.Lock()
	c.types = types
	c.records = records
	c.order = order
	c.mu.Unlock()

	logging.Info("catalog loaded", "dir", c.dir, "types", len(types), "records", len(records))
	return nil
}

// Type returns a declared type by name.
func (c *Catalog) Type(name string) (*record.Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.types[name]
	return t, ok
}

// ListAll returns every record in deterministic (file, declaration)
// order.
func (c *Catalog) ListAll() ([]*record.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*record.Record, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.records[key])
	}
	return out, nil
}

// LoadByKey returns the record with the given identity key, or (nil,
// nil) when absent.
func (c *Catalog) LoadByKey(key string) (*record.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records[key], nil
}

// ReferencesOf resolves the ref-kind field values of a record against
// the loaded set. Dangling references are logged and dropped; they never
// fail the extraction.
func (c *Catalog) ReferencesOf(r *record.Record) ([]*record.Record, error) {
	if r == nil {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var refs []*record.Record
	seen := make(map[string]bool)
	for _, name := range r.FieldNames() {
		v := r.Get(name)
		if v.Kind() != record.KindRef {
			continue
		}
		key := v.RefKey()
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		target, ok := c.records[key]
		if !ok {
			logging.Debug("dangling reference", "from", r.Key, "field", name, "to", key)
			continue
		}
		refs = append(refs, target)
	}
	return refs, nil
}
