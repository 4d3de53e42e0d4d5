package osm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/powerosm/powerosm/pkg/metrics"
)

// class names the six persisted JSON maps.
type class string

const (
	classNodes      class = "nodes"
	classWays       class = "ways"
	classRelations  class = "relations"
	classPlants     class = "plants"
	classGenerators class = "generators"
	classUnits      class = "units"
)

var classFiles = map[class]string{
	classNodes:      "nodes_data.json",
	classWays:       "ways_data.json",
	classRelations:  "relations_data.json",
	classPlants:     "plants_power.json",
	classGenerators: "generators_power.json",
	classUnits:      "processed_units.json",
}

// ElementCache persists raw OSM elements keyed by stringified id, and
// per-country plant/generator/unit bundles keyed by ISO alpha-2 code.
// Every operation is safe for concurrent use, though the core pipeline
// itself runs single-threaded; the locks exist so a scoped-resource
// wrapper can always call save_all from a deferred goroutine-free path
// without races.
type ElementCache struct {
	mu  sync.RWMutex
	dir string
	log log.Logger
	met *metrics.Registry

	raw     map[class]map[string]*Element
	bundles map[class]map[string][]*Element
	dirty   map[class]bool
}

// SetMetrics attaches a metrics.Registry so LoadAll/SaveAll report
// `powerosm_cache_entries`/`powerosm_cache_dirty_saves_total`. Optional; a
// cache with no registry attached behaves exactly as before.
func (c *ElementCache) SetMetrics(m *metrics.Registry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.met = m
}

// NewElementCache creates a cache rooted at dir. dir is not touched here; a
// save creates it if absent.
func NewElementCache(dir string, logger log.Logger) *ElementCache {
	return &ElementCache{
		dir: dir,
		log: logger,
		raw: map[class]map[string]*Element{
			classNodes:     {},
			classWays:      {},
			classRelations: {},
		},
		bundles: map[class]map[string][]*Element{
			classPlants:     {},
			classGenerators: {},
			classUnits:      {},
		},
		dirty: map[class]bool{},
	}
}

// LoadAll loads every class from disk. A corrupt or missing file degrades to
// an empty in-memory map and a warning, never an error returned to the
// caller.
func (c *ElementCache) LoadAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for cl := range c.raw {
		c.raw[cl] = loadMap[*Element](c.path(cl), c.log)
		c.met.SetCacheEntries(string(cl), len(c.raw[cl]))
	}

	for cl := range c.bundles {
		c.bundles[cl] = loadMap[[]*Element](c.path(cl), c.log)
		c.met.SetCacheEntries(string(cl), len(c.bundles[cl]))
	}
}

// SaveAll writes every dirty class to disk (or every class, if force is
// true). Write errors are logged with the path and do not abort the caller.
func (c *ElementCache) SaveAll(force bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for cl, m := range c.raw {
		if force || c.dirty[cl] {
			saveMap(c.path(cl), m, c.log)
			c.dirty[cl] = false
			c.met.IncCacheDirtySave(string(cl))
		}

		c.met.SetCacheEntries(string(cl), len(m))
	}

	for cl, m := range c.bundles {
		if force || c.dirty[cl] {
			saveMap(c.path(cl), m, c.log)
			c.dirty[cl] = false
			c.met.IncCacheDirtySave(string(cl))
		}

		c.met.SetCacheEntries(string(cl), len(m))
	}
}

func (c *ElementCache) path(cl class) string {
	return filepath.Join(c.dir, classFiles[cl])
}

// --- raw element access -----------------------------------------------

func (c *ElementCache) classFor(t ElementType) class {
	switch t {
	case TypeNode:
		return classNodes
	case TypeWay:
		return classWays
	case TypeRelation:
		return classRelations
	default:
		return ""
	}
}

// Get returns the cached element of the given type and id, if present.
func (c *ElementCache) Get(t ElementType, id int64) (*Element, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cl := c.classFor(t)
	if cl == "" {
		return nil, false
	}

	e, ok := c.raw[cl][idKey(id)]

	return e, ok
}

// Node returns the cached node with the given id, satisfying
// geometry.Resolver.
func (c *ElementCache) Node(id int64) (*Element, bool) { return c.Get(TypeNode, id) }

// Way returns the cached way with the given id, satisfying
// geometry.Resolver.
func (c *ElementCache) Way(id int64) (*Element, bool) { return c.Get(TypeWay, id) }

// Store inserts or replaces a single element.
func (c *ElementCache) Store(e *Element) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl := c.classFor(e.Type)
	if cl == "" {
		level.Error(c.log).Log("msg", "invalid element type, refusing to store", "type", e.Type, "id", e.ID)
		return
	}

	c.raw[cl][idKey(e.ID)] = e
	c.dirty[cl] = true
}

// StoreBulk inserts many elements of the same type at once: bulk store only
// admits elements whose type matches the target class, so any element of a
// different type than t is skipped and logged, not an error.
func (c *ElementCache) StoreBulk(t ElementType, elements []*Element) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl := c.classFor(t)
	if cl == "" {
		return
	}

	for _, e := range elements {
		if e.Type != t {
			level.Warn(c.log).Log("msg", "skipping element of mismatched type in bulk store", "expected", t, "got", e.Type, "id", e.ID)
			continue
		}

		c.raw[cl][idKey(e.ID)] = e
	}

	c.dirty[cl] = true
}

// --- per-country bundles ------------------------------------------------

// GetPlants returns the cached plant elements for country, if any.
func (c *ElementCache) GetPlants(country string) ([]*Element, bool) {
	return c.getBundle(classPlants, country)
}

// GetGenerators returns the cached generator elements for country, if any.
func (c *ElementCache) GetGenerators(country string) ([]*Element, bool) {
	return c.getBundle(classGenerators, country)
}

// GetUnitsBundle returns the raw persisted unit-bundle elements for country.
// Higher-level decoding into units.Unit happens in pkg/workflow.
func (c *ElementCache) GetUnitsBundle(country string) ([]*Element, bool) {
	return c.getBundle(classUnits, country)
}

func (c *ElementCache) getBundle(cl class, country string) ([]*Element, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.bundles[cl][country]

	return v, ok
}

// StorePlants stores the plant bundle for country. A null/empty country is a
// no-op logged at error level.
func (c *ElementCache) StorePlants(country string, elements []*Element) {
	c.storeBundle(classPlants, country, elements)
}

// StoreGenerators stores the generator bundle for country.
func (c *ElementCache) StoreGenerators(country string, elements []*Element) {
	c.storeBundle(classGenerators, country, elements)
}

// StoreUnitsBundle stores the raw processed-units bundle for country.
func (c *ElementCache) StoreUnitsBundle(country string, elements []*Element) {
	c.storeBundle(classUnits, country, elements)
}

func (c *ElementCache) storeBundle(cl class, country string, elements []*Element) {
	if country == "" {
		level.Error(c.log).Log("msg", "refusing to store bundle with empty country key", "class", cl)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.bundles[cl][country] = elements
	c.dirty[cl] = true
}

func idKey(id int64) string {
	return fmt.Sprintf("%d", id)
}

// --- file I/O -------------------------------------------------------------

// LoadJSONMap and SaveJSONMap expose the cache's atomic write-then-rename
// JSON map persistence to other packages that need the same format for a
// class ElementCache doesn't itself model (pkg/workflow's processed_units
// cache, which holds units.Unit rather than *Element).
func LoadJSONMap[V any](path string, logger log.Logger) map[string]V {
	return loadMap[V](path, logger)
}

// SaveJSONMap is LoadJSONMap's write-side counterpart.
func SaveJSONMap[V any](path string, m map[string]V, logger log.Logger) {
	saveMap(path, m, logger)
}

func loadMap[V any](path string, logger log.Logger) map[string]V {
	out := make(map[string]V)

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			level.Warn(logger).Log("msg", "failed to read cache file, starting empty", "path", path, "err", err)
		}

		return out
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		level.Warn(logger).Log("msg", "cache file is corrupt, starting empty", "path", path, "err", err)
		return make(map[string]V)
	}

	return out
}

func saveMap[V any](path string, m map[string]V, logger log.Logger) {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		level.Error(logger).Log("msg", "failed to marshal cache class", "path", path, "err", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		level.Error(logger).Log("msg", "failed to create cache directory", "path", filepath.Dir(path), "err", err)
		return
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		level.Error(logger).Log("msg", "failed to write cache file", "path", path, "err", err)
		return
	}

	if err := os.Rename(tmp, path); err != nil {
		level.Error(logger).Log("msg", "failed to finalize cache file", "path", path, "err", err)
	}
}
