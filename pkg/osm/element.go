// Package osm defines the raw OSM element model and the two caches that sit
// in front of the Overpass API: ElementCache (persisted node/way/relation
// and per-country plant/generator/unit bundles) and CoordinateCache
// (lat/lon -> ISO alpha-2 country, backed by a bounded LRU).
package osm

import "strconv"

// ElementType discriminates the three OSM primitives.
type ElementType string

const (
	TypeNode     ElementType = "node"
	TypeWay      ElementType = "way"
	TypeRelation ElementType = "relation"
)

// Tags is a free-form string->string tag bag, as OSM elements carry them.
type Tags map[string]string

// Get returns the tag value and whether it was present.
func (t Tags) Get(key string) (string, bool) {
	v, ok := t[key]
	return v, ok
}

// Has reports whether key is present and non-empty.
func (t Tags) Has(key string) bool {
	v, ok := t[key]
	return ok && v != ""
}

// Member is one relation member: its role ("outer", "inner", ""), the type
// of element it references, and that element's id.
type Member struct {
	Role string      `json:"role"`
	Type ElementType `json:"type"`
	Ref  int64       `json:"ref"`
}

// Element is the tagged union of Node | Way | Relation. Exactly one of the
// type-specific fields is meaningful, selected by Type: an explicit
// three-way union instead of one struct with always-present pointer fields,
// since dispatch happens at exactly one site (GeometryHandler) and at one
// site per parser.
type Element struct {
	ID   int64       `json:"id"`
	Type ElementType `json:"type"`
	Tags Tags        `json:"tags,omitempty"`

	// Node fields.
	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`

	// Way fields.
	Nodes []int64 `json:"nodes,omitempty"`

	// Relation fields.
	Members []Member `json:"members,omitempty"`

	// Derived annotations injected by the pipeline.
	Country    string   `json:"_country,omitempty"`
	DerivedLat *float64 `json:"_lat,omitempty"`
	DerivedLon *float64 `json:"_lon,omitempty"`

	// Processed marks that this element has already produced (or
	// contributed to) a Unit in the current run, so it is never
	// reconsidered as a standalone generator.
	Processed bool `json:"-"`
}

// Key returns the cache/rejection id "type/id", e.g. "relation/123".
func (e *Element) Key() string {
	return string(e.Type) + "/" + strconv.FormatInt(e.ID, 10)
}

// Coordinates returns the best-known lat/lon for this element: the derived
// centroid if present, else the node's own lat/lon, else false.
func (e *Element) Coordinates() (lat, lon float64, ok bool) {
	if e.DerivedLat != nil && e.DerivedLon != nil {
		return *e.DerivedLat, *e.DerivedLon, true
	}

	if e.Type == TypeNode && (e.Lat != 0 || e.Lon != 0) {
		return e.Lat, e.Lon, true
	}

	return 0, 0, false
}

// SetCoordinates stamps the derived centroid annotation.
func (e *Element) SetCoordinates(lat, lon float64) {
	e.DerivedLat = &lat
	e.DerivedLon = &lon
}
