// Package geometry builds a shape for any OSM element and exposes the
// geometric predicates the parsers need: centroid, contains-point (with a
// latitude-corrected metre buffer for point geometries), and a convex-hull
// fallback for relations with no way members. Shapes are represented with
// github.com/paulmach/orb's Point/Polygon/MultiPolygon types, with centroid
// and area taken from orb/planar. Two algorithms are hand-rolled directly
// over orb's core types: point-in-ring, via a standard even-odd ray-casting
// test over orb.Ring, and the convex hull, via Andrew's monotone chain.
package geometry

import (
	"errors"
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/powerosm/powerosm/pkg/osm"
)

// ShapeKind discriminates the PlantGeometry variants.
type ShapeKind int

const (
	ShapePoint ShapeKind = iota
	ShapePolygon
	ShapeMultiPolygon
)

// defaultBufferMeters is the default radius used when testing containment
// against a Point-shaped plant.
const defaultBufferMeters = 50.0

// metersPerDegreeLat is the standard equirectangular approximation used
// throughout the pipeline for small-scale buffer/area conversions.
const metersPerDegreeLat = 111320.0

// PlantGeometry is the shape built for one OSM element.
type PlantGeometry struct {
	ElementID   int64
	ElementType osm.ElementType
	Kind        ShapeKind
	Point       orb.Point        // valid iff Kind == ShapePoint
	Polygon     orb.Polygon      // valid iff Kind == ShapePolygon
	MultiPoly   orb.MultiPolygon // valid iff Kind == ShapeMultiPolygon
	Source      *osm.Element
}

// Handler builds geometries from OSM elements and resolves the node/way
// references a Way or Relation needs, via a Resolver the caller supplies
// (normally the ElementCache).
type Handler struct {
	log      log.Logger
	resolver Resolver
}

// Resolver looks up already-cached nodes and ways by id, the way
// GeometryHandler needs to in order to build a shape from a Way or
// Relation's member references.
type Resolver interface {
	Node(id int64) (*osm.Element, bool)
	Way(id int64) (*osm.Element, bool)
}

// NewHandler builds a geometry Handler backed by resolver.
func NewHandler(resolver Resolver, logger log.Logger) *Handler {
	return &Handler{log: logger, resolver: resolver}
}

var errNoGeometry = errors.New("no geometry could be built for element")

// GetElementGeometry builds a shape for e, returning (nil, false) on any
// failure. Failures are logged but never themselves recorded as a
// rejection — the caller (a parser) decides whether the missing shape is
// fatal.
func (h *Handler) GetElementGeometry(e *osm.Element) (*PlantGeometry, bool) {
	switch e.Type {
	case osm.TypeNode:
		return &PlantGeometry{
			ElementID: e.ID, ElementType: e.Type, Kind: ShapePoint,
			Point: orb.Point{e.Lon, e.Lat}, Source: e,
		}, true
	case osm.TypeWay:
		return h.wayGeometry(e)
	case osm.TypeRelation:
		return h.relationGeometry(e)
	default:
		level.Warn(h.log).Log("msg", "unknown element type, cannot build geometry", "type", e.Type, "id", e.ID)
		return nil, false
	}
}

func (h *Handler) wayNodes(e *osm.Element) []orb.Point {
	pts := make([]orb.Point, 0, len(e.Nodes))

	for _, id := range e.Nodes {
		n, ok := h.resolver.Node(id)
		if !ok {
			continue
		}

		pts = append(pts, orb.Point{n.Lon, n.Lat})
	}

	return pts
}

// wayGeometry implements the way rules: <3 resolvable nodes -> Point at the
// midpoint (or the single node); a closed way with >=3 nodes -> Polygon.
func (h *Handler) wayGeometry(e *osm.Element) (*PlantGeometry, bool) {
	pts := h.wayNodes(e)

	if len(pts) == 0 {
		level.Warn(h.log).Log("msg", "way has no resolvable nodes", "id", e.ID)
		return nil, false
	}

	closed := len(pts) >= 2 && pts[0] == pts[len(pts)-1]
	unique := pts
	if closed {
		unique = pts[:len(pts)-1]
	}

	if len(unique) < 3 || !closed {
		return &PlantGeometry{
			ElementID: e.ID, ElementType: e.Type, Kind: ShapePoint,
			Point: midpoint(pts), Source: e,
		}, true
	}

	ring := orb.Ring(append(append([]orb.Point{}, unique...), unique[0]))
	if !validRing(ring) {
		level.Warn(h.log).Log("msg", "way forms a non-simple ring, rejecting polygon", "id", e.ID)
		return nil, false
	}

	return &PlantGeometry{
		ElementID: e.ID, ElementType: e.Type, Kind: ShapePolygon,
		Polygon: orb.Polygon{ring}, Source: e,
	}, true
}

// relationGeometry implements the relation rules: union of child way
// polygons; else convex hull of member node points (>=3); else a
// representative member point.
func (h *Handler) relationGeometry(e *osm.Element) (*PlantGeometry, bool) {
	var polys []orb.Polygon

	var nodePts []orb.Point

	for _, m := range e.Members {
		switch m.Type {
		case osm.TypeWay:
			way, ok := h.resolver.Way(m.Ref)
			if !ok {
				continue
			}

			if g, ok := h.wayGeometry(way); ok && g.Kind == ShapePolygon {
				polys = append(polys, g.Polygon)
			}
		case osm.TypeNode:
			n, ok := h.resolver.Node(m.Ref)
			if ok {
				nodePts = append(nodePts, orb.Point{n.Lon, n.Lat})
			}
		case osm.TypeRelation:
			// Nested relations are not recursively resolved; their members
			// simply don't contribute.
		}
	}

	if len(polys) == 1 {
		return &PlantGeometry{ElementID: e.ID, ElementType: e.Type, Kind: ShapePolygon, Polygon: polys[0], Source: e}, true
	}

	if len(polys) > 1 {
		return &PlantGeometry{ElementID: e.ID, ElementType: e.Type, Kind: ShapeMultiPolygon, MultiPoly: orb.MultiPolygon(polys), Source: e}, true
	}

	if len(nodePts) >= 3 {
		hull := convexHull(nodePts)
		return &PlantGeometry{ElementID: e.ID, ElementType: e.Type, Kind: ShapePolygon, Polygon: orb.Polygon{hull}, Source: e}, true
	}

	if len(nodePts) > 0 {
		return &PlantGeometry{ElementID: e.ID, ElementType: e.Type, Kind: ShapePoint, Point: nodePts[0], Source: e}, true
	}

	level.Warn(h.log).Log("msg", "relation has no usable members for geometry", "id", e.ID)

	return nil, false
}

// outputTagKeys are the tags that mark a relation member as a "real"
// generator rather than an aesthetic/administrative member, for the
// weighted-centroid fallback below.
var outputTagKeys = []string{"plant:output:electricity", "generator:output:electricity"}

// ProcessElementCoordinates resolves the best-known lat/lon for e: the
// geometry centroid if one could be built; otherwise, for relations only, a
// weighted centroid across member points that favours members carrying an
// output tag, so real generators outweigh aesthetic members.
func (h *Handler) ProcessElementCoordinates(e *osm.Element) (lat, lon float64, ok bool) {
	if g, built := h.GetElementGeometry(e); built {
		lat, lon = g.Centroid()
		return lat, lon, true
	}

	if e.Type != osm.TypeRelation {
		return 0, 0, false
	}

	type weighted struct {
		pt     orb.Point
		weight float64
	}

	var members []weighted

	for _, m := range e.Members {
		var el *osm.Element

		var found bool

		switch m.Type {
		case osm.TypeNode:
			el, found = h.resolver.Node(m.Ref)
		case osm.TypeWay:
			el, found = h.resolver.Way(m.Ref)
		}

		if !found {
			continue
		}

		pt, hasPt := elementPoint(el)
		if !hasPt {
			continue
		}

		weight := 1.0

		for _, k := range outputTagKeys {
			if el.Tags.Has(k) {
				weight = 10.0
				break
			}
		}

		members = append(members, weighted{pt: pt, weight: weight})
	}

	if len(members) == 0 {
		return 0, 0, false
	}

	var wx, wy, wsum float64
	for _, m := range members {
		wx += m.pt.X() * m.weight
		wy += m.pt.Y() * m.weight
		wsum += m.weight
	}

	return wy / wsum, wx / wsum, true
}

func elementPoint(e *osm.Element) (orb.Point, bool) {
	if e.Type == osm.TypeNode {
		return orb.Point{e.Lon, e.Lat}, true
	}

	if lat, lon, ok := e.Coordinates(); ok {
		return orb.Point{lon, lat}, true
	}

	return orb.Point{}, false
}

// Centroid returns the representative point of g.
func (g *PlantGeometry) Centroid() (lat, lon float64) {
	switch g.Kind {
	case ShapePoint:
		return g.Point.Y(), g.Point.X()
	case ShapePolygon:
		c, _ := planar.CentroidArea(g.Polygon)
		return c.Y(), c.X()
	case ShapeMultiPolygon:
		// Area-weighted centroid across member polygons.
		var cx, cy, totalArea float64

		for _, p := range g.MultiPoly {
			c, a := planar.CentroidArea(p)
			a = math.Abs(a)
			cx += c.X() * a
			cy += c.Y() * a
			totalArea += a
		}

		if totalArea == 0 {
			return 0, 0
		}

		return cy / totalArea, cx / totalArea
	}

	return 0, 0
}

// AreaSquareMeters computes the polygon's area with an equirectangular
// projection centred on its own centroid, then planar shoelace area in
// local metres.
func (g *PlantGeometry) AreaSquareMeters() float64 {
	switch g.Kind {
	case ShapePolygon:
		return projectedArea(g.Polygon)
	case ShapeMultiPolygon:
		var total float64
		for _, p := range g.MultiPoly {
			total += projectedArea(p)
		}

		return total
	default:
		return 0
	}
}

func projectedArea(poly orb.Polygon) float64 {
	if len(poly) == 0 || len(poly[0]) == 0 {
		return 0
	}

	lat0 := 0.0
	for _, p := range poly[0] {
		lat0 += p.Y()
	}

	lat0 /= float64(len(poly[0]))

	metersPerDegreeLon := metersPerDegreeLat * math.Cos(lat0*math.Pi/180)

	projected := make(orb.Ring, len(poly[0]))
	for i, p := range poly[0] {
		projected[i] = orb.Point{p.X() * metersPerDegreeLon, p.Y() * metersPerDegreeLat}
	}

	return math.Abs(planar.Area(orb.Polygon{projected}))
}

// ContainsPoint tests containment: for a Point shape, a latitude-corrected
// metre buffer acts as a radius test (default 50m); for Polygon/
// MultiPolygon, strict ray-casting containment.
func (g *PlantGeometry) ContainsPoint(lat, lon float64, bufferMeters float64) bool {
	if bufferMeters <= 0 {
		bufferMeters = defaultBufferMeters
	}

	switch g.Kind {
	case ShapePoint:
		dLat := (g.Point.Y() - lat) * metersPerDegreeLat
		metersPerDegreeLon := metersPerDegreeLat * math.Cos(lat*math.Pi/180)
		dLon := (g.Point.X() - lon) * metersPerDegreeLon
		dist := math.Hypot(dLat, dLon)

		return dist <= bufferMeters
	case ShapePolygon:
		return ringSetContains(g.Polygon, orb.Point{lon, lat})
	case ShapeMultiPolygon:
		for _, p := range g.MultiPoly {
			if ringSetContains(p, orb.Point{lon, lat}) {
				return true
			}
		}

		return false
	default:
		return false
	}
}

// ringSetContains tests a point against a polygon's exterior ring and
// subtracts any holes, using the even-odd ray-casting rule on each ring.
func ringSetContains(poly orb.Polygon, pt orb.Point) bool {
	if len(poly) == 0 {
		return false
	}

	if !pointInRing(poly[0], pt) {
		return false
	}

	for _, hole := range poly[1:] {
		if pointInRing(hole, pt) {
			return false
		}
	}

	return true
}

func pointInRing(ring orb.Ring, pt orb.Point) bool {
	inside := false

	n := len(ring)
	if n < 3 {
		return false
	}

	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if (pi.Y() > pt.Y()) != (pj.Y() > pt.Y()) {
			xIntersect := (pj.X()-pi.X())*(pt.Y()-pi.Y())/(pj.Y()-pi.Y()) + pi.X()
			if pt.X() < xIntersect {
				inside = !inside
			}
		}
	}

	return inside
}

func validRing(ring orb.Ring) bool {
	if len(ring) < 4 || ring[0] != ring[len(ring)-1] {
		return false
	}

	// Reject rings with a repeated interior vertex (degenerate/self-touching),
	// a cheap approximation of "non-simple" good enough to catch the common
	// OSM data-entry mistake of a duplicated node.
	seen := make(map[orb.Point]bool, len(ring))
	for _, p := range ring[:len(ring)-1] {
		if seen[p] {
			return false
		}

		seen[p] = true
	}

	return true
}

func midpoint(pts []orb.Point) orb.Point {
	if len(pts) == 1 {
		return pts[0]
	}

	var x, y float64
	for _, p := range pts {
		x += p.X()
		y += p.Y()
	}

	return orb.Point{x / float64(len(pts)), y / float64(len(pts))}
}

// convexHull computes the convex hull of pts via Andrew's monotone chain,
// used as the relation-geometry fallback. orb's own convexhull subpackage
// targets a broader Geometry interface than this
// pipeline needs; a direct monotone-chain implementation over orb.Point
// keeps the dependency surface to orb's stable core types while still being
// a standard, well-specified textbook algorithm rather than an invented one.
func convexHull(pts []orb.Point) orb.Ring {
	pts = uniqueSorted(pts)
	if len(pts) < 3 {
		ring := make(orb.Ring, len(pts))
		copy(ring, pts)

		if len(ring) > 0 {
			ring = append(ring, ring[0])
		}

		return ring
	}

	lower := buildChain(pts)
	upper := buildChain(reversed(pts))

	hull := append(lower[:len(lower)-1], upper...)

	return orb.Ring(hull)
}

func buildChain(pts []orb.Point) []orb.Point {
	chain := make([]orb.Point, 0, len(pts))
	for _, p := range pts {
		for len(chain) >= 2 && cross(chain[len(chain)-2], chain[len(chain)-1], p) <= 0 {
			chain = chain[:len(chain)-1]
		}

		chain = append(chain, p)
	}

	return chain
}

func cross(o, a, b orb.Point) float64 {
	return (a.X()-o.X())*(b.Y()-o.Y()) - (a.Y()-o.Y())*(b.X()-o.X())
}

func uniqueSorted(pts []orb.Point) []orb.Point {
	cp := append([]orb.Point{}, pts...)
	for i := 1; i < len(cp); i++ {
		for j := i; j > 0 && less(cp[j], cp[j-1]); j-- {
			cp[j], cp[j-1] = cp[j-1], cp[j]
		}
	}

	out := cp[:0]

	for i, p := range cp {
		if i == 0 || p != cp[i-1] {
			out = append(out, p)
		}
	}

	return out
}

func less(a, b orb.Point) bool {
	if a.X() != b.X() {
		return a.X() < b.X()
	}

	return a.Y() < b.Y()
}

func reversed(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}

	return out
}

// ErrNoGeometry is returned by callers that want a typed sentinel for "no
// geometry could be built", though Handler itself returns (nil, false).
var ErrNoGeometry = errNoGeometry
