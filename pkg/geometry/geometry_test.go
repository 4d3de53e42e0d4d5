package geometry

import (
	"testing"

	"github.com/go-kit/log"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerosm/powerosm/pkg/osm"
)

type fakeResolver struct {
	nodes map[int64]*osm.Element
	ways  map[int64]*osm.Element
}

func (f *fakeResolver) Node(id int64) (*osm.Element, bool) { n, ok := f.nodes[id]; return n, ok }
func (f *fakeResolver) Way(id int64) (*osm.Element, bool)  { w, ok := f.ways[id]; return w, ok }

func newResolver() *fakeResolver {
	return &fakeResolver{nodes: map[int64]*osm.Element{}, ways: map[int64]*osm.Element{}}
}

func (f *fakeResolver) addNode(id int64, lat, lon float64) {
	f.nodes[id] = &osm.Element{ID: id, Type: osm.TypeNode, Lat: lat, Lon: lon}
}

func TestWayGeometryTriangleFromThreeNodes(t *testing.T) {
	r := newResolver()
	r.addNode(1, 0, 0)
	r.addNode(2, 0, 1)
	r.addNode(3, 1, 1)

	way := &osm.Element{ID: 100, Type: osm.TypeWay, Nodes: []int64{1, 2, 3, 1}}

	h := NewHandler(r, log.NewNopLogger())
	g, ok := h.GetElementGeometry(way)
	require.True(t, ok)
	assert.Equal(t, ShapePolygon, g.Kind)
}

func TestWayGeometryTwoNodesFormsMidpoint(t *testing.T) {
	r := newResolver()
	r.addNode(1, 0, 0)
	r.addNode(2, 2, 2)

	way := &osm.Element{ID: 100, Type: osm.TypeWay, Nodes: []int64{1, 2}}

	h := NewHandler(r, log.NewNopLogger())
	g, ok := h.GetElementGeometry(way)
	require.True(t, ok)
	assert.Equal(t, ShapePoint, g.Kind)
	assert.InDelta(t, 1.0, g.Point.Y(), 1e-9)
	assert.InDelta(t, 1.0, g.Point.X(), 1e-9)
}

func TestWayGeometrySingleNodeIsThatPoint(t *testing.T) {
	r := newResolver()
	r.addNode(1, 5, 6)

	way := &osm.Element{ID: 100, Type: osm.TypeWay, Nodes: []int64{1}}

	h := NewHandler(r, log.NewNopLogger())
	g, ok := h.GetElementGeometry(way)
	require.True(t, ok)
	assert.Equal(t, ShapePoint, g.Kind)
	assert.InDelta(t, 5.0, g.Point.Y(), 1e-9)
}

func TestRelationWithOnlyNodeMembersUsesConvexHull(t *testing.T) {
	r := newResolver()
	r.addNode(1, 0, 0)
	r.addNode(2, 0, 2)
	r.addNode(3, 2, 2)
	r.addNode(4, 2, 0)

	rel := &osm.Element{
		ID: 200, Type: osm.TypeRelation,
		Members: []osm.Member{
			{Type: osm.TypeNode, Ref: 1}, {Type: osm.TypeNode, Ref: 2},
			{Type: osm.TypeNode, Ref: 3}, {Type: osm.TypeNode, Ref: 4},
		},
	}

	h := NewHandler(r, log.NewNopLogger())
	g, ok := h.GetElementGeometry(rel)
	require.True(t, ok)
	assert.Equal(t, ShapePolygon, g.Kind)
}

func TestRelationWithOneOrTwoNodeMembersIsRepresentativePoint(t *testing.T) {
	r := newResolver()
	r.addNode(1, 10, 20)

	rel := &osm.Element{
		ID: 200, Type: osm.TypeRelation,
		Members: []osm.Member{{Type: osm.TypeNode, Ref: 1}},
	}

	h := NewHandler(r, log.NewNopLogger())
	g, ok := h.GetElementGeometry(rel)
	require.True(t, ok)
	assert.Equal(t, ShapePoint, g.Kind)
}

func TestContainsPointBufferBoundary(t *testing.T) {
	g := &PlantGeometry{Kind: ShapePoint, Point: orb.Point{11.0, 48.0}}

	// ~49m away should be inside the default 50m buffer, ~51m should not.
	latDelta49 := 49.0 / metersPerDegreeLat
	latDelta51 := 51.0 / metersPerDegreeLat

	assert.True(t, g.ContainsPoint(48.0+latDelta49, 11.0, 0))
	assert.False(t, g.ContainsPoint(48.0+latDelta51, 11.0, 0))
}

func TestPolygonContainsPoint(t *testing.T) {
	ring := orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}
	g := &PlantGeometry{Kind: ShapePolygon, Polygon: orb.Polygon{ring}}

	assert.True(t, g.ContainsPoint(5, 5, 0))
	assert.False(t, g.ContainsPoint(50, 50, 0))
}
