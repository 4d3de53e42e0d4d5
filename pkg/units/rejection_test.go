package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerosm/powerosm/pkg/osm"
)

func TestTrackerDedupesExactTuples(t *testing.T) {
	tr := NewTracker()
	e := &osm.Element{ID: 1, Type: osm.TypeNode}

	tr.AddRejection(e, ReasonMissingSource, "no source tag", "")
	tr.AddRejection(e, ReasonMissingSource, "no source tag", "")
	tr.AddRejection(e, ReasonMissingSource, "different details", "")

	all := tr.All()
	require.Len(t, all, 2)
}

func TestTrackerDeleteForUnitsClearsEntries(t *testing.T) {
	tr := NewTracker()
	e := &osm.Element{ID: 5, Type: osm.TypeNode}

	tr.AddRejection(e, ReasonMissingName, "no name", "")
	require.Len(t, tr.All(), 1)

	tr.DeleteForUnits([]*Unit{{OSMID: "node/5"}})

	assert.Empty(t, tr.All())
}

func TestGetUniqueKeywordRanksByCount(t *testing.T) {
	tr := NewTracker()

	tr.AddRejection(&osm.Element{ID: 1, Type: osm.TypeNode}, ReasonCapacityNonNumeric, "", "n/a")
	tr.AddRejection(&osm.Element{ID: 2, Type: osm.TypeNode}, ReasonCapacityNonNumeric, "", "n/a")
	tr.AddRejection(&osm.Element{ID: 3, Type: osm.TypeNode}, ReasonCapacityNonNumeric, "", "unknown")

	hist := tr.GetUniqueKeyword(ReasonCapacityNonNumeric)
	require.Len(t, hist, 2)
	assert.Equal(t, "n/a", hist[0].Keyword)
	assert.Equal(t, 2, hist[0].Count)
}

func TestProjectIDIsDeterministic(t *testing.T) {
	id1 := NewProjectID(osm.TypeRelation, 42, DiscriminatorPlant)
	id2 := NewProjectID(osm.TypeRelation, 42, DiscriminatorPlant)
	id3 := NewProjectID(osm.TypeRelation, 42, DiscriminatorGenerator)

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
}

func TestCollectionNeverHoldsDuplicateProjectIDs(t *testing.T) {
	c := NewCollection()
	id := NewProjectID(osm.TypeNode, 1, DiscriminatorPlant)

	c.Add(Unit{ProjectID: id, CapacityMW: 1})
	c.Add(Unit{ProjectID: id, CapacityMW: 2})

	require.Equal(t, 1, c.Len())
	assert.InDelta(t, 2.0, c.All()[0].CapacityMW, 1e-9)
}
