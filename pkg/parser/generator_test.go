package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerosm/powerosm/pkg/osm"
)

func TestParseGeneratorBasic(t *testing.T) {
	p, _, tracker := newTestPipeline(t, AllowMissing{Technology: true, StartDate: true})

	e := &osm.Element{
		ID: 700, Type: osm.TypeNode, Country: "DE", Lat: 52.0, Lon: 13.0,
		Tags: osm.Tags{
			"power": "generator", "generator:source": "wind", "name": "Turbine 1",
			"generator:output:electricity": "2 MW",
		},
	}

	u, ok := p.ParseGenerator(e)
	require.True(t, ok)
	assert.Equal(t, "Wind", u.FuelType)
	assert.InDelta(t, 2.0, u.CapacityMW, 1e-9)
	assert.Equal(t, "generator:node", u.ElementType)
	assert.Empty(t, tracker.All())
}

func TestParseGeneratorSkipsAlreadyProcessedSilently(t *testing.T) {
	p, _, tracker := newTestPipeline(t, AllowMissing{})

	e := &osm.Element{ID: 701, Type: osm.TypeNode, Processed: true}

	_, ok := p.ParseGenerator(e)
	assert.False(t, ok)
	assert.Empty(t, tracker.All())
}

// S6 — Containment rejection is a Workflow-level concern (testing against
// every successfully-parsed plant's geometry happens before GeneratorParser
// runs); this exercises the building block the Workflow relies on.
func TestSuccessfulPlantGeometriesExposedForContainmentCheck(t *testing.T) {
	p, _, _ := newTestPipeline(t, AllowMissing{})

	plant := &osm.Element{
		ID: 800, Type: osm.TypeNode, Country: "DE", Lat: 1, Lon: 1,
		Tags: osm.Tags{
			"power": "plant", "plant:source": "solar", "plant:method": "photovoltaic",
			"name": "Plant", "plant:output:electricity": "5 MW", "start_date": "2020",
		},
	}

	_, ok := p.ParsePlant(plant)
	require.True(t, ok)

	geoms := p.SuccessfulPlantGeometries()
	require.Len(t, geoms, 1)
	assert.True(t, geoms[0].ContainsPoint(1, 1, 0))
}

func TestAggregateNamesIdempotentOnSingleton(t *testing.T) {
	assert.Equal(t, "Solo Plant", AggregateNames([]string{"Solo Plant"}, 0.7))
}

func TestAggregateMajorityPicksMostFrequent(t *testing.T) {
	assert.Equal(t, "Wind", AggregateMajority([]string{"Wind", "Solar", "Wind"}))
}
