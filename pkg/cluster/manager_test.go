package cluster

import (
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerosm/powerosm/pkg/units"
)

func gen(lat, lon, cap float64) *units.Unit {
	return &units.Unit{Country: "DE", Lat: lat, Lon: lon, CapacityMW: cap, Technology: "Onshore", DateIn: "2020"}
}

func TestDBSCANGroupsTightClusterAndFlagsNoise(t *testing.T) {
	mgr := NewManager(map[string]SourceConfig{
		"Wind": {Method: MethodDBSCAN, Eps: 0.05, MinSamples: 2},
	}, log.NewNopLogger())

	generators := []*units.Unit{
		gen(10.0, 10.0, 1),
		gen(10.01, 10.01, 1),
		gen(10.02, 10.0, 1),
		gen(50.0, 50.0, 1), // far away, noise
	}

	ok, clusters := mgr.Cluster(generators, "Wind")
	require.True(t, ok)

	require.Contains(t, clusters, -1)
	assert.Len(t, clusters[-1], 1)

	plants := mgr.CreatePlants(clusters, "Wind")

	var clusterPlants, passthrough int
	for _, p := range plants {
		if p.ElementType == "cluster" {
			clusterPlants++
			assert.InDelta(t, 3.0, p.CapacityMW, 1e-9)
			assert.Equal(t, 3, p.GeneratorCount)
		} else {
			passthrough++
		}
	}

	assert.Equal(t, 1, clusterPlants)
	assert.Equal(t, 1, passthrough)
}

func TestKMeansPartitionsAllPointsNoNoise(t *testing.T) {
	mgr := NewManager(map[string]SourceConfig{
		"Solar": {Method: MethodKMeans, NClusters: 2},
	}, log.NewNopLogger())

	generators := []*units.Unit{
		gen(0, 0, 1), gen(0.01, 0.01, 1),
		gen(10, 10, 1), gen(10.01, 10.01, 1),
	}

	ok, clusters := mgr.Cluster(generators, "Solar")
	require.True(t, ok)
	assert.NotContains(t, clusters, -1)

	plants := mgr.CreatePlants(clusters, "Solar")
	require.Len(t, plants, 2)

	for _, p := range plants {
		assert.Equal(t, "cluster", p.ElementType)
		assert.Equal(t, 2, p.GeneratorCount)
		assert.InDelta(t, 2.0, p.CapacityMW, 1e-9)
	}
}

func TestClusterSkipsPointsWithoutCoordinates(t *testing.T) {
	mgr := NewManager(map[string]SourceConfig{"Wind": {Method: MethodDBSCAN}}, log.NewNopLogger())

	ok, clusters := mgr.Cluster([]*units.Unit{{}}, "Wind")
	require.True(t, ok)
	assert.Empty(t, clusters)
}

func TestClusterUnknownSourceReturnsFalse(t *testing.T) {
	mgr := NewManager(map[string]SourceConfig{}, log.NewNopLogger())

	ok, _ := mgr.Cluster([]*units.Unit{gen(1, 1, 1)}, "Unknown")
	assert.False(t, ok)
}
