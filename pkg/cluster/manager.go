package cluster

import (
	"fmt"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/powerosm/powerosm/pkg/units"
)

// Manager runs per-source clustering over bare (non-salvaged) generators.
type Manager struct {
	sources map[string]SourceConfig
	log     log.Logger
}

// NewManager builds a Manager from the `sources.<src>.units_clustering`
// config blocks, keyed by normalized source name.
func NewManager(sources map[string]SourceConfig, logger log.Logger) *Manager {
	return &Manager{sources: sources, log: logger}
}

// Cluster partitions generators of the given fuel-type source into labelled
// groups. Points without lat/lon are excluded; label < 0 is DBSCAN noise,
// which CreatePlants passes through unchanged.
func (m *Manager) Cluster(generators []*units.Unit, source string) (ok bool, clusters map[int][]*units.Unit) {
	cfg, found := m.sources[source]
	if !found {
		level.Warn(m.log).Log("msg", "no clustering config for source, skipping", "source", source)
		return false, nil
	}

	var points [][2]float64

	var valid []*units.Unit

	for _, g := range generators {
		if g.Lat == 0 && g.Lon == 0 {
			continue
		}

		points = append(points, [2]float64{g.Lat, g.Lon})
		valid = append(valid, g)
	}

	if len(points) == 0 {
		level.Warn(m.log).Log("msg", "no valid coordinates for clustering", "source", source)
		return true, map[int][]*units.Unit{}
	}

	cfg = cfg.withDefaults(len(points))

	if cfg.ToRadians {
		for i, p := range points {
			points[i] = [2]float64{p[0] * math.Pi / 180, p[1] * math.Pi / 180}
		}
	}

	var labels []int

	switch cfg.Method {
	case MethodDBSCAN:
		labels = dbscan(points, cfg.Eps, cfg.MinSamples)
	case MethodKMeans:
		labels = kmeans(points, cfg.NClusters)
	default:
		level.Warn(m.log).Log("msg", "unknown clustering method", "source", source, "method", cfg.Method)
		return false, nil
	}

	clusters = map[int][]*units.Unit{}
	for i, label := range labels {
		clusters[label] = append(clusters[label], valid[i])
	}

	return true, clusters
}

// CreatePlants converts each non-noise cluster into one representative Unit
// (centroid lat/lon, summed capacity, template Country/Technology from the
// cluster's first member); noise-labelled members (label < 0) pass through
// unchanged.
func (m *Manager) CreatePlants(clusters map[int][]*units.Unit, source string) []*units.Unit {
	var out []*units.Unit

	for label, members := range clusters {
		if label < 0 {
			out = append(out, members...)
			continue
		}

		if len(members) == 0 {
			continue
		}

		var sumLat, sumLon, sumCap float64

		for _, g := range members {
			sumLat += g.Lat
			sumLon += g.Lon
			sumCap += g.CapacityMW
		}

		n := float64(len(members))
		template := members[0]

		plant := &units.Unit{
			ProjectID:      units.NewProjectIDFromKey(fmt.Sprintf("cluster/%s_%d", source, label)),
			Country:        template.Country,
			Lat:            sumLat / n,
			Lon:            sumLon / n,
			ElementType:    "cluster",
			FuelType:       source,
			Technology:     template.Technology,
			CapacityMW:     sumCap,
			Name:           fmt.Sprintf("Cluster of %d %s generators", len(members), source),
			GeneratorCount: len(members),
			Set:            "PP",
			CapacitySource: units.SourceAggregatedCluster,
			DateIn:         template.DateIn,
			OSMID:          fmt.Sprintf("cluster/%s_%d", source, label),
			CreatedAt:      time.Now().UTC(),
		}

		out = append(out, plant)
	}

	return out
}
