// Package workflow orchestrates one country's processing run:
// cache-validity check, fetch, plant/generator parsing, salvage,
// clustering, and persistence, tying together every other pkg/ package.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/powerosm/powerosm/pkg/capacity"
	"github.com/powerosm/powerosm/pkg/cluster"
	"github.com/powerosm/powerosm/pkg/config"
	"github.com/powerosm/powerosm/pkg/geometry"
	"github.com/powerosm/powerosm/pkg/mapping"
	"github.com/powerosm/powerosm/pkg/metrics"
	"github.com/powerosm/powerosm/pkg/osm"
	"github.com/powerosm/powerosm/pkg/overpass"
	"github.com/powerosm/powerosm/pkg/parser"
	"github.com/powerosm/powerosm/pkg/units"
)

// unitsCacheFile is the processed-units cache file name, keyed by ISO
// country code.
const unitsCacheFile = "processed_units.json"

// Workflow runs the per-country pipeline. A Workflow is built once per
// process and reused across every country: cross-country processing is a
// serial loop.
type Workflow struct {
	cfg      *config.Config
	overpass *overpass.Client
	cache    *osm.ElementCache
	geo      *geometry.Handler
	mapper   *mapping.Mapper
	extract  *capacity.Extractor
	estimate *capacity.Estimator
	clusterM *cluster.Manager
	tracker  *units.Tracker
	met      *metrics.Registry
	log      log.Logger

	cacheDir string

	// reportedRejections is the last-reported CountByReasonForCountry
	// snapshot per country, so re-running the same country in one process
	// only reports the delta to the monotonic Prometheus counter.
	reportedRejections map[string]map[units.Reason]int
}

// New builds a Workflow from cfg, wiring the Mapper/Extractor/Estimator/
// ClusteringManager collaborators each country run shares. met may be nil,
// in which case metric recording is a no-op.
func New(cfg *config.Config, overpassClient *overpass.Client, cache *osm.ElementCache, geo *geometry.Handler, cacheDir string, met *metrics.Registry, logger log.Logger) (*Workflow, error) {
	extractor, err := capacity.NewExtractor(cfg.CapacityExtraction.RegexPatterns)
	if err != nil {
		return nil, fmt.Errorf("building capacity extractor: %w", err)
	}

	return &Workflow{
		cfg:                cfg,
		overpass:           overpassClient,
		cache:              cache,
		geo:                geo,
		mapper:             mapping.NewMapper(cfg.MappingConfig()),
		extract:            extractor,
		estimate:           capacity.NewEstimator(0),
		clusterM:           cluster.NewManager(cfg.ClusterSources(), logger),
		tracker:            units.NewTracker(),
		met:                met,
		log:                logger,
		cacheDir:           cacheDir,
		reportedRejections: map[string]map[units.Reason]int{},
	}, nil
}

// Tracker exposes the Workflow's RejectionTracker for reporting callers
// (cmd/powerosm's report sub-command).
func (w *Workflow) Tracker() *units.Tracker { return w.tracker }

// Result is the outcome of one RunCountry call.
type Result struct {
	Country string
	Units   []*units.Unit
	Cached  bool
}

// RunCountry runs the full pipeline for one country: cache check, fetch,
// parse plants and generators, salvage orphaned members, cluster, and
// persist the resulting units.
func (w *Workflow) RunCountry(ctx context.Context, country string) (Result, error) {
	runID := uuid.New().String()
	logger := log.With(w.log, "country", country, "run_id", runID)
	start := time.Now()

	configHash := w.cfg.ConfigHash()

	if !w.cfg.ForceRefresh {
		if cached, ok := w.loadCached(country, configHash, logger); ok {
			level.Info(logger).Log("msg", "adopting cached units, config_hash unchanged", "count", len(cached))
			return Result{Country: country, Units: cached, Cached: true}, nil
		}
	}

	plants, generators := w.overpass.GetCountryData(ctx, country, w.cfg.PlantsOnly)
	if plants.Error != "" {
		return Result{}, fmt.Errorf("fetching plants for %s: %s", country, plants.Error)
	}

	if generators.Error != "" {
		return Result{}, fmt.Errorf("fetching generators for %s: %s", country, generators.Error)
	}

	pipeline := parser.NewPipeline(w.cfg.ParserConfig(w.mapper, w.extract, w.estimate), w.geo, w.cache, w.tracker, logger)

	var all []*units.Unit

	bySource := map[string][]*units.Unit{}

	for _, e := range plants.Elements {
		if unit, ok := pipeline.ParsePlant(e); ok {
			all = append(all, unit)
			bySource[unit.FuelType] = append(bySource[unit.FuelType], unit)
		}
	}

	if !w.cfg.PlantsOnly {
		successful := pipeline.SuccessfulPlantGeometries()

		for _, e := range generators.Elements {
			if lat, lon, ok := w.geo.ProcessElementCoordinates(e); ok && containedByAny(successful, lat, lon) {
				w.tracker.AddRejection(e, units.ReasonWithinExistingPlant, "", "")
				continue
			}

			if unit, ok := pipeline.ParseGenerator(e); ok {
				all = append(all, unit)
				bySource[unit.FuelType] = append(bySource[unit.FuelType], unit)
			}
		}
	}

	for _, unit := range pipeline.FinalizeSalvage() {
		all = append(all, unit)
		bySource[unit.FuelType] = append(bySource[unit.FuelType], unit)
	}

	if w.cfg.UnitsClustering.Enabled {
		all = w.applyClustering(all, bySource, logger)
	}

	w.reportRejectionDelta(country)
	w.tracker.DeleteForUnits(all)

	for _, u := range all {
		u.Country = country
		u.ConfigHash = configHash
		u.ConfigVersion = "1"

		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now().UTC()
		}
	}

	w.persist(country, all, logger)

	capacitySources := make([]string, len(all))
	for i, u := range all {
		capacitySources[i] = string(u.CapacitySource)
	}

	w.met.RecordUnitsEmitted(country, capacitySources)
	w.met.ObserveRunDuration(country, time.Since(start))

	level.Info(logger).Log("msg", "country run complete", "units", len(all), "elapsed", time.Since(start))

	return Result{Country: country, Units: all}, nil
}

// reportRejectionDelta reports to pkg/metrics only the rejection events
// newly recorded for country since the last call, so re-running the same
// country within one process never double-counts a monotonic counter.
func (w *Workflow) reportRejectionDelta(country string) {
	current := w.tracker.CountByReasonForCountry(country)
	previous := w.reportedRejections[country]

	for reason, count := range current {
		delta := count - previous[reason]
		if delta > 0 {
			w.met.RecordRejections(country, string(reason), delta)
		}
	}

	w.reportedRejections[country] = current
}

// applyClustering partitions each fuel-type's non-plant units through the
// ClusteringManager, leaving plant-derived and unconfigured-source units
// untouched.
func (w *Workflow) applyClustering(all []*units.Unit, bySource map[string][]*units.Unit, logger log.Logger) []*units.Unit {
	clusterable := map[string]bool{}

	for source, group := range bySource {
		candidates := generatorUnitsOnly(group)
		if len(candidates) == 0 {
			continue
		}

		ok, clusters := w.clusterM.Cluster(candidates, source)
		if !ok {
			continue
		}

		clusterable[source] = true
		bySource[source] = w.clusterM.CreatePlants(clusters, source)

		level.Debug(logger).Log("msg", "clustered generators", "source", source, "clusters", len(clusters))
	}

	if len(clusterable) == 0 {
		return all
	}

	out := make([]*units.Unit, 0, len(all))

	for _, u := range all {
		if clusterable[u.FuelType] && isGeneratorUnit(u) {
			continue
		}

		out = append(out, u)
	}

	for source := range clusterable {
		out = append(out, bySource[source]...)
	}

	return out
}

func generatorUnitsOnly(group []*units.Unit) []*units.Unit {
	var out []*units.Unit

	for _, u := range group {
		if isGeneratorUnit(u) {
			out = append(out, u)
		}
	}

	return out
}

// isGeneratorUnit reports whether u is a bare (non-salvaged, non-clustered)
// generator, the only kind eligible for clustering: ParseGenerator stamps
// ElementType "generator:<node|way|relation>", while plant and salvage units
// are stamped "plant:..."/"plant", and cluster output is "cluster".
func isGeneratorUnit(u *units.Unit) bool {
	return strings.HasPrefix(u.ElementType, "generator:")
}

func containedByAny(geoms []*geometry.PlantGeometry, lat, lon float64) bool {
	for _, g := range geoms {
		if g.ContainsPoint(lat, lon, 0) {
			return true
		}
	}

	return false
}
