package parser

import (
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/powerosm/powerosm/pkg/capacity"
	"github.com/powerosm/powerosm/pkg/geometry"
	"github.com/powerosm/powerosm/pkg/mapping"
	"github.com/powerosm/powerosm/pkg/osm"
	"github.com/powerosm/powerosm/pkg/units"
)

// rejectedPlant is a plant whose attributes could not be resolved, but whose
// polygon survives for generator salvage.
type rejectedPlant struct {
	key      string
	geometry *geometry.PlantGeometry
}

// groupMember is one generator routed into a GeneratorGroup while waiting
// for salvage finalisation.
type groupMember struct {
	element  *osm.Element
	fields   Fields
	capacity MemberExtraction
}

// GeneratorGroup accumulates the orphaned generators found inside one
// rejected plant's polygon.
type GeneratorGroup struct {
	plantKey string
	geometry *geometry.PlantGeometry
	members  []*groupMember
}

// Pipeline runs the plant/generator parsing pipeline for one country,
// holding the cross-element state plant/generator salvage requires: the set
// of rejected plant polygons available for salvage, and the generator
// groups being accumulated against them. A fresh Pipeline is created per
// country run.
type Pipeline struct {
	cfg     Config
	geo     *geometry.Handler
	cache   *osm.ElementCache
	tracker *units.Tracker
	log     log.Logger

	rejectedPlants   map[string]*rejectedPlant
	groups           map[string]*GeneratorGroup
	successfulPlants []*geometry.PlantGeometry
}

// NewPipeline builds a Pipeline scoped to one country run.
func NewPipeline(cfg Config, geo *geometry.Handler, cache *osm.ElementCache, tracker *units.Tracker, logger log.Logger) *Pipeline {
	return &Pipeline{
		cfg:            cfg,
		geo:            geo,
		cache:          cache,
		tracker:        tracker,
		log:            logger,
		rejectedPlants: make(map[string]*rejectedPlant),
		groups:         make(map[string]*GeneratorGroup),
	}
}

// SuccessfulPlantGeometries returns every PlantGeometry registered by a
// successfully-parsed (or reconstructed) plant so far this run, for the
// Workflow's within-existing-plant containment check.
func (p *Pipeline) SuccessfulPlantGeometries() []*geometry.PlantGeometry {
	return p.successfulPlants
}

func (p *Pipeline) registerSuccessfulPlant(g *geometry.PlantGeometry) {
	p.successfulPlants = append(p.successfulPlants, g)
}

func (p *Pipeline) registerRejectedPlant(e *osm.Element, g *geometry.PlantGeometry) {
	if g == nil {
		return
	}

	key := e.Key()
	p.rejectedPlants[key] = &rejectedPlant{key: key, geometry: g}
	p.groups[key] = &GeneratorGroup{plantKey: key, geometry: g}
}

// findRejectedPlantContaining returns the rejected plant whose polygon
// contains (lat, lon), if any.
func (p *Pipeline) findRejectedPlantContaining(lat, lon float64) (*rejectedPlant, bool) {
	for _, rp := range p.rejectedPlants {
		if rp.geometry.ContainsPoint(lat, lon, 0) {
			return rp, true
		}
	}

	return nil, false
}

// capacityLadderResult is the outcome of running the shared basic -> advanced
// -> estimator ladder.
type capacityLadderResult struct {
	outcome capacity.Outcome
	source  units.CapacitySource
}

// runCapacityLadder extracts capacity from raw (the element's own output
// tag value), falling through basic -> advanced -> per-source estimation.
// It never consults relation members; callers that need member aggregation
// (plants only) do that themselves when this returns !OK.
func (p *Pipeline) runCapacityLadder(raw string, normalizedSource string, kind capacity.ElementKind, geom *geometry.PlantGeometry) capacityLadderResult {
	last := p.cfg.Extractor.Basic(raw)
	if last.OK {
		return capacityLadderResult{outcome: last, source: units.SourceDirectTag}
	}

	tryAdvanced := p.cfg.CapacityAdvancedEnabled &&
		last.Reason != capacity.ReasonPlaceholder &&
		last.Reason != capacity.ReasonDecimalFormat

	if tryAdvanced {
		adv := p.cfg.Extractor.Advanced(raw)
		if adv.OK {
			return capacityLadderResult{outcome: adv, source: units.SourceDirectTag}
		}

		last = adv
	}

	if p.cfg.CapacityEstimationEnabled {
		srcCfg, ok := p.cfg.SourceEstimation[normalizedSource]
		if ok {
			est := p.cfg.Estimator.Estimate(srcCfg, geom, kind)
			if est.OK {
				source := units.SourceEstimatedDefault
				if srcCfg.Method == capacity.MethodAreaBased {
					if kind == capacity.KindPlant {
						source = units.SourceEstimatedAreaPlant
					} else {
						source = units.SourceEstimatedAreaGenerator
					}
				}

				return capacityLadderResult{outcome: est, source: source}
			}

			last = est
		}
	}

	return capacityLadderResult{outcome: last}
}

// outputTagKeysUnion is consulted when summing a plant relation's member
// output tags — members may be tagged as plants or generators.
func (p *Pipeline) outputTagKeysUnion() []string {
	return append(append([]string{}, p.cfg.PlantTagKeys.OutputTagsKeys...), p.cfg.GeneratorTagKeys.OutputTagsKeys...)
}

// sumMemberOutputCapacities implements the relation fallback: sum the
// parseable output-tag capacities of e's resolvable members.
func (p *Pipeline) sumMemberOutputCapacities(e *osm.Element) (sum float64, count int) {
	keys := p.outputTagKeysUnion()

	for _, m := range e.Members {
		var member *osm.Element

		var ok bool

		switch m.Type {
		case osm.TypeNode:
			member, ok = p.cache.Get(osm.TypeNode, m.Ref)
		case osm.TypeWay:
			member, ok = p.cache.Get(osm.TypeWay, m.Ref)
		}

		if !ok {
			continue
		}

		_, raw, found := mapping.ScanTags(member.Tags, keys)
		if !found {
			continue
		}

		out := p.cfg.Extractor.Basic(raw)
		if !out.OK && p.cfg.CapacityAdvancedEnabled && out.Reason != capacity.ReasonPlaceholder && out.Reason != capacity.ReasonDecimalFormat {
			out = p.cfg.Extractor.Advanced(raw)
		}

		if out.OK {
			sum += out.ValueMW
			count++
		}
	}

	return sum, count
}

// markMembersProcessed flags every resolvable member of e as processed, so
// they are never reconsidered as standalone generators.
func (p *Pipeline) markMembersProcessed(e *osm.Element) {
	for _, m := range e.Members {
		switch m.Type {
		case osm.TypeNode:
			if n, ok := p.cache.Get(osm.TypeNode, m.Ref); ok {
				n.Processed = true
			}
		case osm.TypeWay:
			if w, ok := p.cache.Get(osm.TypeWay, m.Ref); ok {
				w.Processed = true
			}
		}
	}
}

func (p *Pipeline) buildUnit(e *osm.Element, unitKind, fuel, tech, name, dateIn string, capMW float64, capSource units.CapacitySource, lat, lon float64, discriminator units.Discriminator, generatorCount int, osmID string) *units.Unit {
	return &units.Unit{
		ProjectID:      units.NewProjectID(e.Type, e.ID, discriminator),
		Country:        e.Country,
		Lat:            lat,
		Lon:            lon,
		ElementType:    unitKind,
		FuelType:       fuel,
		Technology:     tech,
		CapacityMW:     capMW,
		Name:           name,
		GeneratorCount: generatorCount,
		Set:            "PP",
		CapacitySource: capSource,
		DateIn:         dateIn,
		OSMID:          osmID,
		CreatedAt:      time.Now().UTC(),
	}
}

func (p *Pipeline) warnf(msg string, kv ...any) {
	level.Warn(p.log).Log(append([]any{"msg", msg}, kv...)...)
}
