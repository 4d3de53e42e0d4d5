package parser

import (
	"github.com/powerosm/powerosm/pkg/capacity"
	"github.com/powerosm/powerosm/pkg/mapping"
)

// Config gathers every knob §4.7-§4.8 and §6's configuration surface expose
// to the plant/generator pipeline.
type Config struct {
	PlantTagKeys     mapping.TagKeys
	GeneratorTagKeys mapping.TagKeys
	Mapper           *mapping.Mapper
	AllowMissing     AllowMissing

	CapacityAdvancedEnabled   bool
	Extractor                 *capacity.Extractor
	CapacityEstimationEnabled bool
	Estimator                 *capacity.Estimator
	// SourceEstimation is keyed by normalized source label
	// (sources.<src>.capacity_estimation in §6).
	SourceEstimation map[string]capacity.SourceEstimationConfig
	// SourceOutputExtraTags is keyed by normalized source label
	// (sources.<src>.capacity_extraction.additional_tags in §6).
	SourceOutputExtraTags map[string][]string

	ReconstructionEnabled           bool
	MinGeneratorsForReconstruction  int
	NameSimilarityThreshold         float64
}

// DefaultConfig returns a Config with the OSM-conventional tag keys and the
// spec's documented defaults (reconstruction threshold 2, similarity 0.7),
// everything else off until wired from pkg/config.
func DefaultConfig(mapper *mapping.Mapper, extractor *capacity.Extractor, estimator *capacity.Estimator) Config {
	return Config{
		PlantTagKeys:                   mapping.DefaultPlantTagKeys(),
		GeneratorTagKeys:               mapping.DefaultGeneratorTagKeys(),
		Mapper:                         mapper,
		Extractor:                      extractor,
		Estimator:                      estimator,
		SourceEstimation:               map[string]capacity.SourceEstimationConfig{},
		SourceOutputExtraTags:          map[string][]string{},
		MinGeneratorsForReconstruction: 2,
		NameSimilarityThreshold:        0.7,
	}
}
