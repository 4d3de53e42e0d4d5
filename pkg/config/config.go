// Package config is the top-level configuration surface, and the glue that
// materializes it into each component's own config type (mapping.Config,
// parser.Config, overpass.Config, per-source cluster.SourceConfig).
package config

import (
	"fmt"

	"github.com/powerosm/powerosm/internal/common"
	"github.com/powerosm/powerosm/pkg/capacity"
	"github.com/powerosm/powerosm/pkg/cluster"
	"github.com/powerosm/powerosm/pkg/mapping"
	"github.com/powerosm/powerosm/pkg/overpass"
	"github.com/powerosm/powerosm/pkg/parser"
)

// CapacityExtractionConfig is the top-level capacity_extraction block.
type CapacityExtractionConfig struct {
	Enabled       bool     `yaml:"enabled"`
	RegexPatterns []string `yaml:"regex_patterns"`
}

// CapacityEstimationConfig is the top-level capacity_estimation block.
type CapacityEstimationConfig struct {
	Enabled bool `yaml:"enabled"`
}

// UnitsReconstructionConfig is the units_reconstruction block.
type UnitsReconstructionConfig struct {
	Enabled                        bool    `yaml:"enabled"`
	MinGeneratorsForReconstruction int     `yaml:"min_generators_for_reconstruction"`
	NameSimilarityThreshold        float64 `yaml:"name_similarity_threshold"`
}

// UnitsClusteringConfig is the top-level units_clustering block.
type UnitsClusteringConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SourceCapacityExtractionConfig is sources.<src>.capacity_extraction.
type SourceCapacityExtractionConfig struct {
	AdditionalTags []string `yaml:"additional_tags"`
}

// SourceConfig is one sources.<src> block.
type SourceConfig struct {
	CapacityEstimation capacity.SourceEstimationConfig `yaml:"capacity_estimation"`
	CapacityExtraction SourceCapacityExtractionConfig  `yaml:"capacity_extraction"`
	UnitsClustering    cluster.SourceConfig             `yaml:"units_clustering"`
}

// Config is the full recognised top-level configuration surface.
type Config struct {
	OverpassAPI overpass.Config `yaml:"overpass_api"`

	ForceRefresh bool `yaml:"force_refresh"`
	PlantsOnly   bool `yaml:"plants_only"`

	MissingNameAllowed       bool `yaml:"missing_name_allowed"`
	MissingTechnologyAllowed bool `yaml:"missing_technology_allowed"`
	MissingStartDateAllowed  bool `yaml:"missing_start_date_allowed"`

	SourceMapping           map[string][]string `yaml:"source_mapping"`
	TechnologyMapping       map[string][]string `yaml:"technology_mapping"`
	SourceTechnologyMapping map[string][]string `yaml:"source_technology_mapping"`

	PlantTags     mapping.TagKeys `yaml:"plant_tags"`
	GeneratorTags mapping.TagKeys `yaml:"generator_tags"`

	CapacityExtraction  CapacityExtractionConfig  `yaml:"capacity_extraction"`
	CapacityEstimation  CapacityEstimationConfig  `yaml:"capacity_estimation"`
	UnitsReconstruction UnitsReconstructionConfig `yaml:"units_reconstruction"`
	UnitsClustering     UnitsClusteringConfig     `yaml:"units_clustering"`

	Sources map[string]SourceConfig `yaml:"sources"`
}

// Load reads and unmarshals the YAML config at path, then applies every
// documented default for fields left unset.
func Load(path string) (*Config, error) {
	cfg, err := common.MakeConfig[Config](path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.OverpassAPI = c.OverpassAPI.WithDefaults()

	if c.PlantTags.NameTagsKeys == nil && c.PlantTags.SourceTagsKeys == nil {
		c.PlantTags = mapping.DefaultPlantTagKeys()
	}

	if c.GeneratorTags.NameTagsKeys == nil && c.GeneratorTags.SourceTagsKeys == nil {
		c.GeneratorTags = mapping.DefaultGeneratorTagKeys()
	}

	if c.UnitsReconstruction.MinGeneratorsForReconstruction <= 0 {
		c.UnitsReconstruction.MinGeneratorsForReconstruction = 2
	}

	if c.UnitsReconstruction.NameSimilarityThreshold <= 0 {
		c.UnitsReconstruction.NameSimilarityThreshold = 0.7
	}

	if c.Sources == nil {
		c.Sources = map[string]SourceConfig{}
	}
}

// MappingConfig materializes pkg/mapping's Config from the top-level
// synonym tables.
func (c *Config) MappingConfig() mapping.Config {
	return mapping.Config{
		SourceMapping:           c.SourceMapping,
		TechnologyMapping:       c.TechnologyMapping,
		SourceTechnologyMapping: c.SourceTechnologyMapping,
	}
}

// SourceEstimationMap extracts the per-source capacity_estimation blocks,
// keyed by normalized source label.
func (c *Config) SourceEstimationMap() map[string]capacity.SourceEstimationConfig {
	out := make(map[string]capacity.SourceEstimationConfig, len(c.Sources))
	for src, sc := range c.Sources {
		out[src] = sc.CapacityEstimation
	}

	return out
}

// SourceOutputExtraTagsMap extracts the per-source
// capacity_extraction.additional_tags blocks.
func (c *Config) SourceOutputExtraTagsMap() map[string][]string {
	out := make(map[string][]string, len(c.Sources))
	for src, sc := range c.Sources {
		if len(sc.CapacityExtraction.AdditionalTags) > 0 {
			out[src] = sc.CapacityExtraction.AdditionalTags
		}
	}

	return out
}

// ClusterSources extracts the per-source units_clustering blocks.
func (c *Config) ClusterSources() map[string]cluster.SourceConfig {
	out := make(map[string]cluster.SourceConfig, len(c.Sources))
	for src, sc := range c.Sources {
		out[src] = sc.UnitsClustering
	}

	return out
}

// ParserConfig materializes pkg/parser's Config from the top-level surface,
// given the already-constructed Mapper/Extractor/Estimator collaborators.
func (c *Config) ParserConfig(mapper *mapping.Mapper, extractor *capacity.Extractor, estimator *capacity.Estimator) parser.Config {
	return parser.Config{
		PlantTagKeys:     c.PlantTags,
		GeneratorTagKeys: c.GeneratorTags,
		Mapper:           mapper,
		AllowMissing: parser.AllowMissing{
			Name:       c.MissingNameAllowed,
			Technology: c.MissingTechnologyAllowed,
			StartDate:  c.MissingStartDateAllowed,
		},
		CapacityAdvancedEnabled:        c.CapacityExtraction.Enabled,
		Extractor:                      extractor,
		CapacityEstimationEnabled:      c.CapacityEstimation.Enabled,
		Estimator:                      estimator,
		SourceEstimation:               c.SourceEstimationMap(),
		SourceOutputExtraTags:          c.SourceOutputExtraTagsMap(),
		ReconstructionEnabled:          c.UnitsReconstruction.Enabled,
		MinGeneratorsForReconstruction: c.UnitsReconstruction.MinGeneratorsForReconstruction,
		NameSimilarityThreshold:        c.UnitsReconstruction.NameSimilarityThreshold,
	}
}

// ProcessingParameters is the subset of Config hashed into the cache's
// config_hash: capacity extraction,
// estimation, clustering, source/tech mappings, reconstruction, and
// allow-missing flags. Anything outside this subset (e.g. overpass_api.url)
// may change without invalidating the per-country units cache.
type ProcessingParameters struct {
	MissingNameAllowed       bool
	MissingTechnologyAllowed bool
	MissingStartDateAllowed  bool
	SourceMapping            map[string][]string
	TechnologyMapping        map[string][]string
	SourceTechnologyMapping  map[string][]string
	PlantTags                mapping.TagKeys
	GeneratorTags            mapping.TagKeys
	CapacityExtraction       CapacityExtractionConfig
	CapacityEstimation       CapacityEstimationConfig
	UnitsReconstruction      UnitsReconstructionConfig
	UnitsClustering          UnitsClusteringConfig
	Sources                  map[string]SourceConfig
}

// ProcessingParameters extracts the subset of c the config_hash covers.
func (c *Config) ProcessingParameters() ProcessingParameters {
	return ProcessingParameters{
		MissingNameAllowed:       c.MissingNameAllowed,
		MissingTechnologyAllowed: c.MissingTechnologyAllowed,
		MissingStartDateAllowed:  c.MissingStartDateAllowed,
		SourceMapping:            c.SourceMapping,
		TechnologyMapping:        c.TechnologyMapping,
		SourceTechnologyMapping:  c.SourceTechnologyMapping,
		PlantTags:                c.PlantTags,
		GeneratorTags:            c.GeneratorTags,
		CapacityExtraction:       c.CapacityExtraction,
		CapacityEstimation:       c.CapacityEstimation,
		UnitsReconstruction:      c.UnitsReconstruction,
		UnitsClustering:          c.UnitsClustering,
		Sources:                  c.Sources,
	}
}

// ConfigHash computes the stable config_hash over ProcessingParameters.
func (c *Config) ConfigHash() string {
	return common.StableHash(c.ProcessingParameters())
}
