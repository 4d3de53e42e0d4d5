// Package mapping holds the configurable tag-key lists and source/
// technology synonym tables that PlantParser and GeneratorParser share
// (plant_tags/generator_tags/source_mapping/technology_mapping/
// source_technology_mapping).
package mapping

import "strings"

// TagKeys names, per unit type (plant or generator), the ordered list of OSM
// tag keys the parser scans for each logical field. The first present,
// non-empty tag wins.
type TagKeys struct {
	NameTagsKeys       []string `yaml:"name_tags_keys"`
	SourceTagsKeys     []string `yaml:"source_tags_keys"`
	TechnologyTagsKeys []string `yaml:"technology_tags_keys"`
	OutputTagsKeys     []string `yaml:"output_tags_keys"`
	StartDateTagsKeys  []string `yaml:"start_date_tags_keys"`
}

// DefaultPlantTagKeys matches OSM's conventional power=plant tagging.
func DefaultPlantTagKeys() TagKeys {
	return TagKeys{
		NameTagsKeys:       []string{"name"},
		SourceTagsKeys:     []string{"plant:source", "plant:source:1"},
		TechnologyTagsKeys: []string{"plant:method", "plant:type"},
		OutputTagsKeys:     []string{"plant:output:electricity"},
		StartDateTagsKeys:  []string{"start_date", "construction_date"},
	}
}

// DefaultGeneratorTagKeys matches OSM's conventional power=generator tagging.
func DefaultGeneratorTagKeys() TagKeys {
	return TagKeys{
		NameTagsKeys:       []string{"name", "generator:name"},
		SourceTagsKeys:     []string{"generator:source"},
		TechnologyTagsKeys: []string{"generator:method", "generator:type"},
		OutputTagsKeys:     []string{"generator:output:electricity"},
		StartDateTagsKeys:  []string{"start_date", "generator:start_date"},
	}
}

// Tags is the minimal surface ScanTags needs; satisfied by osm.Tags.
type Tags interface {
	Get(key string) (string, bool)
}

// ScanTags consults keys in order and returns the first present, non-empty
// value: a shared tag-scan that consults a per-unit-type list of allowed
// keys from config.
func ScanTags(tags Tags, keys []string) (key, value string, found bool) {
	for _, k := range keys {
		if v, ok := tags.Get(k); ok && strings.TrimSpace(v) != "" {
			return k, v, true
		}
	}

	return "", "", false
}

// Config is the normalized-value -> synonym-list mapping surface
// (source_mapping / technology_mapping / source_technology_mapping).
type Config struct {
	SourceMapping           map[string][]string `yaml:"source_mapping"`
	TechnologyMapping       map[string][]string `yaml:"technology_mapping"`
	SourceTechnologyMapping map[string][]string `yaml:"source_technology_mapping"`
}

// Mapper resolves raw OSM tag values to normalized source/technology
// labels via a reverse index built from Config's synonym lists.
type Mapper struct {
	sourceBySynonym     map[string]string
	technologyBySynonym map[string]string
	allowedTechBySource map[string]map[string]bool
}

// NewMapper builds the reverse indices once so lookups are O(1).
func NewMapper(cfg Config) *Mapper {
	m := &Mapper{
		sourceBySynonym:     buildReverseIndex(cfg.SourceMapping),
		technologyBySynonym: buildReverseIndex(cfg.TechnologyMapping),
		allowedTechBySource: make(map[string]map[string]bool, len(cfg.SourceTechnologyMapping)),
	}

	for source, techs := range cfg.SourceTechnologyMapping {
		set := make(map[string]bool, len(techs))
		for _, t := range techs {
			set[strings.ToLower(t)] = true
		}

		m.allowedTechBySource[strings.ToLower(source)] = set
	}

	return m
}

func buildReverseIndex(mapping map[string][]string) map[string]string {
	idx := make(map[string]string)

	for normalized, synonyms := range mapping {
		idx[strings.ToLower(normalized)] = normalized

		for _, s := range synonyms {
			idx[strings.ToLower(s)] = normalized
		}
	}

	return idx
}

// MapSource resolves a raw tag value to its normalized source label.
// Unmapped values are reported as missing-source-type.
func (m *Mapper) MapSource(raw string) (string, bool) {
	v, ok := m.sourceBySynonym[strings.ToLower(strings.TrimSpace(raw))]
	return v, ok
}

// MapTechnology resolves a raw tag value to its normalized technology label.
func (m *Mapper) MapTechnology(raw string) (string, bool) {
	v, ok := m.technologyBySynonym[strings.ToLower(strings.TrimSpace(raw))]
	return v, ok
}

// TechnologyAllowedForSource reports whether tech is a plausible technology
// for the given normalized source, when source_technology_mapping declares
// any restriction for that source at all. Sources with no entry in the
// mapping impose no restriction.
func (m *Mapper) TechnologyAllowedForSource(source, tech string) bool {
	set, ok := m.allowedTechBySource[strings.ToLower(source)]
	if !ok {
		return true
	}

	return set[strings.ToLower(tech)]
}
