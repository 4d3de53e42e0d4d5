package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
force_refresh: true
missing_technology_allowed: true
source_mapping:
  Solar: [solar]
units_reconstruction:
  enabled: true
  min_generators_for_reconstruction: 3
sources:
  Solar:
    capacity_estimation:
      method: default_value
      unit_capacity: 0.5
    capacity_extraction:
      additional_tags: ["plant:output:electricity:1"]
    units_clustering:
      method: dbscan
      eps: 0.02
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

func TestLoadAppliesDefaultsAndPreservesOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.True(t, cfg.ForceRefresh)
	assert.True(t, cfg.MissingTechnologyAllowed)
	assert.Equal(t, 3, cfg.UnitsReconstruction.MinGeneratorsForReconstruction)
	assert.InDelta(t, 0.7, cfg.UnitsReconstruction.NameSimilarityThreshold, 1e-9)
	assert.NotEmpty(t, cfg.PlantTags.NameTagsKeys)
	assert.Equal(t, "https://overpass-api.de/api/interpreter", cfg.OverpassAPI.URL)
}

func TestSourceMapsExtractPerSourceBlocks(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	est := cfg.SourceEstimationMap()
	require.Contains(t, est, "Solar")
	assert.InDelta(t, 0.5, est["Solar"].DefaultValueMW, 1e-9)

	extras := cfg.SourceOutputExtraTagsMap()
	assert.Equal(t, []string{"plant:output:electricity:1"}, extras["Solar"])

	clusters := cfg.ClusterSources()
	require.Contains(t, clusters, "Solar")
	assert.Equal(t, "dbscan", string(clusters["Solar"].Method))
}

func TestConfigHashStableAcrossEquivalentMapOrdering(t *testing.T) {
	cfg1, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	cfg2, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, cfg1.ConfigHash(), cfg2.ConfigHash())

	cfg2.MissingNameAllowed = true
	assert.NotEqual(t, cfg1.ConfigHash(), cfg2.ConfigHash())
}

func TestConfigHashIgnoresNonProcessingFields(t *testing.T) {
	cfg1, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	cfg2, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	cfg2.OverpassAPI.URL = "https://example.invalid/interpreter"
	assert.Equal(t, cfg1.ConfigHash(), cfg2.ConfigHash())
}
