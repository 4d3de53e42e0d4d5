package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{
		SourceMapping:     map[string][]string{"Solar": {"solar"}, "Coal": {"coal"}},
		TechnologyMapping: map[string][]string{"PV": {"photovoltaic"}, "CCGT": {"combined_cycle"}},
		SourceTechnologyMapping: map[string][]string{
			"Solar": {"PV"},
			"Coal":  {"CCGT"}, // deliberately implausible, just to exercise the gate
		},
	}
}

func TestTechnologyAllowedForSource(t *testing.T) {
	m := NewMapper(testConfig())

	assert.True(t, m.TechnologyAllowedForSource("Solar", "PV"))
	assert.True(t, m.TechnologyAllowedForSource("solar", "pv"), "lookup is case-insensitive")
	assert.False(t, m.TechnologyAllowedForSource("Solar", "CCGT"))
	assert.False(t, m.TechnologyAllowedForSource("Coal", "PV"))
}

func TestTechnologyAllowedForSourceWithNoRestrictionConfigured(t *testing.T) {
	m := NewMapper(Config{
		SourceMapping:     map[string][]string{"Wind": {"wind"}},
		TechnologyMapping: map[string][]string{"Onshore": {"onshore"}},
	})

	assert.True(t, m.TechnologyAllowedForSource("Wind", "Onshore"), "a source with no source_technology_mapping entry imposes no restriction")
	assert.True(t, m.TechnologyAllowedForSource("", "Onshore"), "an unresolved source also imposes no restriction")
}

func TestMapSourceAndMapTechnology(t *testing.T) {
	m := NewMapper(testConfig())

	source, ok := m.MapSource("Solar")
	assert.True(t, ok)
	assert.Equal(t, "Solar", source)

	_, ok = m.MapSource("biomass")
	assert.False(t, ok)

	tech, ok := m.MapTechnology("photovoltaic")
	assert.True(t, ok)
	assert.Equal(t, "PV", tech)
}
