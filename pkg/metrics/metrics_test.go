package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryExposesRecordedMetrics(t *testing.T) {
	m := NewRegistry()

	m.RecordUnitsEmitted("DE", []string{"direct_tag", "direct_tag", "estimated_default"})
	m.RecordRejections("DE", "coordinates-not-found", 2)
	m.SetCacheEntries("plants", 42)
	m.IncCacheDirtySave("plants")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `powerosm_units_emitted_total{capacity_source="direct_tag",country="DE"} 2`)
	assert.Contains(t, body, `powerosm_rejections_total{country="DE",reason="coordinates-not-found"} 2`)
	assert.Contains(t, body, `powerosm_cache_entries{class="plants"} 42`)
	assert.Contains(t, body, `powerosm_cache_dirty_saves_total{class="plants"} 1`)
}

func TestNilRegistryRecordersAreNoOps(t *testing.T) {
	var m *Registry

	assert.NotPanics(t, func() {
		m.RecordUnitsEmitted("DE", []string{"direct_tag"})
		m.RecordRejections("DE", "other", 1)
		m.SetCacheEntries("plants", 1)
		m.IncCacheDirtySave("plants")
		m.ObserveRunDuration("DE", 0)
	})
}
