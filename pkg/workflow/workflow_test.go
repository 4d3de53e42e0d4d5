package workflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerosm/powerosm/pkg/config"
	"github.com/powerosm/powerosm/pkg/geometry"
	"github.com/powerosm/powerosm/pkg/mapping"
	"github.com/powerosm/powerosm/pkg/metrics"
	"github.com/powerosm/powerosm/pkg/osm"
	"github.com/powerosm/powerosm/pkg/overpass"
	"github.com/powerosm/powerosm/pkg/units"
)

type noopLookup struct{}

func (noopLookup) Lookup(context.Context, float64, float64) (string, error) { return "DE", nil }

func newTestWorkflow(t *testing.T, plantsBody, generatorsBody string) (*Workflow, string) {
	return newTestWorkflowWithCounts(t, plantsBody, generatorsBody, "")
}

func newTestWorkflowWithCounts(t *testing.T, plantsBody, generatorsBody, countBody string) (*Workflow, string) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		data := r.FormValue("data")

		if countBody != "" && contains(data, "out count") {
			_, _ = w.Write([]byte(countBody))
			return
		}

		body := plantsBody
		if generatorsBody != "" && contains(data, `"power"="generator"`) {
			body = generatorsBody
		}

		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cache := osm.NewElementCache(dir, log.NewNopLogger())
	client := overpass.NewClient(overpass.Config{URL: srv.URL, Timeout: 5 * time.Second, MaxRetries: 1, RetryDelay: time.Millisecond}, cache, osm.NewCoordinateCache(noopLookup{}, 0, 0), log.NewNopLogger())
	geo := geometry.NewHandler(cache, log.NewNopLogger())

	cfg := &config.Config{
		SourceMapping:            map[string][]string{"Solar": {"solar"}, "Wind": {"wind"}},
		PlantTags:                mapping.DefaultPlantTagKeys(),
		GeneratorTags:            mapping.DefaultGeneratorTagKeys(),
		MissingTechnologyAllowed: true,
		MissingStartDateAllowed:  true,
	}

	wf, err := New(cfg, client, cache, geo, dir, nil, log.NewNopLogger())
	require.NoError(t, err)

	return wf, dir
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}

	return false
}

func TestRunCountryEmitsUnitFromFreshFetch(t *testing.T) {
	const plants = `{"elements":[
		{"type":"node","id":10,"tags":{"power":"plant","plant:source":"solar","plant:output:electricity":"5 MW","name":"Solar One"},"lat":52.0,"lon":13.0}
	]}`

	wf, _ := newTestWorkflow(t, plants, "")
	wf.cfg.PlantsOnly = true

	result, err := wf.RunCountry(context.Background(), "DE")
	require.NoError(t, err)
	require.Len(t, result.Units, 1)
	assert.Equal(t, "Solar", result.Units[0].FuelType)
	assert.InDelta(t, 5.0, result.Units[0].CapacityMW, 1e-9)
	assert.NotEmpty(t, result.Units[0].ConfigHash)
	assert.False(t, result.Cached)
}

func TestRunCountryReusesCacheWhenConfigHashMatches(t *testing.T) {
	const plants = `{"elements":[
		{"type":"node","id":10,"tags":{"power":"plant","plant:source":"solar","plant:output:electricity":"5 MW","name":"Solar One"},"lat":52.0,"lon":13.0}
	]}`

	wf, _ := newTestWorkflow(t, plants, "")
	wf.cfg.PlantsOnly = true

	ctx := context.Background()

	first, err := wf.RunCountry(ctx, "DE")
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := wf.RunCountry(ctx, "DE")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Units[0].ProjectID, second.Units[0].ProjectID)
}

func TestRunCountryForceRefreshBypassesCache(t *testing.T) {
	const plants = `{"elements":[
		{"type":"node","id":10,"tags":{"power":"plant","plant:source":"solar","plant:output:electricity":"5 MW","name":"Solar One"},"lat":52.0,"lon":13.0}
	]}`

	wf, _ := newTestWorkflow(t, plants, "")
	wf.cfg.PlantsOnly = true

	ctx := context.Background()

	_, err := wf.RunCountry(ctx, "DE")
	require.NoError(t, err)

	wf.cfg.ForceRefresh = true

	second, err := wf.RunCountry(ctx, "DE")
	require.NoError(t, err)
	assert.False(t, second.Cached)
}

func TestRunCountryRejectsGeneratorWithinExistingPlant(t *testing.T) {
	const plants = `{"elements":[
		{"type":"way","id":1,"tags":{"power":"plant","plant:source":"solar","plant:output:electricity":"5 MW","name":"Plant"},"nodes":[100,101,102,103,100]},
		{"type":"node","id":100,"lat":52.000,"lon":13.000},
		{"type":"node","id":101,"lat":52.000,"lon":13.001},
		{"type":"node","id":102,"lat":52.001,"lon":13.001},
		{"type":"node","id":103,"lat":52.001,"lon":13.000}
	]}`

	const generators = `{"elements":[
		{"type":"node","id":200,"tags":{"power":"generator","generator:source":"solar","generator:output:electricity":"1 MW"},"lat":52.0005,"lon":13.0005}
	]}`

	wf, _ := newTestWorkflow(t, plants, generators)

	result, err := wf.RunCountry(context.Background(), "DE")
	require.NoError(t, err)
	require.Len(t, result.Units, 1, "the generator inside the plant polygon must not emit its own unit")

	rejections := wf.Tracker().All()
	require.NotEmpty(t, rejections)
	assert.Equal(t, units.ReasonWithinExistingPlant, rejections[0].Reason)
}

func TestRunCountryReportsMetricsWithoutDoubleCountingOnRerun(t *testing.T) {
	const plants = `{"elements":[
		{"type":"node","id":10,"tags":{"power":"plant","plant:source":"solar","plant:output:electricity":"5 MW","name":"Solar One"},"lat":52.0,"lon":13.0},
		{"type":"node","id":11,"tags":{"power":"plant","name":"No Source Plant"},"lat":52.0,"lon":13.0}
	]}`

	wf, _ := newTestWorkflow(t, plants, "")
	wf.cfg.PlantsOnly = true
	wf.cfg.ForceRefresh = true

	met := metrics.NewRegistry()
	wf.met = met

	ctx := context.Background()

	_, err := wf.RunCountry(ctx, "DE")
	require.NoError(t, err)

	firstCount := testutil.ToFloat64(met.Rejections.WithLabelValues("DE", "missing-source-tag"))
	assert.Equal(t, 1.0, firstCount)

	_, err = wf.RunCountry(ctx, "DE")
	require.NoError(t, err)

	secondCount := testutil.ToFloat64(met.Rejections.WithLabelValues("DE", "missing-source-tag"))
	assert.Equal(t, 1.0, secondCount, "rerunning the same country must not double-count a monotonic counter")

	emitted := testutil.ToFloat64(met.UnitsEmitted.WithLabelValues("DE", "direct_tag"))
	assert.Equal(t, 2.0, emitted, "two runs of one unit each")
}

func TestCoverageReportComputesRatioFromLiveCounts(t *testing.T) {
	const plants = `{"elements":[
		{"type":"node","id":10,"tags":{"power":"plant","plant:source":"solar","plant:output:electricity":"5 MW","name":"Solar One"},"lat":52.0,"lon":13.0}
	]}`
	const counts = `{"elements":[{"type":"count","tags":{"total":"4"}}]}`

	wf, _ := newTestWorkflowWithCounts(t, plants, "", counts)
	wf.cfg.PlantsOnly = true

	ctx := context.Background()

	result, err := wf.RunCountry(ctx, "DE")
	require.NoError(t, err)
	require.Len(t, result.Units, 1)

	report, err := wf.CoverageReport(ctx, "DE", len(result.Units))
	require.NoError(t, err)
	assert.EqualValues(t, 4, report.Fetched)
	assert.Equal(t, 1, report.Parsed)
	assert.InDelta(t, 0.25, report.CoverageRatio, 1e-9)
}
