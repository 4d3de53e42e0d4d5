package overpass

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerosm/powerosm/pkg/osm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *osm.ElementCache) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cache := osm.NewElementCache(t.TempDir(), log.NewNopLogger())
	cfg := Config{URL: srv.URL, Timeout: 5 * time.Second, MaxRetries: 2, RetryDelay: time.Millisecond}

	return NewClient(cfg, cache, osm.NewCoordinateCache(noopLookup{}, 0, 0), log.NewNopLogger()), cache
}

type noopLookup struct{}

func (noopLookup) Lookup(ctx context.Context, lat, lon float64) (string, error) { return "DE", nil }

func TestGetPlantsDataSortsContainersFirst(t *testing.T) {
	const body = `{"elements":[
		{"type":"node","id":1,"tags":{"power":"plant"},"lat":1,"lon":1},
		{"type":"relation","id":2,"tags":{"power":"plant"},"members":[]},
		{"type":"way","id":3,"tags":{"power":"plant"},"nodes":[]}
	]}`

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.FormValue("data"), `"ISO3166-1"="DE"`)

		_, _ = w.Write([]byte(body))
	})

	bundle := c.GetPlantsData(context.Background(), "DE")
	require.Len(t, bundle.Elements, 3)
	assert.Equal(t, osm.TypeRelation, bundle.Elements[0].Type)
	assert.Equal(t, osm.TypeWay, bundle.Elements[1].Type)
	assert.Equal(t, osm.TypeNode, bundle.Elements[2].Type)

	for _, e := range bundle.Elements {
		assert.Equal(t, "DE", e.Country)
	}
}

func TestFetchClassRetriesThenSucceeds(t *testing.T) {
	attempts := 0

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		_, _ = w.Write([]byte(`{"elements":[]}`))
	})

	bundle := c.GetGeneratorsData(context.Background(), "DE")
	assert.Empty(t, bundle.Error)
	assert.Equal(t, 2, attempts)
}

func TestFetchClassFinalFailureReturnsErrorNeverPanics(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	bundle := c.GetPlantsData(context.Background(), "DE")
	assert.Empty(t, bundle.Elements)
	assert.NotEmpty(t, bundle.Error)
}

func TestCountCountryElementsDecodesStringOrIntTotal(t *testing.T) {
	for _, body := range []string{
		`{"elements":[{"type":"count","tags":{"total":"42"}}]}`,
		`{"elements":[{"type":"count","tags":{"total":42}}]}`,
	} {
		body := body

		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})

		total, err := c.CountCountryElements(context.Background(), "DE", plantFilter)
		require.NoError(t, err)
		assert.Equal(t, int64(42), total)
	}
}

func TestResolveDependenciesFetchesMissingWayNodes(t *testing.T) {
	queries := 0

	c, cache := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		queries++

		switch {
		case queries == 1:
			_, _ = w.Write([]byte(`{"elements":[{"type":"way","id":10,"tags":{"power":"plant"},"nodes":[100,101,102,103,100]}]}`))
		case queries == 2:
			_, _ = w.Write([]byte(`{"elements":[
				{"type":"node","id":100,"lat":0,"lon":0},
				{"type":"node","id":101,"lat":0,"lon":1},
				{"type":"node","id":102,"lat":1,"lon":1},
				{"type":"node","id":103,"lat":1,"lon":0}
			]}`))
		default:
			t.Fatalf("unexpected extra query %d", queries)
		}
	})

	bundle := c.GetPlantsData(context.Background(), "DE")
	require.Len(t, bundle.Elements, 1)

	for _, id := range []int64{100, 101, 102, 103} {
		_, ok := cache.Get(osm.TypeNode, id)
		assert.True(t, ok, "node %d should have been resolved into cache", id)
	}
}

func TestGetNodesSkipsAlreadyCached(t *testing.T) {
	calls := 0

	c, cache := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"elements":[{"type":"node","id":2,"lat":5,"lon":5}]}`))
	})

	cache.Store(&osm.Element{ID: 1, Type: osm.TypeNode, Lat: 1, Lon: 1})

	out, err := c.GetNodes(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1, calls)
}

func TestRegionDownloadPartitionsByRepresentativeCountry(t *testing.T) {
	c, cache := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fmt.Sprintf(`{"elements":[{"type":"node","id":900,"tags":{"power":"plant"},"lat":50,"lon":10}]}`)))
	})

	res := c.RegionDownload(context.Background(), []Region{{Kind: RegionBoundingBox, South: 40, West: 0, North: 55, East: 15}}, DownloadPlants, true)

	require.Len(t, res.Elements, 1)
	assert.Equal(t, 1, res.InsertedByClass["node"])

	stored, ok := cache.Get(osm.TypeNode, 900)
	require.True(t, ok)
	assert.Equal(t, "DE", stored.Country)
}
