package osm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLookup struct {
	calls   int
	country string
}

func (c *countingLookup) Lookup(_ context.Context, _, _ float64) (string, error) {
	c.calls++
	return c.country, nil
}

func TestCoordinateCacheRoundingCollapsesDuplicates(t *testing.T) {
	lookup := &countingLookup{country: "DE"}
	cache := NewCoordinateCache(lookup, 2, 10)
	t.Cleanup(cache.Close)

	ctx := context.Background()

	c1, err := cache.Get(ctx, 52.5001, 13.4001)
	require.NoError(t, err)

	c2, err := cache.Get(ctx, 52.5002, 13.4002) // rounds to the same key at precision 2
	require.NoError(t, err)

	assert.Equal(t, "DE", c1)
	assert.Equal(t, "DE", c2)
	assert.Equal(t, 1, lookup.calls, "second lookup should have hit the LRU, not the reverse-lookup endpoint")
}

func TestCoordinateCacheToleranceScanFindsNearNeighbour(t *testing.T) {
	lookup := &countingLookup{country: "FR"}
	cache := NewCoordinateCache(lookup, 2, 10)
	t.Cleanup(cache.Close)

	ctx := context.Background()

	_, err := cache.Get(ctx, 48.85, 2.35)
	require.NoError(t, err)

	country, err := cache.GetWithTolerance(ctx, 48.851, 2.351, 0.01)
	require.NoError(t, err)
	assert.Equal(t, "FR", country)
	assert.Equal(t, 1, lookup.calls, "tolerance scan should have found the near neighbour without a new lookup")
}
