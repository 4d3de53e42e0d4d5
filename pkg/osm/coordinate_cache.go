package osm

import (
	"context"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jellydator/ttlcache/v3"
)

// ReverseLookup resolves a coordinate to an ISO alpha-2 country code. The
// concrete implementation (an HTTP reverse-geocoder) is an external
// collaborator; the core only depends on this interface.
type ReverseLookup interface {
	Lookup(ctx context.Context, lat, lon float64) (string, error)
}

const (
	defaultPrecision = 2
	defaultCapacity  = 1000
	recencyCapacity  = 750
	recencyEntryTTL  = 24 * time.Hour
)

// CoordinateCache maps (lat, lon) to an ISO alpha-2 country code without
// hammering the reverse-lookup endpoint. It layers two
// structures: a bounded LRU keyed by rounded coordinates (the common case —
// exact repeats after rounding), and a capped, TTL'd recency map used only
// by GetWithTolerance to catch near-neighbour hits under a different
// rounding.
type CoordinateCache struct {
	lookup    ReverseLookup
	precision int

	primary *lru.Cache[string, string]
	recent  *ttlcache.Cache[string, coordAnswer]
}

type coordAnswer struct {
	lat, lon float64
	country  string
}

// NewCoordinateCache builds a cache with the given rounding precision
// (decimal places) and LRU capacity. precision<=0 defaults to 2 (~1km);
// capacity<=0 defaults to 1000 entries.
func NewCoordinateCache(lookup ReverseLookup, precision, capacity int) *CoordinateCache {
	if precision <= 0 {
		precision = defaultPrecision
	}

	if capacity <= 0 {
		capacity = defaultCapacity
	}

	primary, _ := lru.New[string, string](capacity)

	recent := ttlcache.New[string, coordAnswer](
		ttlcache.WithTTL[string, coordAnswer](recencyEntryTTL),
		ttlcache.WithCapacity[string, coordAnswer](recencyCapacity),
	)
	go recent.Start()

	return &CoordinateCache{
		lookup:    lookup,
		precision: precision,
		primary:   primary,
		recent:    recent,
	}
}

// Close stops the background TTL janitor goroutine.
func (c *CoordinateCache) Close() {
	c.recent.Stop()
}

// Get rounds (lat, lon) to the configured precision and consults the LRU; on
// miss it issues a reverse lookup and populates both the LRU and the
// recency map.
func (c *CoordinateCache) Get(ctx context.Context, lat, lon float64) (string, error) {
	key := roundKey(lat, lon, c.precision)

	if country, ok := c.primary.Get(key); ok {
		return country, nil
	}

	country, err := c.lookup.Lookup(ctx, lat, lon)
	if err != nil {
		return "", err
	}

	c.primary.Add(key, country)
	c.recent.Set(key, coordAnswer{lat: lat, lon: lon, country: country}, ttlcache.DefaultTTL)

	return country, nil
}

// GetWithTolerance behaves like Get, but first scans the recency map for any
// prior answer within tol degrees of (lat, lon) before falling back to Get's
// rounded-key lookup and, ultimately, a live reverse lookup.
func (c *CoordinateCache) GetWithTolerance(ctx context.Context, lat, lon, tol float64) (string, error) {
	for _, item := range c.recent.Items() {
		ans := item.Value()
		if math.Abs(ans.lat-lat) <= tol && math.Abs(ans.lon-lon) <= tol {
			return ans.country, nil
		}
	}

	return c.Get(ctx, lat, lon)
}

func roundKey(lat, lon float64, precision int) string {
	scale := math.Pow(10, float64(precision))
	rlat := math.Round(lat*scale) / scale
	rlon := math.Round(lon*scale) / scale

	return fmt.Sprintf("%.*f,%.*f", precision, rlat, precision, rlon)
}
