package overpass

import (
	"context"

	"github.com/go-kit/log/level"

	"github.com/powerosm/powerosm/pkg/osm"
)

// DownloadType selects which element classes region_download fetches.
type DownloadType string

const (
	DownloadPlants     DownloadType = "plants"
	DownloadGenerators DownloadType = "generators"
	DownloadBoth       DownloadType = "both"
)

// RegionDownloadResult tallies how a region's elements were merged into the
// ElementCache by element type, with inserts and updates counted separately.
type RegionDownloadResult struct {
	Elements        []*osm.Element
	InsertedByClass map[string]int
	UpdatedByClass  map[string]int
	Errors          []string
}

// RegionDownload fetches elements matching download_type from each region,
// resolves their dependencies, then — unless update_country_caches is
// false — stamps each element with the country of a representative
// coordinate sampled through the CoordinateCache and stores it in the
// ElementCache's raw node/way/relation maps. The per-country
// plant/generator bundles are not updated.
func (c *Client) RegionDownload(ctx context.Context, regions []Region, downloadType DownloadType, updateCountryCaches bool) RegionDownloadResult {
	result := RegionDownloadResult{InsertedByClass: map[string]int{}, UpdatedByClass: map[string]int{}}

	filters := downloadFilters(downloadType)

	var all []*osm.Element

	for _, region := range regions {
		for _, filter := range filters {
			query := regionQuery(int(c.cfg.Timeout.Seconds()), region, filter)

			resp, err := apiRequest[Response](ctx, c.cfg, c.http, c.log, query)
			if err != nil {
				level.Error(c.log).Log("msg", "region query failed after all retries", "err", err)
				result.Errors = append(result.Errors, err.Error())

				continue
			}

			c.resolveDependencies(ctx, resp.Elements, "")
			all = append(all, resp.Elements...)
		}
	}

	sortContainersFirst(all)

	result.Elements = all

	if !updateCountryCaches {
		return result
	}

	for _, e := range all {
		country, ok := c.representativeCountry(ctx, e)
		if !ok {
			continue
		}

		e.Country = country

		cl := string(e.Type)

		if _, existed := c.cache.Get(e.Type, e.ID); existed {
			result.UpdatedByClass[cl]++
		} else {
			result.InsertedByClass[cl]++
		}

		c.cache.Store(e)
	}

	return result
}

func downloadFilters(t DownloadType) []string {
	switch t {
	case DownloadPlants:
		return []string{plantFilter}
	case DownloadGenerators:
		return []string{generatorFilter}
	default:
		return []string{plantFilter, generatorFilter}
	}
}

// representativeCountry samples one coordinate for e (its own, for a node;
// otherwise the first resolvable member coordinate) and resolves it to a
// country via the CoordinateCache.
func (c *Client) representativeCountry(ctx context.Context, e *osm.Element) (string, bool) {
	lat, lon, ok := c.representativePoint(e)
	if !ok {
		return "", false
	}

	country, err := c.coords.GetWithTolerance(ctx, lat, lon, 0.01)
	if err != nil {
		level.Warn(c.log).Log("msg", "failed to resolve representative country", "element", e.Key(), "err", err)
		return "", false
	}

	return country, true
}

func (c *Client) representativePoint(e *osm.Element) (lat, lon float64, ok bool) {
	switch e.Type {
	case osm.TypeNode:
		return e.Lat, e.Lon, e.Lat != 0 || e.Lon != 0
	case osm.TypeWay:
		for _, id := range e.Nodes {
			if n, ok := c.cache.Node(id); ok {
				return n.Lat, n.Lon, true
			}
		}
	case osm.TypeRelation:
		for _, m := range e.Members {
			switch m.Type {
			case osm.TypeNode:
				if n, ok := c.cache.Node(m.Ref); ok {
					return n.Lat, n.Lon, true
				}
			case osm.TypeWay:
				if w, ok := c.cache.Way(m.Ref); ok {
					return c.representativePoint(w)
				}
			}
		}
	}

	return 0, 0, false
}
