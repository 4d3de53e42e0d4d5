package overpass

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/powerosm/powerosm/pkg/osm"
)

// Client owns the ElementCache and CoordinateCache — both are modeled as
// owned-by-client, with the Workflow holding the Client.
type Client struct {
	cfg    Config
	http   *http.Client
	cache  *osm.ElementCache
	coords *osm.CoordinateCache
	log    log.Logger
}

// NewClient builds a Client. The transport timeout is endpoint timeout + 30s.
func NewClient(cfg Config, cache *osm.ElementCache, coords *osm.CoordinateCache, logger log.Logger) *Client {
	cfg = cfg.WithDefaults()

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout + transportSlack},
		cache:  cache,
		coords: coords,
		log:    logger,
	}
}

const transportSlack = 30 * time.Second

// Bundle is a sorted (relation, way, node) batch of same-class elements,
// stamped with the owning country. Bundles are sorted relation, way, node
// so parsers see containers before members.
type Bundle struct {
	Elements []*osm.Element
	Error    string
}

// GetCountryData fetches plants and generators for country in one pass,
// honouring plants_only. It always issues the area queries, then resolves
// transitive node/way dependencies before returning; the ElementCache's
// per-country plant/generator bundles are neither consulted nor updated.
func (c *Client) GetCountryData(ctx context.Context, country string, plantsOnly bool) (plants, generators Bundle) {
	plants = c.GetPlantsData(ctx, country)

	if plantsOnly {
		return plants, Bundle{}
	}

	generators = c.GetGeneratorsData(ctx, country)

	return plants, generators
}

// GetPlantsData fetches power=plant elements for country.
func (c *Client) GetPlantsData(ctx context.Context, country string) Bundle {
	return c.fetchClass(ctx, country, plantFilter)
}

// GetGeneratorsData fetches power=generator elements for country.
func (c *Client) GetGeneratorsData(ctx context.Context, country string) Bundle {
	return c.fetchClass(ctx, country, generatorFilter)
}

func (c *Client) fetchClass(ctx context.Context, country, tagFilter string) Bundle {
	query := countryAreaQuery(int(c.cfg.Timeout.Seconds()), country, tagFilter)

	resp, err := apiRequest[Response](ctx, c.cfg, c.http, c.log, query)
	if err != nil {
		level.Error(c.log).Log("msg", "overpass query failed after all retries", "country", country, "err", err)
		return Bundle{Error: err.Error()}
	}

	for _, e := range resp.Elements {
		e.Country = country
	}

	c.resolveDependencies(ctx, resp.Elements, country)

	sortContainersFirst(resp.Elements)

	return Bundle{Elements: resp.Elements, Error: resp.Error}
}

// CountCountryElements runs a lightweight `out count` query over country.
func (c *Client) CountCountryElements(ctx context.Context, country, tagFilter string) (int64, error) {
	query := countQuery(int(c.cfg.Timeout.Seconds()), countryAreaClause(country), tagFilter)

	resp, err := apiRequest[countResponse](ctx, c.cfg, c.http, c.log, query)
	if err != nil {
		return 0, err
	}

	return resp.Total(), nil
}

// CountRegionElements runs a lightweight `out count` query over a region.
func (c *Client) CountRegionElements(ctx context.Context, region Region, tagFilter string) (int64, error) {
	timeout := int(c.cfg.Timeout.Seconds())
	query := fmt.Sprintf(`[out:json][timeout:%d];
(
  node%s%s;
  way%s%s;
  relation%s%s;
);
out count;`, timeout, tagFilter, region.filter(), tagFilter, region.filter(), tagFilter, region.filter())

	resp, err := apiRequest[countResponse](ctx, c.cfg, c.http, c.log, query)
	if err != nil {
		return 0, err
	}

	return resp.Total(), nil
}

// GetNodes batch-fetches nodes by id, skipping any already cached.
func (c *Client) GetNodes(ctx context.Context, ids []int64) ([]*osm.Element, error) {
	return c.getElements(ctx, osm.TypeNode, "node", ids)
}

// GetWays batch-fetches ways by id, skipping any already cached.
func (c *Client) GetWays(ctx context.Context, ids []int64) ([]*osm.Element, error) {
	return c.getElements(ctx, osm.TypeWay, "way", ids)
}

// GetRelations batch-fetches relations by id, skipping any already cached.
func (c *Client) GetRelations(ctx context.Context, ids []int64) ([]*osm.Element, error) {
	return c.getElements(ctx, osm.TypeRelation, "relation", ids)
}

func (c *Client) getElements(ctx context.Context, t osm.ElementType, kind string, ids []int64) ([]*osm.Element, error) {
	var missing []int64

	out := make([]*osm.Element, 0, len(ids))

	for _, id := range ids {
		if e, ok := c.cache.Get(t, id); ok {
			out = append(out, e)
			continue
		}

		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.fetchByIDs(ctx, kind, missing)
	if err != nil {
		return out, err
	}

	for _, e := range fetched {
		c.cache.Store(e)
		out = append(out, e)
	}

	return out, nil
}

func (c *Client) fetchByIDs(ctx context.Context, kind string, ids []int64) ([]*osm.Element, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := idsQuery(int(c.cfg.Timeout.Seconds()), kind, ids)

	resp, err := apiRequest[Response](ctx, c.cfg, c.http, c.log, query)
	if err != nil {
		return nil, err
	}

	return resp.Elements, nil
}

// sortContainersFirst orders elements relation, way, node so parsers see
// enclosing relations before their members.
func sortContainersFirst(elements []*osm.Element) {
	rank := map[osm.ElementType]int{osm.TypeRelation: 0, osm.TypeWay: 1, osm.TypeNode: 2}

	sort.SliceStable(elements, func(i, j int) bool {
		return rank[elements[i].Type] < rank[elements[j].Type]
	})
}
