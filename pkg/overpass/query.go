package overpass

import (
	"fmt"
	"strconv"
	"strings"
)

// RegionKind discriminates the three region filter shapes region_download
// accepts.
type RegionKind string

const (
	RegionBoundingBox RegionKind = "bbox"
	RegionRadius      RegionKind = "radius"
	RegionPolygon     RegionKind = "polygon"
)

// Region describes one area to download, independent of country boundaries.
type Region struct {
	Kind RegionKind

	// RegionBoundingBox: south, west, north, east.
	South, West, North, East float64

	// RegionRadius: center point plus radius in metres.
	Lat, Lon float64
	RadiusM  float64

	// RegionPolygon: closed or open lat/lon ring, space-separated pairs in
	// Overpass's "poly" filter order (lat lon lat lon ...).
	Polygon [][2]float64
}

func (r Region) filter() string {
	switch r.Kind {
	case RegionBoundingBox:
		return fmt.Sprintf("(%s,%s,%s,%s)", trimFloat(r.South), trimFloat(r.West), trimFloat(r.North), trimFloat(r.East))
	case RegionRadius:
		return fmt.Sprintf("(around:%s,%s,%s)", trimFloat(r.RadiusM), trimFloat(r.Lat), trimFloat(r.Lon))
	case RegionPolygon:
		parts := make([]string, 0, len(r.Polygon)*2)
		for _, p := range r.Polygon {
			parts = append(parts, trimFloat(p[0]), trimFloat(p[1]))
		}

		return fmt.Sprintf("(poly:%q)", strings.Join(parts, " "))
	default:
		return ""
	}
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// countryAreaQuery builds the Overpass QL that matches nwr matching tagFilter
// within country's ISO 3166-1 admin-level-2 area.
func countryAreaQuery(timeout int, country, tagFilter string) string {
	return fmt.Sprintf(`[out:json][timeout:%d];
area["ISO3166-1"="%s"][admin_level=2]->.searchArea;
(
  node%s(area.searchArea);
  way%s(area.searchArea);
  relation%s(area.searchArea);
);
out body;`, timeout, country, tagFilter, tagFilter, tagFilter)
}

// regionQuery builds the Overpass QL that matches nwr matching tagFilter
// inside the given region.
func regionQuery(timeout int, region Region, tagFilter string) string {
	f := region.filter()

	return fmt.Sprintf(`[out:json][timeout:%d];
(
  node%s%s;
  way%s%s;
  relation%s%s;
);
out body;`, timeout, tagFilter, f, tagFilter, f, tagFilter, f)
}

// countQuery is the same filter, but with `out count` instead of `out body`.
func countQuery(timeout int, areaClause, tagFilter string) string {
	return fmt.Sprintf(`[out:json][timeout:%d];
%s
(
  node%s(area.searchArea);
  way%s(area.searchArea);
  relation%s(area.searchArea);
);
out count;`, timeout, areaClause, tagFilter, tagFilter, tagFilter)
}

func countryAreaClause(country string) string {
	return fmt.Sprintf(`area["ISO3166-1"="%s"][admin_level=2]->.searchArea;`, country)
}

// idsQuery fetches a batch of elements of one kind by id, used by
// get_nodes/get_ways/get_relations.
func idsQuery(timeout int, kind string, ids []int64) string {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.FormatInt(id, 10)
	}

	return fmt.Sprintf(`[out:json][timeout:%d];
%s(id:%s);
out body;`, timeout, kind, strings.Join(strs, ","))
}

const (
	plantFilter     = `["power"="plant"]`
	generatorFilter = `["power"="generator"]`
)
