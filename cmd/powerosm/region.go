package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/powerosm/powerosm/pkg/config"
	"github.com/powerosm/powerosm/pkg/osm"
	"github.com/powerosm/powerosm/pkg/overpass"
)

// regionArgs bundles the region subcommand's CLI flags, since
// RegionDownload needs several mutually-exclusive shapes of input:
// bbox, radius, or polygon.
type regionArgs struct {
	kind         *string
	bbox         *string
	radius       *string
	polygon      *string
	downloadType *string
	updateCaches *bool
}

func newRegionCommand(app *kingpin.Application) (*kingpin.CmdClause, *regionArgs) {
	cmd := app.Command("region", "Download plants/generators for an ad-hoc region, independent of country boundaries.")

	args := &regionArgs{
		kind: cmd.Flag("kind", "Region shape: bbox, radius, or polygon.").Required().Enum("bbox", "radius", "polygon"),
		bbox: cmd.Flag("bbox", "south,west,north,east (required for --kind=bbox).").String(),
		radius: cmd.Flag(
			"radius", "lat,lon,radius_m (required for --kind=radius).",
		).String(),
		polygon: cmd.Flag(
			"polygon", "Space-separated \"lat,lon\" pairs forming the ring (required for --kind=polygon).",
		).String(),
		downloadType: cmd.Flag("download-type", "Which element classes to fetch: plants, generators, or both.").Default("both").Enum("plants", "generators", "both"),
		updateCaches: cmd.Flag("update-caches", "Stamp results with their reverse-geocoded country and store them in the element cache.").Default("true").Bool(),
	}

	return cmd, args
}

func runRegion(ctx context.Context, cfg *config.Config, cache *osm.ElementCache, nominatimURL, nominatimAgent string, args *regionArgs, logger log.Logger) error {
	region, err := parseRegion(*args.kind, *args.bbox, *args.radius, *args.polygon)
	if err != nil {
		return err
	}

	coords := osm.NewCoordinateCache(newNominatimLookup(nominatimURL, nominatimAgent), 0, 0)
	client := overpass.NewClient(cfg.OverpassAPI, cache, coords, logger)

	result := client.RegionDownload(ctx, []overpass.Region{region}, downloadType(*args.downloadType), *args.updateCaches)

	level.Info(logger).Log(
		"msg", "region download complete",
		"elements", len(result.Elements),
		"inserted", sumCounts(result.InsertedByClass),
		"updated", sumCounts(result.UpdatedByClass),
		"errors", len(result.Errors),
	)

	for _, e := range result.Errors {
		level.Warn(logger).Log("msg", "region query error", "err", e)
	}

	return nil
}

func downloadType(s string) overpass.DownloadType {
	switch s {
	case "plants":
		return overpass.DownloadPlants
	case "generators":
		return overpass.DownloadGenerators
	default:
		return overpass.DownloadBoth
	}
}

func sumCounts(m map[string]int) int {
	total := 0
	for _, c := range m {
		total += c
	}

	return total
}

func parseRegion(kind, bbox, radius, polygon string) (overpass.Region, error) {
	switch kind {
	case "bbox":
		parts, err := splitFloats(bbox, 4)
		if err != nil {
			return overpass.Region{}, fmt.Errorf("--bbox: %w", err)
		}

		return overpass.Region{Kind: overpass.RegionBoundingBox, South: parts[0], West: parts[1], North: parts[2], East: parts[3]}, nil

	case "radius":
		parts, err := splitFloats(radius, 3)
		if err != nil {
			return overpass.Region{}, fmt.Errorf("--radius: %w", err)
		}

		return overpass.Region{Kind: overpass.RegionRadius, Lat: parts[0], Lon: parts[1], RadiusM: parts[2]}, nil

	case "polygon":
		pairs := strings.Fields(polygon)
		if len(pairs) < 3 {
			return overpass.Region{}, fmt.Errorf("--polygon: need at least 3 \"lat,lon\" pairs, got %d", len(pairs))
		}

		ring := make([][2]float64, len(pairs))

		for i, pair := range pairs {
			parts, err := splitFloats(pair, 2)
			if err != nil {
				return overpass.Region{}, fmt.Errorf("--polygon point %d: %w", i, err)
			}

			ring[i] = [2]float64{parts[0], parts[1]}
		}

		return overpass.Region{Kind: overpass.RegionPolygon, Polygon: ring}, nil

	default:
		return overpass.Region{}, fmt.Errorf("unknown region kind %q", kind)
	}
}

func splitFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated values, got %d", n, len(parts))
	}

	out := make([]float64, n)

	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number: %w", p, err)
		}

		out[i] = v
	}

	return out, nil
}
