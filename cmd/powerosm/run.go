package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/powerosm/powerosm/pkg/osm"
	"github.com/powerosm/powerosm/pkg/units"
	"github.com/powerosm/powerosm/pkg/workflow"
)

func newRunCommand(app *kingpin.Application) (*kingpin.CmdClause, *string, *string, *[]string) {
	cmd := app.Command("run", "Fetch, parse, and persist units for one or more countries.")
	countries := cmd.Arg("countries", "Comma-separated ISO alpha-2 codes or country names to process.").Required().String()
	outDir := cmd.Flag("out-dir", "Directory to write Units/rejections output into.").Default("out").String()
	formats := cmd.Flag("format", "Output formats to write (csv, geojson). May be repeated.").Default("csv").Strings()

	return cmd, countries, outDir, formats
}

func runRun(ctx context.Context, wf *workflow.Workflow, cache *osm.ElementCache, countriesFlag, outDir string, formats []string, logger log.Logger) error {
	resolved, err := workflow.ValidateCountries(splitComma(countriesFlag))
	if err != nil {
		return err
	}

	collection := units.NewCollection()

	for _, country := range resolved {
		result, err := wf.RunCountry(ctx, country)
		if err != nil {
			return fmt.Errorf("processing %s: %w", country, err)
		}

		for _, u := range result.Units {
			collection.Add(*u)
		}

		level.Info(logger).Log("msg", "country processed", "country", country, "units", len(result.Units), "cached", result.Cached)

		cache.SaveAll(false)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, format := range formats {
		if err := writeCollection(collection, outDir, strings.ToLower(strings.TrimSpace(format))); err != nil {
			return err
		}
	}

	if err := writeRejections(wf, outDir); err != nil {
		return err
	}

	level.Info(logger).Log("msg", "run complete", "countries", len(resolved), "units", collection.Len())

	return nil
}

func writeCollection(collection *units.Collection, outDir, format string) error {
	switch format {
	case "csv":
		return writeToFile(filepath.Join(outDir, "units.csv"), collection.WriteCSV)
	case "geojson":
		return writeToFile(filepath.Join(outDir, "units.geojson"), collection.WriteGeoJSON)
	default:
		return fmt.Errorf("unknown output format %q (want csv or geojson)", format)
	}
}

func writeRejections(wf *workflow.Workflow, outDir string) error {
	return writeToFile(filepath.Join(outDir, "rejections.geojson"), wf.Tracker().WriteGeoJSON)
}

func writeToFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	return write(f)
}

func splitComma(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
