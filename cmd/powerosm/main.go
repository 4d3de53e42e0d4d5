// Command powerosm runs the OSM power-infrastructure ingestion pipeline:
// it fetches plants and generators per country from an Overpass
// API endpoint, parses and reconstructs them into canonical Units, and
// writes CSV/GeoJSON output alongside a rejection log.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/common/promlog"
	"github.com/prometheus/common/promlog/flag"
	"github.com/prometheus/common/version"

	"github.com/powerosm/powerosm/pkg/config"
	"github.com/powerosm/powerosm/pkg/geometry"
	"github.com/powerosm/powerosm/pkg/metrics"
	"github.com/powerosm/powerosm/pkg/osm"
	"github.com/powerosm/powerosm/pkg/overpass"
	"github.com/powerosm/powerosm/pkg/workflow"
)

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Ingest OpenStreetMap power-infrastructure data into canonical units.").UsageWriter(os.Stdout)
	app.Version(version.Print("powerosm"))
	app.HelpFlag.Short('h')

	configFile := app.Flag("config.file", "Path to the powerosm YAML configuration file.").Required().ExistingFile()
	cacheDir := app.Flag("cache-dir", "Directory holding the persisted OSM element/unit cache.").Default("./cache").String()
	nominatimURL := app.Flag("geocoder.url", "Base URL of the Nominatim-compatible reverse-geocoding endpoint used by region downloads.").Default("").String()
	nominatimAgent := app.Flag("geocoder.user-agent", "User-Agent sent with reverse-geocoding requests.").Default("powerosm/" + version.Version).String()
	webListenAddress := app.Flag("web.listen-address", "Address to expose Prometheus metrics on (empty disables the metrics server).").Default("").String()
	maxProcs := app.Flag("runtime.gomaxprocs", "The target number of CPUs Go will run on (GOMAXPROCS).").Envar("GOMAXPROCS").Default("1").Int()

	promlogConfig := &promlog.Config{}
	flag.AddFlags(app, promlogConfig)

	runCmd, runCountries, runOutDir, runFormats := newRunCommand(app)
	reportCmd, reportCountries, reportFormat := newReportCommand(app)
	regionCmd, regionArgs := newRegionCommand(app)

	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := promlog.New(promlogConfig)
	runtime.GOMAXPROCS(*maxProcs)

	level.Info(logger).Log("msg", "starting powerosm", "version", version.Info())

	cfg, err := config.Load(*configFile)
	if err != nil {
		level.Error(logger).Log("msg", "failed to load config", "err", err)
		os.Exit(1)
	}

	met := metrics.NewRegistry()

	stopMetrics := maybeServeMetrics(*webListenAddress, met, logger)
	defer stopMetrics()

	wf, cache, err := buildWorkflow(cfg, *cacheDir, *nominatimURL, *nominatimAgent, met, logger)
	if err != nil {
		level.Error(logger).Log("msg", "failed to build workflow", "err", err)
		os.Exit(1)
	}

	cache.LoadAll()

	var cmdErr error

	switch parsedCmd {
	case runCmd.FullCommand():
		cmdErr = runRun(context.Background(), wf, cache, *runCountries, *runOutDir, *runFormats, logger)
	case reportCmd.FullCommand():
		cmdErr = runReport(context.Background(), wf, *reportCountries, *reportFormat)
	case regionCmd.FullCommand():
		cmdErr = runRegion(context.Background(), cfg, cache, *nominatimURL, *nominatimAgent, regionArgs, logger)
	}

	cache.SaveAll(false)

	if cmdErr != nil {
		level.Error(logger).Log("msg", "command failed", "err", cmdErr)
		os.Exit(1)
	}
}

// buildWorkflow wires the collaborators every subcommand needs: cache,
// reverse-geocoder-backed CoordinateCache, OverpassClient, GeometryHandler,
// and the Workflow itself.
func buildWorkflow(cfg *config.Config, cacheDir, nominatimURL, nominatimAgent string, met *metrics.Registry, logger log.Logger) (*workflow.Workflow, *osm.ElementCache, error) {
	cache := osm.NewElementCache(cacheDir, logger)
	cache.SetMetrics(met)

	coords := osm.NewCoordinateCache(newNominatimLookup(nominatimURL, nominatimAgent), 0, 0)
	client := overpass.NewClient(cfg.OverpassAPI, cache, coords, logger)
	geo := geometry.NewHandler(cache, logger)

	wf, err := workflow.New(cfg, client, cache, geo, cacheDir, met, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("building workflow: %w", err)
	}

	return wf, cache, nil
}

// maybeServeMetrics starts the metrics HTTP server in the background if
// addr is non-empty, returning a stop function safe to defer unconditionally.
func maybeServeMetrics(addr string, met *metrics.Registry, logger log.Logger) func() {
	if addr == "" {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := met.ListenAndServe(ctx, addr, logger); err != nil {
			level.Warn(logger).Log("msg", "metrics server stopped", "err", err)
		}
	}()

	level.Info(logger).Log("msg", "serving metrics", "addr", addr)

	return cancel
}
