package workflow

import (
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/powerosm/powerosm/pkg/osm"
	"github.com/powerosm/powerosm/pkg/units"
)

func (w *Workflow) cachePath() string {
	return filepath.Join(w.cacheDir, unitsCacheFile)
}

// loadCached loads the processed-units cache, keeps only units whose
// config_hash matches, and adopts them if any survive.
func (w *Workflow) loadCached(country, configHash string, logger log.Logger) ([]*units.Unit, bool) {
	all := osm.LoadJSONMap[[]*units.Unit](w.cachePath(), w.log)

	stored, ok := all[country]
	if !ok {
		return nil, false
	}

	var fresh []*units.Unit

	for _, u := range stored {
		if u.ConfigHash == configHash {
			fresh = append(fresh, u)
		}
	}

	if len(fresh) == 0 {
		level.Debug(logger).Log("msg", "processed-units cache stale or empty, refetching")
		return nil, false
	}

	return fresh, true
}

// persist writes the country's processed units back under its ISO code,
// leaving every other country's entry alone.
func (w *Workflow) persist(country string, all []*units.Unit, logger log.Logger) {
	existing := osm.LoadJSONMap[[]*units.Unit](w.cachePath(), w.log)
	existing[country] = all

	osm.SaveJSONMap(w.cachePath(), existing, logger)
}
