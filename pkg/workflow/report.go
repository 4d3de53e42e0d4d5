package workflow

import (
	"context"
	"fmt"
)

// CoverageReport is a count-based dry-run view: how many elements Overpass
// reports for a country against how many of them survived parsing.
type CoverageReport struct {
	Country       string
	Fetched       int64
	Parsed        int
	Rejected      int
	CoverageRatio float64
}

// CoverageReport counts the live plant/generator elements Overpass reports
// for country and compares them against parsed (the number of units a prior
// RunCountry call emitted) and the Tracker's current rejection count for
// that country.
func (w *Workflow) CoverageReport(ctx context.Context, country string, parsed int) (CoverageReport, error) {
	fetched, err := w.overpass.CountCountryElements(ctx, country, `["power"="plant"]`)
	if err != nil {
		return CoverageReport{}, fmt.Errorf("counting plants for %s: %w", country, err)
	}

	if !w.cfg.PlantsOnly {
		generators, err := w.overpass.CountCountryElements(ctx, country, `["power"="generator"]`)
		if err != nil {
			return CoverageReport{}, fmt.Errorf("counting generators for %s: %w", country, err)
		}

		fetched += generators
	}

	rejected := 0
	for _, count := range w.tracker.CountByReasonForCountry(country) {
		rejected += count
	}

	report := CoverageReport{Country: country, Fetched: fetched, Parsed: parsed, Rejected: rejected}
	if fetched > 0 {
		report.CoverageRatio = float64(parsed) / float64(fetched)
	}

	return report, nil
}
