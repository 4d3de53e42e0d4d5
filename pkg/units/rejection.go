package units

import (
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/powerosm/powerosm/pkg/osm"
)

// Reason is the closed RejectionReason set.
type Reason string

const (
	ReasonInvalidElementType       Reason = "invalid-element-type"
	ReasonCoordinatesNotFound      Reason = "coordinates-not-found"
	ReasonMissingName              Reason = "missing-name-tag"
	ReasonMissingSource            Reason = "missing-source-tag"
	ReasonMissingTechnology        Reason = "missing-technology-tag"
	ReasonMissingOutput            Reason = "missing-output-tag"
	ReasonMissingStartDate         Reason = "missing-start-date-tag"
	ReasonMissingSourceType        Reason = "missing-source-type"
	ReasonMissingTechnologyType    Reason = "missing-technology-type"
	ReasonCapacityPlaceholder      Reason = "capacity-placeholder"
	ReasonCapacityDecimalFormat    Reason = "capacity-decimal-format"
	ReasonCapacityRegexError       Reason = "capacity-regex-error"
	ReasonCapacityRegexNoMatch     Reason = "capacity-regex-no-match"
	ReasonCapacityNonNumeric       Reason = "capacity-non-numeric"
	ReasonCapacityUnsupportedUnit  Reason = "capacity-unsupported-unit"
	ReasonCapacityZero             Reason = "capacity-zero"
	ReasonInvalidStartDateFormat   Reason = "invalid-start-date-format"
	ReasonElementAlreadyProcessed  Reason = "element-already-processed"
	ReasonWithinExistingPlant      Reason = "within-existing-plant"
	ReasonEstimationMethodUnknown  Reason = "estimation-method-unknown"
	ReasonOther                    Reason = "other"
)

// RejectedElement is one discard event.
type RejectedElement struct {
	ID          string
	Reason      Reason
	Details     string
	Keywords    string
	Timestamp   time.Time
	URL         string
	HasCoords   bool
	Lat, Lon    float64
	Country     string
	UnitType    string
}

type tuple struct {
	reason   Reason
	details  string
	keywords string
}

// Tracker is the append-only, per-element, deduplicated rejection log.
type Tracker struct {
	mu      sync.Mutex
	entries map[string][]RejectedElement
	seen    map[string]map[tuple]bool
}

// NewTracker builds an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string][]RejectedElement),
		seen:    make(map[string]map[tuple]bool),
	}
}

// AddRejection records a rejection against e, deriving country/coordinates
// from e's annotations when not explicitly supplied. Exact
// (reason, details, keywords) repeats for the same element id are deduped.
func (t *Tracker) AddRejection(e *osm.Element, reason Reason, details, keywords string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := e.Key()
	tup := tuple{reason: reason, details: details, keywords: keywords}

	if t.seen[id] == nil {
		t.seen[id] = make(map[tuple]bool)
	}

	if t.seen[id][tup] {
		return
	}

	t.seen[id][tup] = true

	re := RejectedElement{
		ID:        id,
		Reason:    reason,
		Details:   details,
		Keywords:  keywords,
		Timestamp: time.Now().UTC(),
		URL:       "https://www.openstreetmap.org/" + id,
		Country:   e.Country,
	}

	if lat, lon, ok := e.Coordinates(); ok {
		re.HasCoords = true
		re.Lat, re.Lon = lat, lon
	}

	t.entries[id] = append(t.entries[id], re)
}

// AddRejectionForID is AddRejection's variant for when only an id/coords
// pair is known (e.g. a synthesized salvage group id, not a live element).
func (t *Tracker) AddRejectionForID(id, country string, lat, lon float64, hasCoords bool, reason Reason, details, keywords string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tup := tuple{reason: reason, details: details, keywords: keywords}

	if t.seen[id] == nil {
		t.seen[id] = make(map[tuple]bool)
	}

	if t.seen[id][tup] {
		return
	}

	t.seen[id][tup] = true

	t.entries[id] = append(t.entries[id], RejectedElement{
		ID: id, Reason: reason, Details: details, Keywords: keywords,
		Timestamp: time.Now().UTC(), URL: "https://www.openstreetmap.org/" + id,
		Country: country, HasCoords: hasCoords, Lat: lat, Lon: lon,
	})
}

// DeleteForUnits removes every tracked rejection whose id matches any
// emitted unit's OSMID: a rejection is deleted once a unit is successfully
// emitted for that id.
func (t *Tracker) DeleteForUnits(us []*Unit) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, u := range us {
		delete(t.entries, u.OSMID)
		delete(t.seen, u.OSMID)
	}
}

// CountByReason returns the number of rejection events per reason; one
// element can contribute several events, since a reason can recur with
// distinct details.
func (t *Tracker) CountByReason() map[Reason]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[Reason]int)

	for _, list := range t.entries {
		for _, re := range list {
			out[re.Reason]++
		}
	}

	return out
}

// CountByReasonForCountry returns the number of rejection events recorded
// for country, broken down by reason. Used by pkg/metrics to report
// `powerosm_rejections_total{country,reason}` without double-counting
// rejections carried over from another country's run.
func (t *Tracker) CountByReasonForCountry(country string) map[Reason]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[Reason]int)

	for _, list := range t.entries {
		for _, re := range list {
			if re.Country == country {
				out[re.Reason]++
			}
		}
	}

	return out
}

// CountByCountry returns the number of rejection events per country.
func (t *Tracker) CountByCountry() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]int)

	for _, list := range t.entries {
		for _, re := range list {
			out[re.Country]++
		}
	}

	return out
}

// GetUniqueKeyword returns a histogram of the Keywords values recorded for
// reason, sorted by descending count — used by data-quality reports to rank
// the worst offending raw tag values.
func (t *Tracker) GetUniqueKeyword(reason Reason) []KeywordCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[string]int)

	for _, list := range t.entries {
		for _, re := range list {
			if re.Reason == reason && re.Keywords != "" {
				counts[re.Keywords]++
			}
		}
	}

	out := make([]KeywordCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, KeywordCount{Keyword: k, Count: c})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}

		return out[i].Keyword < out[j].Keyword
	})

	return out
}

// KeywordCount is one row of a GetUniqueKeyword histogram.
type KeywordCount struct {
	Keyword string
	Count   int
}

// All returns every tracked rejection, across all elements.
func (t *Tracker) All() []RejectedElement {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []RejectedElement
	for _, list := range t.entries {
		out = append(out, list...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// WriteGeoJSON exports rejections as a GeoJSON FeatureCollection, skipping
// entries without coordinates and entries whose id contains "cluster".
func (t *Tracker) WriteGeoJSON(w io.Writer) error {
	fc := geoJSONFeatureCollection{Type: "FeatureCollection"}

	for _, re := range t.All() {
		if !re.HasCoords || strings.Contains(re.ID, "cluster") {
			continue
		}

		fc.Features = append(fc.Features, geoJSONFeature{
			Type:     "Feature",
			Geometry: geoJSONPoint{Type: "Point", Coordinates: [2]float64{re.Lon, re.Lat}},
			Properties: map[string]any{
				"url":      re.URL,
				"reason":   re.Reason,
				"details":  re.Details,
				"keywords": re.Keywords,
				"country":  re.Country,
			},
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(fc)
}
