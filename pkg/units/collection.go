package units

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Collection is an append-only container of Units that never holds two
// Units with the same ProjectID.
type Collection struct {
	byID  map[string]*Unit
	order []string
}

// NewCollection returns an empty Units collection.
func NewCollection() *Collection {
	return &Collection{byID: make(map[string]*Unit)}
}

// Add inserts or replaces a unit, keyed by ProjectID.
func (c *Collection) Add(u Unit) {
	if _, exists := c.byID[u.ProjectID]; !exists {
		c.order = append(c.order, u.ProjectID)
	}

	cp := u
	c.byID[u.ProjectID] = &cp
}

// All returns every unit in insertion order.
func (c *Collection) All() []*Unit {
	out := make([]*Unit, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}

	return out
}

// Len reports the number of distinct units held.
func (c *Collection) Len() int { return len(c.order) }

// FilterByCountry returns units whose Country equals country.
func (c *Collection) FilterByCountry(country string) []*Unit {
	return c.filter(func(u *Unit) bool { return u.Country == country })
}

// FilterByFuel returns units whose FuelType equals fuel.
func (c *Collection) FilterByFuel(fuel string) []*Unit {
	return c.filter(func(u *Unit) bool { return u.FuelType == fuel })
}

// FilterByTechnology returns units whose Technology equals tech.
func (c *Collection) FilterByTechnology(tech string) []*Unit {
	return c.filter(func(u *Unit) bool { return u.Technology == tech })
}

func (c *Collection) filter(pred func(*Unit) bool) []*Unit {
	var out []*Unit

	for _, id := range c.order {
		u := c.byID[id]
		if pred(u) {
			out = append(out, u)
		}
	}

	return out
}

// SummaryStats is an aggregate view used for data-quality and coverage
// reports.
type SummaryStats struct {
	TotalUnits       int
	TotalCapacityMW  float64
	ByCountry        map[string]int
	ByFuelType       map[string]int
	ByCapacitySource map[CapacitySource]int
}

// Summary computes aggregate statistics over the collection.
func (c *Collection) Summary() SummaryStats {
	s := SummaryStats{
		ByCountry:        make(map[string]int),
		ByFuelType:       make(map[string]int),
		ByCapacitySource: make(map[CapacitySource]int),
	}

	for _, id := range c.order {
		u := c.byID[id]
		s.TotalUnits++
		s.TotalCapacityMW += u.CapacityMW
		s.ByCountry[u.Country]++
		s.ByFuelType[u.FuelType]++
		s.ByCapacitySource[u.CapacitySource]++
	}

	return s
}

var csvColumns = []string{
	"projectID", "Country", "lat", "lon", "type", "Fueltype", "Technology",
	"Capacity", "Name", "generator_count", "Set", "capacity_source", "DateIn", "id",
}

// WriteCSV renders the collection in the fixed csvColumns order.
func (c *Collection) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvColumns); err != nil {
		return err
	}

	for _, id := range c.order {
		u := c.byID[id]

		row := []string{
			u.ProjectID, u.Country,
			strconv.FormatFloat(u.Lat, 'f', -1, 64),
			strconv.FormatFloat(u.Lon, 'f', -1, 64),
			u.ElementType, u.FuelType, u.Technology,
			strconv.FormatFloat(u.CapacityMW, 'f', -1, 64),
			u.Name, strconv.Itoa(u.GeneratorCount), u.Set,
			string(u.CapacitySource), u.DateIn, u.OSMID,
		}

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	return cw.Error()
}

// geoJSONFeatureCollection and geoJSONFeature mirror the standard GeoJSON
// FeatureCollection shape.
type geoJSONFeatureCollection struct {
	Type     string          `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

type geoJSONFeature struct {
	Type       string         `json:"type"`
	Geometry   geoJSONPoint   `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoJSONPoint struct {
	Type        string    `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// WriteGeoJSON renders the collection as a GeoJSON FeatureCollection, with
// an osm-element URL in each feature's properties.
func (c *Collection) WriteGeoJSON(w io.Writer) error {
	fc := geoJSONFeatureCollection{Type: "FeatureCollection"}

	for _, id := range c.order {
		u := c.byID[id]
		fc.Features = append(fc.Features, geoJSONFeature{
			Type:     "Feature",
			Geometry: geoJSONPoint{Type: "Point", Coordinates: [2]float64{u.Lon, u.Lat}},
			Properties: map[string]any{
				"url":             osmURL(u.OSMID),
				"fueltype":        u.FuelType,
				"technology":      u.Technology,
				"capacity_mw":     u.CapacityMW,
				"capacity_source": u.CapacitySource,
				"name":            u.Name,
				"country":         u.Country,
			},
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(fc)
}

func osmURL(osmID string) string {
	return fmt.Sprintf("https://www.openstreetmap.org/%s", osmID)
}

// SortedCountries returns the distinct countries present, sorted.
func (c *Collection) SortedCountries() []string {
	seen := make(map[string]bool)

	for _, id := range c.order {
		seen[c.byID[id].Country] = true
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}
