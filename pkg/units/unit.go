// Package units holds the canonical output model: Unit, the Units
// collection, RejectedElement, and the RejectionTracker.
package units

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/powerosm/powerosm/pkg/osm"
)

// CapacitySource enumerates the recognised capacity-provenance tags.
type CapacitySource string

const (
	SourceDirectTag                       CapacitySource = "direct_tag"
	SourceMemberCapacity                  CapacitySource = "member_capacity"
	SourceAggregatedCapacity              CapacitySource = "aggregated_capacity"
	SourceAggregatedFromGenerators        CapacitySource = "aggregated_from_generators"
	SourceAggregatedFromOrphanGenerators  CapacitySource = "aggregated_from_orphaned_generators"
	SourceEstimatedDefault                CapacitySource = "estimated_default"
	SourceEstimatedAreaPlant              CapacitySource = "estimated_area_plant"
	SourceEstimatedAreaGenerator          CapacitySource = "estimated_area_generator"
	SourceAggregatedCluster               CapacitySource = "aggregated_cluster"
	SourceReconstructedFromGenerators     CapacitySource = "reconstructed_from_generators"
)

// Discriminator is the third component of a deterministic project id,
// alongside (element-type, osm-id).
type Discriminator string

const (
	DiscriminatorPlant     Discriminator = "plant"
	DiscriminatorGenerator Discriminator = "generator"
	DiscriminatorCluster   Discriminator = "cluster"
)

// Unit is the canonical output record.
type Unit struct {
	ProjectID      string         `json:"project_id"`
	Country        string         `json:"country"`
	Lat            float64        `json:"lat"`
	Lon            float64        `json:"lon"`
	ElementType    string         `json:"type"`
	FuelType       string         `json:"fueltype"`
	Technology     string         `json:"technology"`
	CapacityMW     float64        `json:"capacity"`
	Name           string         `json:"name"`
	GeneratorCount int            `json:"generator_count"`
	Set            string         `json:"set"`
	CapacitySource CapacitySource `json:"capacity_source"`
	DateIn         string         `json:"date_in"`
	OSMID          string         `json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	ConfigHash     string         `json:"config_hash"`
	ConfigVersion  string         `json:"config_version"`
}

// NewProjectID derives the deterministic project id from (element-type,
// osm-id, discriminator) via a stable xxh3 hash.
func NewProjectID(elementType osm.ElementType, osmID int64, discriminator Discriminator) string {
	return NewProjectIDFromKey(string(elementType) + "/" + strconv.FormatInt(osmID, 10) + "#" + string(discriminator))
}

// NewProjectIDFromKey hashes an arbitrary stable key into a project id, for
// Units with no backing OSM element (cluster plants, keyed by source and
// cluster label instead of an element type/id pair).
func NewProjectIDFromKey(key string) string {
	sum := xxh3.HashString128(key).Bytes()

	return hex.EncodeToString(sum[:])
}
