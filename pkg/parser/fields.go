// Package parser turns power=plant and power=generator OSM elements into
// units.Unit records, or records why it could not.
package parser

import (
	"fmt"

	"github.com/powerosm/powerosm/pkg/mapping"
	"github.com/powerosm/powerosm/pkg/osm"
	"github.com/powerosm/powerosm/pkg/units"
)

// Fields is the result of the shared tag-scan: name, source/technology
// mapped through their synonym tables, the output tag key
// actually found (capacity extraction reads its value separately), and the
// raw start-date string.
type Fields struct {
	Name            string
	Source          string // normalized, "" if unmapped/absent
	RawSource       string // the raw tag value, for the missing-source-type rejection detail
	Technology      string
	RawTechnology   string
	OutputKey       string
	OutputRaw       string
	StartDate       string
}

// Missing records which mandatory fields could not be resolved. The
// Unmappable flags distinguish "tag absent" from "tag present but its value
// doesn't map to anything known" for Source/Technology, since those two
// cases are reported as distinct rejection reasons.
type Missing struct {
	Name, Source, Technology, Output, StartDate bool
	SourceUnmappable, TechnologyUnmappable      bool
}

// Any reports whether at least one field is missing.
func (m Missing) Any() bool {
	return m.Name || m.Source || m.Technology || m.Output || m.StartDate
}

// ExtractFields runs the shared tag-scan for either a plant or a generator,
// depending on which TagKeys is passed. sourceOutputExtras extends the
// output-tag key list per normalized source
// (sources.<src>.capacity_extraction.additional_tags), consulted only after
// the source itself has been resolved.
func ExtractFields(tags osm.Tags, keys mapping.TagKeys, mapper *mapping.Mapper, sourceOutputExtras map[string][]string) (Fields, Missing) {
	var f Fields

	var miss Missing

	if _, v, ok := mapping.ScanTags(tags, keys.NameTagsKeys); ok {
		f.Name = v
	} else {
		miss.Name = true
	}

	if _, v, ok := mapping.ScanTags(tags, keys.SourceTagsKeys); ok {
		f.RawSource = v

		if norm, ok := mapper.MapSource(v); ok {
			f.Source = norm
		} else {
			miss.Source = true
			miss.SourceUnmappable = true
		}
	} else {
		miss.Source = true
	}

	if _, v, ok := mapping.ScanTags(tags, keys.TechnologyTagsKeys); ok {
		f.RawTechnology = v

		if norm, ok := mapper.MapTechnology(v); ok && mapper.TechnologyAllowedForSource(f.Source, norm) {
			f.Technology = norm
		} else {
			miss.Technology = true
			miss.TechnologyUnmappable = true
		}
	} else {
		miss.Technology = true
	}

	outputKeys := keys.OutputTagsKeys
	if extra := sourceOutputExtras[f.Source]; len(extra) > 0 {
		outputKeys = append(append([]string{}, outputKeys...), extra...)
	}

	if key, v, ok := mapping.ScanTags(tags, outputKeys); ok {
		f.OutputKey = key
		f.OutputRaw = v
	} else {
		miss.Output = true
	}

	if _, v, ok := mapping.ScanTags(tags, keys.StartDateTagsKeys); ok {
		f.StartDate = v
	} else {
		miss.StartDate = true
	}

	return f, miss
}

// AllowMissing is the missing_{name,technology,start_date}_allowed
// configuration surface; source and output have no allow-missing flag.
type AllowMissing struct {
	Name       bool
	Technology bool
	StartDate  bool
}

// Mandatory reports, after allow-missing flags are applied, whether miss
// still blocks emitting a unit, and which specific rejection reason fits
// best (the first blocking field in Name, Source, Technology, Output,
// StartDate order).
func Mandatory(miss Missing, allow AllowMissing) (blocked bool, reason units.Reason) {
	if miss.Name && !allow.Name {
		return true, units.ReasonMissingName
	}

	if miss.Source {
		if miss.SourceUnmappable {
			return true, units.ReasonMissingSourceType
		}

		return true, units.ReasonMissingSource
	}

	if miss.Technology && !allow.Technology {
		if miss.TechnologyUnmappable {
			return true, units.ReasonMissingTechnologyType
		}

		return true, units.ReasonMissingTechnology
	}

	if miss.Output {
		return true, units.ReasonMissingOutput
	}

	if miss.StartDate && !allow.StartDate {
		return true, units.ReasonMissingStartDate
	}

	return false, ""
}

// RejectionDetail builds the details/keywords pair for the rejection a
// blocked Mandatory check reports, surfacing the offending raw tag value for
// the "tag present but unmappable" reasons so GetUniqueKeyword can rank bad
// source/technology values across a run.
func RejectionDetail(reason units.Reason, f Fields) (details, keywords string) {
	switch reason {
	case units.ReasonMissingSourceType:
		return fmt.Sprintf("source value %q is not recognized", f.RawSource), f.RawSource
	case units.ReasonMissingTechnologyType:
		return fmt.Sprintf("technology value %q is not valid for source %q", f.RawTechnology, f.Source), f.RawTechnology
	default:
		return "", ""
	}
}
