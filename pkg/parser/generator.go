package parser

import (
	"fmt"

	"github.com/powerosm/powerosm/pkg/capacity"
	"github.com/powerosm/powerosm/pkg/osm"
	"github.com/powerosm/powerosm/pkg/units"
)

// ParseGenerator runs the generator-parsing pipeline over a power=generator
// element. Only a generator whose mandatory fields all resolve is eligible
// for salvage: one routed into a rejected plant's salvage group returns
// (nil, false) with no rejection recorded — it is still alive, just not yet
// a Unit. A field-incomplete generator is rejected outright, never silently
// absorbed into a salvage group.
func (p *Pipeline) ParseGenerator(e *osm.Element) (*units.Unit, bool) {
	if e.Processed {
		return nil, false
	}

	lat, lon, ok := p.geo.ProcessElementCoordinates(e)
	if !ok {
		p.tracker.AddRejection(e, units.ReasonCoordinatesNotFound, "", "")
		return nil, false
	}

	e.SetCoordinates(lat, lon)

	if e.Tags["power"] != "generator" {
		p.tracker.AddRejection(e, units.ReasonInvalidElementType, "expected power=generator", "")
		return nil, false
	}

	fields, miss := ExtractFields(e.Tags, p.cfg.GeneratorTagKeys, p.cfg.Mapper, p.cfg.SourceOutputExtraTags)

	if blocked, reason := Mandatory(miss, p.cfg.AllowMissing); blocked {
		details, keywords := RejectionDetail(reason, fields)
		p.tracker.AddRejection(e, reason, details, keywords)
		return nil, false
	}

	if p.cfg.ReconstructionEnabled {
		if rp, found := p.findRejectedPlantContaining(lat, lon); found {
			memberCap := MemberExtraction{Name: fields.Name, Source: fields.Source, Technology: fields.Technology, StartDate: fields.StartDate}

			geom := p.buildPlantGeometryOrNil(e)
			ladder := p.runCapacityLadder(fields.OutputRaw, fields.Source, capacity.KindGenerator, geom)

			if ladder.outcome.OK {
				memberCap.CapacityMW, memberCap.HasCapacity = ladder.outcome.ValueMW, true
			}

			group := p.groups[rp.key]
			group.members = append(group.members, &groupMember{element: e, fields: fields, capacity: memberCap})

			return nil, false
		}
	}

	geom := p.buildPlantGeometryOrNil(e)
	ladder := p.runCapacityLadder(fields.OutputRaw, fields.Source, capacity.KindGenerator, geom)

	if !ladder.outcome.OK {
		p.tracker.AddRejection(e, unitReasonFromCapacity(ladder.outcome.Reason), ladder.outcome.Details, ladder.outcome.Keywords)
		return nil, false
	}

	unitKind := fmt.Sprintf("generator:%s", e.Type)
	u := p.buildUnit(e, unitKind, fields.Source, fields.Technology, fields.Name, fields.StartDate, ladder.outcome.ValueMW, ladder.source, lat, lon, units.DiscriminatorGenerator, 0, e.Key())

	e.Processed = true

	return u, true
}

// FinalizeSalvage implements salvage finalisation: every GeneratorGroup
// with at least one unprocessed member becomes one plant Unit, aggregated
// the same way plant reconstruction aggregates its members.
func (p *Pipeline) FinalizeSalvage() []*units.Unit {
	var out []*units.Unit

	for _, group := range p.groups {
		var unprocessed []*groupMember

		for _, m := range group.members {
			if !m.element.Processed {
				unprocessed = append(unprocessed, m)
			}
		}

		if len(unprocessed) == 0 {
			continue
		}

		names := make([]string, len(unprocessed))
		sources := make([]string, len(unprocessed))
		techs := make([]string, len(unprocessed))
		dates := make([]string, len(unprocessed))
		extractions := make([]MemberExtraction, len(unprocessed))

		for i, m := range unprocessed {
			names[i], sources[i], techs[i], dates[i] = m.fields.Name, m.fields.Source, m.fields.Technology, m.fields.StartDate
			extractions[i] = m.capacity
		}

		aggName := AggregateNames(names, p.cfg.NameSimilarityThreshold)
		aggSource := AggregateMajority(sources)
		aggTech := AggregateMajority(techs)
		aggDate := AggregateEarliestDate(dates)
		capMW, _ := SumCapacity(extractions)

		lat, lon := group.geometry.Centroid()

		u := &units.Unit{
			ProjectID:      units.NewProjectID(osm.TypeRelation, rejectedPlantNumericID(group.plantKey), units.DiscriminatorPlant),
			Country:        unprocessed[0].element.Country,
			Lat:            lat,
			Lon:            lon,
			ElementType:    "plant",
			FuelType:       aggSource,
			Technology:     aggTech,
			CapacityMW:     capMW,
			Name:           aggName,
			GeneratorCount: len(unprocessed),
			Set:            "PP",
			CapacitySource: units.SourceAggregatedFromOrphanGenerators,
			DateIn:         aggDate,
			OSMID:          group.plantKey,
		}

		for _, m := range unprocessed {
			m.element.Processed = true
		}

		out = append(out, u)
	}

	return out
}

// rejectedPlantNumericID extracts the numeric OSM id from a "relation/123"
// key for project-id derivation; malformed keys yield 0, which is harmless
// since the id is only one of three inputs hashed into the project id.
func rejectedPlantNumericID(key string) int64 {
	var id int64

	for i := len("relation/"); i < len(key); i++ {
		c := key[i]
		if c < '0' || c > '9' {
			break
		}

		id = id*10 + int64(c-'0')
	}

	return id
}
