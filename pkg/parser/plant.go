package parser

import (
	"fmt"
	"math"

	"github.com/powerosm/powerosm/pkg/capacity"
	"github.com/powerosm/powerosm/pkg/geometry"
	"github.com/powerosm/powerosm/pkg/mapping"
	"github.com/powerosm/powerosm/pkg/osm"
	"github.com/powerosm/powerosm/pkg/units"
)

// ParsePlant runs the plant-parsing pipeline over a power=plant element,
// returning the emitted Unit, or recording a rejection and returning false.
func (p *Pipeline) ParsePlant(e *osm.Element) (*units.Unit, bool) {
	if e.Processed {
		p.tracker.AddRejection(e, units.ReasonElementAlreadyProcessed, "", "")
		return nil, false
	}

	lat, lon, ok := p.geo.ProcessElementCoordinates(e)
	if !ok {
		p.tracker.AddRejection(e, units.ReasonCoordinatesNotFound, "", "")
		return nil, false
	}

	e.SetCoordinates(lat, lon)

	if e.Tags["power"] != "plant" {
		p.tracker.AddRejection(e, units.ReasonInvalidElementType, "expected power=plant", "")
		return nil, false
	}

	fields, miss := ExtractFields(e.Tags, p.cfg.PlantTagKeys, p.cfg.Mapper, p.cfg.SourceOutputExtraTags)

	if miss.Any() && p.cfg.ReconstructionEnabled && e.Type == osm.TypeRelation {
		if unit, accepted, attempted := p.tryReconstruction(e, miss, lat, lon); attempted && accepted {
			return unit, true
		}
	}

	if blocked, reason := Mandatory(miss, p.cfg.AllowMissing); blocked {
		details, keywords := RejectionDetail(reason, fields)
		p.tracker.AddRejection(e, reason, details, keywords)

		if e.Type == osm.TypeRelation {
			p.registerRejectedPlant(e, p.buildPlantGeometryOrNil(e))
		}

		return nil, false
	}

	geom := p.buildPlantGeometryOrNil(e)

	ladder := p.runCapacityLadder(fields.OutputRaw, fields.Source, capacity.KindPlant, geom)

	capMW := ladder.outcome.ValueMW
	capSource := ladder.source
	generatorCount := 1

	if !ladder.outcome.OK && e.Type == osm.TypeRelation {
		sum, count := p.sumMemberOutputCapacities(e)
		switch {
		case count == 1:
			capMW, capSource = sum, units.SourceMemberCapacity
		case count > 1:
			capMW, capSource = sum, units.SourceAggregatedCapacity
			generatorCount = count
		}
	}

	if capSource == "" {
		p.tracker.AddRejection(e, unitReasonFromCapacity(ladder.outcome.Reason), ladder.outcome.Details, ladder.outcome.Keywords)
		return nil, false
	}

	unitKind := fmt.Sprintf("plant:%s", e.Type)
	unit := p.buildUnit(e, unitKind, fields.Source, fields.Technology, fields.Name, fields.StartDate, capMW, capSource, lat, lon, units.DiscriminatorPlant, generatorCount, e.Key())

	e.Processed = true

	if e.Type == osm.TypeRelation {
		p.markMembersProcessed(e)
	}

	if geom != nil {
		p.registerSuccessfulPlant(geom)
	}

	return unit, true
}

func (p *Pipeline) buildPlantGeometryOrNil(e *osm.Element) *geometry.PlantGeometry {
	g, ok := p.geo.GetElementGeometry(e)
	if !ok {
		return nil
	}

	return g
}

// tryReconstruction attempts to rebuild a plant from its member generators
// when its own tags are incomplete. attempted is false when the
// relation has fewer than the configured minimum member generators.
// ParsePlant registers a rejected relation for salvage whether or not
// reconstruction was attempted.
func (p *Pipeline) tryReconstruction(plant *osm.Element, miss Missing, plantLat, plantLon float64) (unit *units.Unit, accepted, attempted bool) {
	var memberElements []*osm.Element

	for _, m := range plant.Members {
		if m.Type != osm.TypeNode && m.Type != osm.TypeWay {
			continue
		}

		var el *osm.Element

		var ok bool

		if m.Type == osm.TypeNode {
			el, ok = p.cache.Get(osm.TypeNode, m.Ref)
		} else {
			el, ok = p.cache.Get(osm.TypeWay, m.Ref)
		}

		if ok && el.Tags["power"] == "generator" {
			memberElements = append(memberElements, el)
		}
	}

	if len(memberElements) < p.cfg.MinGeneratorsForReconstruction {
		return nil, false, false
	}

	members := make([]MemberExtraction, 0, len(memberElements))

	for _, el := range memberElements {
		f, _ := ExtractFields(el.Tags, p.cfg.GeneratorTagKeys, p.cfg.Mapper, p.cfg.SourceOutputExtraTags)

		me := MemberExtraction{Name: f.Name, Source: f.Source, Technology: f.Technology, StartDate: f.StartDate}

		geom := p.buildPlantGeometryOrNil(el)
		ladder := p.runCapacityLadder(f.OutputRaw, f.Source, capacity.KindGenerator, geom)

		if ladder.outcome.OK {
			me.CapacityMW, me.HasCapacity = ladder.outcome.ValueMW, true
		}

		members = append(members, me)
	}

	names := make([]string, len(members))
	sources := make([]string, len(members))
	techs := make([]string, len(members))
	dates := make([]string, len(members))

	for i, m := range members {
		names[i], sources[i], techs[i], dates[i] = m.Name, m.Source, m.Technology, m.StartDate
	}

	aggName := AggregateNames(names, p.cfg.NameSimilarityThreshold)
	aggSource := AggregateMajority(sources)
	aggTech := AggregateMajority(techs)
	aggDate := AggregateEarliestDate(dates)

	memberSum, memberCount := SumCapacity(members)

	plantOwnOutput := plant.Tags[firstOutputKey(p.cfg.PlantTagKeys)]

	capMW := memberSum

	if plantOwnOutput != "" {
		ownLadder := p.runCapacityLadder(plantOwnOutput, aggSource, capacity.KindPlant, nil)
		if ownLadder.outcome.OK {
			capMW = ownLadder.outcome.ValueMW

			if memberCount > 0 && capMW > 0 {
				diff := math.Abs(capMW-memberSum) / capMW
				if diff > 0.2 {
					p.warnf("reconstructed plant capacity diverges from member sum by more than 20%", "id", plant.ID, "plant_capacity", capMW, "member_sum", memberSum)
				}
			}
		}
	}

	capSource := units.SourceReconstructedFromGenerators

	resultMiss := Missing{
		Name:       aggName == "" && miss.Name,
		Source:     aggSource == "",
		Technology: aggTech == "" && miss.Technology,
		Output:     memberCount == 0 && capMW == 0,
		StartDate:  aggDate == "" && miss.StartDate,
	}

	if blocked, _ := Mandatory(resultMiss, p.cfg.AllowMissing); blocked {
		return nil, false, true
	}

	unitKind := fmt.Sprintf("plant:%s", plant.Type)
	u := p.buildUnit(plant, unitKind, aggSource, aggTech, aggName, aggDate, capMW, capSource, plantLat, plantLon, units.DiscriminatorPlant, len(members), plant.Key())

	plant.Processed = true

	for _, el := range memberElements {
		el.Processed = true
	}

	return u, true, true
}

func firstOutputKey(keys mapping.TagKeys) string {
	if len(keys.OutputTagsKeys) == 0 {
		return ""
	}

	return keys.OutputTagsKeys[0]
}

func unitReasonFromCapacity(r capacity.RejectReason) units.Reason {
	switch r {
	case capacity.ReasonPlaceholder:
		return units.ReasonCapacityPlaceholder
	case capacity.ReasonDecimalFormat:
		return units.ReasonCapacityDecimalFormat
	case capacity.ReasonRegexError:
		return units.ReasonCapacityRegexError
	case capacity.ReasonRegexNoMatch:
		return units.ReasonCapacityRegexNoMatch
	case capacity.ReasonNonNumeric:
		return units.ReasonCapacityNonNumeric
	case capacity.ReasonUnsupportedUnit:
		return units.ReasonCapacityUnsupportedUnit
	case capacity.ReasonZero:
		return units.ReasonCapacityZero
	case capacity.ReasonEstimationMethodUnknown:
		return units.ReasonEstimationMethodUnknown
	default:
		return units.ReasonOther
	}
}
