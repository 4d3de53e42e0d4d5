package capacity

import "github.com/powerosm/powerosm/pkg/geometry"

// EstimationMethod is the per-source estimation policy.
type EstimationMethod string

const (
	MethodDefaultValue EstimationMethod = "default_value"
	MethodAreaBased    EstimationMethod = "area_based"
)

// ReasonEstimationMethodUnknown is used when a source's estimation method is
// not one of the recognised values.
const ReasonEstimationMethodUnknown RejectReason = "estimation-method-unknown"

// SourceEstimationConfig is the per-source estimation configuration from
// sources.<src>.capacity_estimation.{method, unit_capacity|efficiency}.
type SourceEstimationConfig struct {
	Method           EstimationMethod `yaml:"method"`
	DefaultValueMW   float64          `yaml:"unit_capacity"`
	EfficiencyWPerM2 float64          `yaml:"efficiency"`
}

// defaultPlantAreaDerating is the net-to-gross land-use derating constant
// applied to plant (not generator) area-based estimates; NewEstimator uses
// it unless given a positive override, since real land-use ratios vary by
// technology.
const defaultPlantAreaDerating = 1.0 / 3.0

// Estimator fills in a capacity when no tag was parseable, per source
// policy.
type Estimator struct {
	PlantAreaDerating float64
}

// NewEstimator builds an Estimator with the default derating unless
// overridden.
func NewEstimator(plantAreaDerating float64) *Estimator {
	if plantAreaDerating <= 0 {
		plantAreaDerating = defaultPlantAreaDerating
	}

	return &Estimator{PlantAreaDerating: plantAreaDerating}
}

// ElementKind controls whether the area-based derating constant applies.
type ElementKind int

const (
	KindGenerator ElementKind = iota
	KindPlant
)

// Estimate computes a fallback capacity in MW for g under cfg's method.
func (es *Estimator) Estimate(cfg SourceEstimationConfig, g *geometry.PlantGeometry, kind ElementKind) Outcome {
	switch cfg.Method {
	case MethodDefaultValue:
		if cfg.DefaultValueMW <= 0 {
			return Outcome{Reason: ReasonZero, Details: "configured default value is zero"}
		}

		return Outcome{OK: true, ValueMW: cfg.DefaultValueMW, RawUnit: "mw"}
	case MethodAreaBased:
		if g == nil {
			return Outcome{Reason: ReasonEstimationMethodUnknown, Details: "area-based estimation requires a way/relation geometry"}
		}

		areaM2 := g.AreaSquareMeters()
		mw := areaM2 * cfg.EfficiencyWPerM2 / 1e6

		if kind == KindPlant {
			mw *= es.PlantAreaDerating
		}

		if mw <= 0 {
			return Outcome{Reason: ReasonZero, Details: "area-based estimate resolved to zero"}
		}

		return Outcome{OK: true, ValueMW: mw, RawUnit: "mw"}
	default:
		return Outcome{Reason: ReasonEstimationMethodUnknown, Details: string(cfg.Method)}
	}
}
