// Package capacity parses free-form OSM capacity tag values into MW
// (Extractor) and estimates a fallback capacity when no tag is
// parseable (Estimator).
package capacity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Outcome is the result of an extraction attempt.
type Outcome struct {
	OK         bool
	ValueMW    float64
	RawUnit    string
	Reason     RejectReason
	Details    string
	Keywords   string
}

// RejectReason enumerates the capacity-specific subset of the overall
// RejectionReason closed set.
type RejectReason string

const (
	ReasonNone            RejectReason = ""
	ReasonPlaceholder     RejectReason = "capacity-placeholder"
	ReasonDecimalFormat   RejectReason = "capacity-decimal-format"
	ReasonRegexError      RejectReason = "capacity-regex-error"
	ReasonRegexNoMatch    RejectReason = "capacity-regex-no-match"
	ReasonNonNumeric      RejectReason = "capacity-non-numeric"
	ReasonUnsupportedUnit RejectReason = "capacity-unsupported-unit"
	ReasonZero            RejectReason = "capacity-zero"
)

// unitToMW converts a recognised unit token (case-insensitive) to its MW
// multiplier.
var unitToMW = map[string]float64{
	"w":   1e-6,
	"kw":  1e-3,
	"mw":  1,
	"gw":  1e3,
	"wp":  1e-6,
	"kwp": 1e-3,
	"mwp": 1,
	"gwp": 1e3,
}

var placeholderValues = map[string]bool{"yes": true, "true": true}

// basicRegex is the always-on basic pass: only mw|mwp, no kW/GW.
var basicRegex = regexp.MustCompile(`(?i)^([0-9]+(?:\.[0-9]+)?)\s*(mwp?)$`)

// defaultAdvancedPatterns cover W/kW/MW/GW with an optional 'p' suffix and
// long unit names.
var defaultAdvancedPatterns = []string{
	`(?i)^([0-9]+(?:\.[0-9]+)?)\s*(gwp?|megawatt-peak|gigawatts?)$`,
	`(?i)^([0-9]+(?:\.[0-9]+)?)\s*(mwp?|megawatts?)$`,
	`(?i)^([0-9]+(?:\.[0-9]+)?)\s*(kwp?|kilowatts?)$`,
	`(?i)^([0-9]+(?:\.[0-9]+)?)\s*(wp?|watts?)$`,
}

// longUnitAlias maps a long-form unit word found by an advanced pattern back
// onto its unitToMW key.
var longUnitAlias = map[string]string{
	"megawatt-peak": "mwp", "megawatts": "mw", "megawatt": "mw",
	"gigawatts": "gw", "gigawatt": "gw",
	"kilowatts": "kw", "kilowatt": "kw",
	"watts": "w", "watt": "w",
}

// Extractor parses capacity strings in two passes: basic, then advanced.
type Extractor struct {
	advancedPatterns []*regexp.Regexp
}

// NewExtractor builds an Extractor. patterns overrides the default advanced
// regex list when non-empty (config key capacity_extraction.regex_patterns).
func NewExtractor(patterns []string) (*Extractor, error) {
	if len(patterns) == 0 {
		patterns = defaultAdvancedPatterns
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))

	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling capacity regex %q: %w", p, err)
		}

		compiled = append(compiled, re)
	}

	return &Extractor{advancedPatterns: compiled}, nil
}

// Basic runs the always-on basic pass: trim, placeholder check,
// decimal-comma check, then the mw|mwp regex.
func (e *Extractor) Basic(raw string) Outcome {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)

	if placeholderValues[lower] {
		return Outcome{Reason: ReasonPlaceholder, Details: "placeholder value", Keywords: raw}
	}

	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		corrected := strings.ReplaceAll(s, ",", ".")
		return Outcome{
			Reason: ReasonDecimalFormat,
			Details: fmt.Sprintf("suggested correction: %s", corrected),
			Keywords: raw,
		}
	}

	m := basicRegex.FindStringSubmatch(s)
	if m == nil {
		return Outcome{OK: false}
	}

	return e.finish(m[1], m[2], raw)
}

// Advanced runs the opt-in advanced pass against the configured regex list.
// Callers must not call Advanced when Basic already returned a placeholder
// or decimal-format rejection; those values never recover in the advanced
// pass either.
func (e *Extractor) Advanced(raw string) Outcome {
	s := strings.TrimSpace(raw)

	for _, re := range e.advancedPatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}

		if len(m) < 3 {
			return Outcome{Reason: ReasonRegexError, Details: "pattern matched without value/unit groups", Keywords: raw}
		}

		return e.finish(m[1], m[2], raw)
	}

	return Outcome{Reason: ReasonRegexNoMatch, Details: "no advanced pattern matched", Keywords: raw}
}

func (e *Extractor) finish(numStr, unitStr, raw string) Outcome {
	value, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return Outcome{Reason: ReasonNonNumeric, Details: err.Error(), Keywords: raw}
	}

	unit := strings.ToLower(unitStr)
	if alias, ok := longUnitAlias[unit]; ok {
		unit = alias
	}

	mult, ok := unitToMW[unit]
	if !ok {
		return Outcome{Reason: ReasonUnsupportedUnit, Details: fmt.Sprintf("unit %q is not recognised", unitStr), Keywords: raw}
	}

	mw := value * mult
	if mw == 0 {
		return Outcome{Reason: ReasonZero, Details: "parsed value is zero", Keywords: raw}
	}

	if mw < 0 {
		return Outcome{Reason: ReasonNonNumeric, Details: "parsed value is negative", Keywords: raw}
	}

	return Outcome{OK: true, ValueMW: mw, RawUnit: unit}
}
