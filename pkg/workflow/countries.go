package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// countryNames maps ISO 3166-1 alpha-2 codes to their common English name.
// This is a practical subset covering the countries an OSM
// power-infrastructure run is realistically pointed at, kept as a plain map
// rather than a generated file since no vendored ISO-3166 table or
// fuzzy-matching library is wired in for this (see DESIGN.md).
var countryNames = map[string]string{
	"AT": "Austria", "AU": "Australia", "BE": "Belgium", "BG": "Bulgaria",
	"BR": "Brazil", "CA": "Canada", "CH": "Switzerland", "CL": "Chile",
	"CN": "China", "CO": "Colombia", "CZ": "Czechia", "DE": "Germany",
	"DK": "Denmark", "EE": "Estonia", "EG": "Egypt", "ES": "Spain",
	"FI": "Finland", "FR": "France", "GB": "United Kingdom", "GR": "Greece",
	"HR": "Croatia", "HU": "Hungary", "ID": "Indonesia", "IE": "Ireland",
	"IN": "India", "IS": "Iceland", "IT": "Italy", "JP": "Japan",
	"KE": "Kenya", "KR": "South Korea", "LT": "Lithuania", "LU": "Luxembourg",
	"LV": "Latvia", "MA": "Morocco", "MX": "Mexico", "MY": "Malaysia",
	"NG": "Nigeria", "NL": "Netherlands", "NO": "Norway", "NZ": "New Zealand",
	"PE": "Peru", "PH": "Philippines", "PL": "Poland", "PT": "Portugal",
	"RO": "Romania", "RS": "Serbia", "SE": "Sweden", "SG": "Singapore",
	"SI": "Slovenia", "SK": "Slovakia", "TH": "Thailand", "TR": "Turkey",
	"TW": "Taiwan", "UA": "Ukraine", "US": "United States", "VN": "Vietnam",
	"ZA": "South Africa",
}

var nameToCode = func() map[string]string {
	m := make(map[string]string, len(countryNames))
	for code, name := range countryNames {
		m[strings.ToLower(name)] = code
	}

	return m
}()

// CountryCode resolves country (an alpha-2 code or a common English name,
// case-insensitive) to its canonical ISO 3166-1 alpha-2 code.
func CountryCode(country string) (string, bool) {
	trimmed := strings.TrimSpace(country)

	upper := strings.ToUpper(trimmed)
	if _, ok := countryNames[upper]; ok {
		return upper, true
	}

	if code, ok := nameToCode[strings.ToLower(trimmed)]; ok {
		return code, true
	}

	return "", false
}

// ValidateCountries checks every input up front: any unknown entry aborts
// with a diagnostic naming every invalid entry and its closest known
// matches, raised before OverpassClient issues a single query.
func ValidateCountries(inputs []string) ([]string, error) {
	resolved := make([]string, 0, len(inputs))

	var problems []string

	for _, in := range inputs {
		code, ok := CountryCode(in)
		if ok {
			resolved = append(resolved, code)
			continue
		}

		suggestions := closestMatches(in, 3)
		if len(suggestions) > 0 {
			problems = append(problems, fmt.Sprintf("%q (did you mean: %s?)", in, strings.Join(suggestions, ", ")))
		} else {
			problems = append(problems, fmt.Sprintf("%q", in))
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid country name(s): %s", strings.Join(problems, "; "))
	}

	return resolved, nil
}

// closestMatches ranks every known country name/code by Levenshtein distance
// to query and returns up to n names at or below a permissive threshold.
func closestMatches(query string, n int) []string {
	type scored struct {
		name string
		dist int
	}

	q := strings.ToLower(strings.TrimSpace(query))

	var candidates []scored

	for code, name := range countryNames {
		d := levenshtein(q, strings.ToLower(name))
		if dc := levenshtein(q, strings.ToLower(code)); dc < d {
			d = dc
		}

		threshold := len(q)/2 + 2
		if d <= threshold {
			candidates = append(candidates, scored{name: name, dist: d})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}

		return candidates[i].name < candidates[j].name
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}

	return out
}

// levenshtein computes the classic edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr := make([]int, len(rb)+1)
		curr[0] = i

		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}

		prev = curr
	}

	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}

	if c < m {
		m = c
	}

	return m
}
