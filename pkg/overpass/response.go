package overpass

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/powerosm/powerosm/pkg/osm"
)

// Response is the decoded Overpass "elements" envelope.
type Response struct {
	Elements []*osm.Element `json:"elements"`
	Error    string         `json:"error,omitempty"`
}

// flexInt unmarshals an Overpass count pseudo-element's "total" field, which
// arrives as either a JSON string or a JSON number depending on server
// version, via a bespoke UnmarshalJSON for a loosely-typed upstream field.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("overpass: count total %q is neither string nor number: %w", data, err)
	}

	*f = flexInt(n)

	return nil
}

type countElement struct {
	Type string `json:"type"`
	Tags struct {
		Total flexInt `json:"total"`
	} `json:"tags"`
}

type countResponse struct {
	Elements []countElement `json:"elements"`
}

// Total sums the "total" tag of every type=count pseudo-element in the
// response (Overpass emits one per query; defensively summing tolerates a
// server variant that splits counts across several).
func (r countResponse) Total() int64 {
	var total int64

	for _, e := range r.Elements {
		if e.Type == "count" {
			total += int64(e.Tags.Total)
		}
	}

	return total
}
