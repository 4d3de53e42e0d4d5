package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExtractor(t *testing.T) *Extractor {
	t.Helper()

	e, err := NewExtractor(nil)
	require.NoError(t, err)

	return e
}

func TestBasicPassDirectMW(t *testing.T) {
	e := newExtractor(t)

	out := e.Basic("5 MW")
	require.True(t, out.OK)
	assert.InDelta(t, 5.0, out.ValueMW, 1e-9)
}

func TestBasicPassPlaceholder(t *testing.T) {
	e := newExtractor(t)

	out := e.Basic("yes")
	assert.False(t, out.OK)
	assert.Equal(t, ReasonPlaceholder, out.Reason)
}

func TestBasicPassDecimalComma(t *testing.T) {
	e := newExtractor(t)

	out := e.Basic("3,5 MW")
	assert.False(t, out.OK)
	assert.Equal(t, ReasonDecimalFormat, out.Reason)
	assert.Equal(t, "3,5 MW", out.Keywords)
	assert.Contains(t, out.Details, "3.5 MW")
}

func TestCapacityConversionsAreInverseConsistent(t *testing.T) {
	e := newExtractor(t)

	inputs := []string{"1 GW", "1000 MW", "1000000 kW", "1000000000 W"}
	for _, in := range inputs {
		out := e.Basic(in)
		if !out.OK {
			out = e.Advanced(in)
		}

		require.True(t, out.OK, "input %q should parse", in)
		assert.InDelta(t, 1000.0, out.ValueMW, 1e-9, "input %q", in)
	}
}

func TestAdvancedPassUnknownUnitMatchesNoPattern(t *testing.T) {
	e := newExtractor(t)

	out := e.Basic("5 BTU")
	assert.False(t, out.OK)

	out = e.Advanced("5 BTU")
	assert.Equal(t, ReasonRegexNoMatch, out.Reason)
}

func TestZeroCapacityIsRejected(t *testing.T) {
	e := newExtractor(t)

	out := e.Basic("0 MW")
	assert.False(t, out.OK)
	assert.Equal(t, ReasonZero, out.Reason)
}
