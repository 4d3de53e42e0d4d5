package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/powerosm/powerosm/pkg/units"
)

func TestFormatKeywords(t *testing.T) {
	assert.Equal(t, "", formatKeywords(nil))

	assert.Equal(t, "solar farm (4)", formatKeywords([]units.KeywordCount{
		{Keyword: "solar farm", Count: 4},
	}))

	assert.Equal(t, "solar farm (4), wind park (2)", formatKeywords([]units.KeywordCount{
		{Keyword: "solar farm", Count: 4},
		{Keyword: "wind park", Count: 2},
	}))
}
