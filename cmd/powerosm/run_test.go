package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitComma(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single", "DE", []string{"DE"}},
		{"multiple", "DE,FR,es", []string{"DE", "FR", "es"}},
		{"whitespace and blanks dropped", " DE , , FR ,", []string{"DE", "FR"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, splitComma(tc.in))
		})
	}
}
