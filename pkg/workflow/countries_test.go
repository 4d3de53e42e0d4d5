package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountryCodeResolvesCodeAndName(t *testing.T) {
	code, ok := CountryCode("DE")
	require.True(t, ok)
	assert.Equal(t, "DE", code)

	code, ok = CountryCode("germany")
	require.True(t, ok)
	assert.Equal(t, "DE", code)
}

func TestCountryCodeRejectsUnknown(t *testing.T) {
	_, ok := CountryCode("Narnia")
	assert.False(t, ok)
}

func TestValidateCountriesAllOrNothing(t *testing.T) {
	resolved, err := ValidateCountries([]string{"Germany", "FR"})
	require.NoError(t, err)
	assert.Equal(t, []string{"DE", "FR"}, resolved)

	_, err = ValidateCountries([]string{"Germany", "Frnace"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Frnace")
	assert.Contains(t, err.Error(), "did you mean")
}
