package phone

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValidNumber(t *testing.T) {
	n, err := Parse("+34659424242")
	require.NoError(t, err)
	require.Equal(t, "+34659424242", n.E164())
	require.Equal(t, 34, n.CountryCode())
	require.Equal(t, "+34659424242", n.String())
}

func TestParseNormalizesFormatting(t *testing.T) {
	n, err := Parse("+33 6 11 22 33 44")
	require.NoError(t, err)
	require.Equal(t, "+33611223344", n.E164())
	require.Equal(t, 33, n.CountryCode())
}

func TestParseGarbage(t *testing.T) {
	_, err := Parse("not a number")
	require.ErrorIs(t, err, ErrInvalidNumber)
}

func TestParseMissingCountryCode(t *testing.T) {
	_, err := Parse("659424242")
	require.ErrorIs(t, err, ErrInvalidNumber)
}

func TestParseImpossibleNumber(t *testing.T) {
	_, err := Parse("+3412")
	require.ErrorIs(t, err, ErrInvalidNumber)
}
