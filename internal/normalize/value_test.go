package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	cases := map[string]string{
		"2024-03-15":     "2024-03-15",
		"03/15/2024":     "2024-03-15",
		"3/5/2024":       "2024-03-05",
		"March 15, 2024": "2024-03-15",
		"Mar 15, 2024":   "2024-03-15",
		"15 March 2024":  "2024-03-15",
		"03-15-2024":     "2024-03-15",
		"2024/03/15":     "2024-03-15",
		" 2024-03-15 ":   "2024-03-15",
	}
	for in, want := range cases {
		got, err := ParseDate(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	for _, in := range []string{"", "not a date", "15.03.2024"} {
		_, err := ParseDate(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseDateErrorRedactsLongInput(t *testing.T) {
	long := strings.Repeat("confidential lease text ", 10)
	_, err := ParseDate(long)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), long)
}

func TestParseCurrency(t *testing.T) {
	amount, code, err := ParseCurrency("$1,234.56")
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, amount, 0.001)
	assert.Equal(t, "USD", code)

	amount, code, err = ParseCurrency("USD 1200")
	require.NoError(t, err)
	assert.InDelta(t, 1200, amount, 0.001)
	assert.Equal(t, "USD", code)

	amount, code, err = ParseCurrency("EUR 2,500.00")
	require.NoError(t, err)
	assert.InDelta(t, 2500, amount, 0.001)
	assert.Equal(t, "EUR", code)

	amount, _, err = ParseCurrency("1500")
	require.NoError(t, err)
	assert.InDelta(t, 1500, amount, 0.001)

	for _, in := range []string{"", "no amount here"} {
		_, _, err := ParseCurrency(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseNumber(t *testing.T) {
	n, err := ParseNumber("12,500")
	require.NoError(t, err)
	assert.InDelta(t, 12500, n, 0.001)

	n, err = ParseNumber("3.5")
	require.NoError(t, err)
	assert.InDelta(t, 3.5, n, 0.001)

	_, err = ParseNumber("twelve")
	assert.Error(t, err)
}

func TestParseBool(t *testing.T) {
	for _, in := range []string{"yes", "Yes", "Y", "true", "1", "X"} {
		v, err := ParseBool(in)
		require.NoError(t, err, "input %q", in)
		assert.True(t, v, "input %q", in)
	}
	for _, in := range []string{"no", "N", "false", "0", "None"} {
		v, err := ParseBool(in)
		require.NoError(t, err, "input %q", in)
		assert.False(t, v, "input %q", in)
	}
	_, err := ParseBool("maybe")
	assert.Error(t, err)
}

func TestCanonicalEnum(t *testing.T) {
	allowed := []string{"gross", "modified_gross", "triple_net"}

	got, err := CanonicalEnum("Triple Net", allowed)
	require.NoError(t, err)
	assert.Equal(t, "triple_net", got)

	got, err = CanonicalEnum("modified-gross", allowed)
	require.NoError(t, err)
	assert.Equal(t, "modified_gross", got)

	got, err = CanonicalEnum(" GROSS ", allowed)
	require.NoError(t, err)
	assert.Equal(t, "gross", got)

	_, err = CanonicalEnum("double net", allowed)
	assert.Error(t, err)
	_, err = CanonicalEnum("", allowed)
	assert.Error(t, err)
}
