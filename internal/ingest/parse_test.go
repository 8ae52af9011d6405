package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	for _, cell := range []string{"", " ", "-", "NA", "nan", "NULL", "None"} {
		v, err := parseAmount("ovrd_sum", cell)
		require.NoError(t, err, cell)
		assert.Nil(t, v, cell)
	}

	v, err := parseAmount("ovrd_sum", " 1234.50 ")
	require.NoError(t, err)
	assert.Equal(t, 1234.5, *v)

	v, err = parseAmount("ovrd_sum", "0")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 0.0, *v)

	v, err = parseAmount("ovrd_sum", "1.5e3")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, *v)

	_, err = parseAmount("ovrd_sum", "12,5")
	assert.EqualError(t, err, `invalid ovrd_sum "12,5"`)

	_, err = parseAmount("ovrd_sum", "-0.01")
	assert.EqualError(t, err, "ovrd_sum must not be negative, got -0.01")
	_, err = parseAmount("ovrd_sum", "1e400")
	assert.EqualError(t, err, "ovrd_sum out of range, got 1e400")
}

func TestParseAge(t *testing.T) {
	v, err := parseAge("42")
	require.NoError(t, err)
	assert.Equal(t, 42, *v)

	v, err = parseAge("42.0")
	require.NoError(t, err)
	assert.Equal(t, 42, *v)

	_, err = parseAge("42.5")
	assert.Error(t, err)
	_, err = parseAge("1e19")
	assert.EqualError(t, err, "age out of range, got 1e19")
}

func TestParseID(t *testing.T) {
	assert.Equal(t, "cli_1", parseID("  cli_1 "))
	for _, cell := range []string{"", "-", "NA", "null"} {
		assert.Empty(t, parseID(cell), cell)
	}
}

func TestMapHeaderIgnoresUnknownColumns(t *testing.T) {
	cols, err := mapHeader([]string{"\ufeffid", "PDN", "incomeValue"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "", "income_value"}, cols)
}
