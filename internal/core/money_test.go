package core

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{".5", "0.5", true},
		{"12.", "12", true},
		{"1.005", "1.01", true}, // half-up rounding
		{"12.344", "12.34", true},
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.004", "", false},
		{"abc", "", false},
		{"1e3", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{"92233720368547758.07", "92233720368547758.07", true},
		{"92233720368547758.08", "", false},
		{"100000000000000000000", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.out)), "got %s want %s", got, tc.out)
		})
	}
}

func TestCentsConversion(t *testing.T) {
	assert.True(t, FromCents(1234).Equal(decimal.RequireFromString("12.34")))
	cents, err := ToCents(decimal.RequireFromString("12.34"))
	require.NoError(t, err)
	assert.Equal(t, int64(1234), cents)
	cents, err = ToCents(decimal.RequireFromString("12.345"))
	require.NoError(t, err)
	assert.Equal(t, int64(1235), cents)
	assert.Equal(t, "19.50", FormatAmount(decimal.RequireFromString("19.5")))
}

func TestToCentsRejectsOverflow(t *testing.T) {
	cents, err := ToCents(MaxAmount)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), cents)

	for _, in := range []string{"92233720368547758.08", "100000000000000000000", "-92233720368547758.09"} {
		_, err := ToCents(decimal.RequireFromString(in))
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}
}
