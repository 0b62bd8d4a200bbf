package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want Amount
	}{
		{"2.5", 2_500_000},
		{"2", 2_000_000},
		{"1.0", 1_000_000},
		{"0.000001", 1},
		{" 3.14 ", 3_140_000},
		{"2.5000000", 2_500_000},
		{"0", 0},
		{"18446744073709.551615", 18446744073709551615},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in, 6)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{"", "-1", "-0.000001", "1.0000001", "abc", "1,5", "18446744073709.551616"} {
		_, err := ParseAmount(in, 6)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "2.5", FormatAmount(2_500_000, 6))
	assert.Equal(t, "1", FormatAmount(1_000_000, 6))
	assert.Equal(t, "0.000001", FormatAmount(1, 6))
	assert.Equal(t, "0", FormatAmount(0, 6))
}
