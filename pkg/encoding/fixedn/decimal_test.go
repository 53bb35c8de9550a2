package fixedn

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromString(t *testing.T) {
	testCases := []struct {
		s    string
		prec int
		exp  string
	}{
		{"10", DefaultDecimals, "10000000000000000000"},
		{"5.0", DefaultDecimals, "5000000000000000000"},
		{"0.000000000000000001", DefaultDecimals, "1"},
		{"1.5", 2, "150"},
		{".5", 2, "50"},
		{"7.", 2, "700"},
		{"-42.01", 2, "-4201"},
		{"+3", 0, "3"},
		{"12345678901234567890", 0, "12345678901234567890"},
	}
	for _, tc := range testCases {
		bi, err := FromString(tc.s, tc.prec)
		require.NoError(t, err, tc.s)
		require.Equal(t, tc.exp, bi.String(), tc.s)
	}

	errCases := []struct {
		s    string
		prec int
	}{
		{"", 2},
		{".", 2},
		{"1.234", 2},
		{"1e5", 2},
		{"0x10", 2},
		{"1.2.3", 4},
		{"--1", 2},
		{"1", -1},
		{"1", 78},
	}
	for _, tc := range errCases {
		_, err := FromString(tc.s, tc.prec)
		require.Error(t, err, tc.s)
	}
}

func TestToString(t *testing.T) {
	testCases := []struct {
		bi   *big.Int
		prec int
		exp  string
	}{
		{big.NewInt(0), DefaultDecimals, "0"},
		{nil, DefaultDecimals, "0"},
		{new(big.Int).Mul(big.NewInt(10), Pow10(DefaultDecimals)), DefaultDecimals, "10"},
		{big.NewInt(150), 2, "1.5"},
		{big.NewInt(1), 8, "0.00000001"},
		{big.NewInt(-4201), 2, "-42.01"},
		{big.NewInt(-5), 2, "-0.05"},
		{big.NewInt(123), 0, "123"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.exp, ToString(tc.bi, tc.prec))
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"1", "0.5", "123.000000000000000001", "-7.25"} {
		bi, err := FromString(s, DefaultDecimals)
		require.NoError(t, err)
		require.Equal(t, s, ToString(bi, DefaultDecimals))
	}
}
