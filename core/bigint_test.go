package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, s)
	return v
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int32
		want     string
	}{
		{"1", 6, "1000000"},
		{"100", 6, "100000000"},
		{"0.1", 18, "100000000000000000"},
		{"0.000001", 6, "1"},
		{"1.5", 18, "1500000000000000000"},
		{" 2 ", 6, "2000000"},
		{"0", 18, "0"},
		{"1e-6", 6, "1"},
		{"123456789.123456789012345678", 18, "123456789123456789012345678"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ParseUnits(tt.amount, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, 0, got.Cmp(mustBig(t, tt.want)), "got %s", got)
		})
	}
}

func TestParseUnits_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int32
	}{
		{"too many decimals", "1.0000001", 6},
		{"negative", "-1", 6},
		{"not a number", "one", 6},
		{"empty", "", 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUnits(tt.amount, tt.decimals)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1", FormatUnits(big.NewInt(1000000), 6))
	assert.Equal(t, "0.1", FormatUnits(mustBig(t, "100000000000000000"), 18))
	assert.Equal(t, "0.000001", FormatUnits(big.NewInt(1), 6))
	assert.Equal(t, "0", FormatUnits(nil, 6))

	amount, err := ParseUnits("12.345678", 6)
	require.NoError(t, err)
	assert.Equal(t, "12.345678", FormatUnits(amount, 6))
}

func TestMulRate(t *testing.T) {
	assert.Equal(t, uint64(130000), mulRateUint64(100000, 1.3))
	assert.Equal(t, 0, mulRate(big.NewInt(2_000_000_000), 1.5).Cmp(big.NewInt(3_000_000_000)))
	// 向下取整
	assert.Equal(t, 0, mulRate(big.NewInt(3), 1.5).Cmp(big.NewInt(4)))
}

func TestApplySlippage(t *testing.T) {
	quote := mustBig(t, "500000000000000000")
	assert.Equal(t, 0, applySlippage(quote, 50).Cmp(mustBig(t, "497500000000000000")))
	assert.Equal(t, 0, applySlippage(quote, 0).Cmp(quote))
	assert.Equal(t, 0, applySlippage(quote, 10000).Sign())
	assert.Equal(t, 0, applySlippage(big.NewInt(999), 1).Cmp(big.NewInt(998)))
}
