package core

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const bpsDenominator = 10000

// ParseUnits 把十进制数量转换为 token 最小单位
// 比如 "1" USDC (精度 6) -> 1000000，"0.1" LINK (精度 18) -> 1e17
// 超出精度的数量直接报错，不做舍入
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAmount, amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w %q: negative", ErrInvalidAmount, amount)
	}
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("%w %q: more than %d decimals", ErrInvalidAmount, amount, decimals)
	}
	return shifted.BigInt(), nil
}

// FormatUnits 把最小单位转换回十进制字符串，1000000 (精度 6) -> "1"
func FormatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// mulRate amount * rate，结果向下取整
func mulRate(amount *big.Int, rate float64) *big.Int {
	return decimal.NewFromBigInt(amount, 0).Mul(decimal.NewFromFloat(rate)).BigInt()
}

func mulRateUint64(amount uint64, rate float64) uint64 {
	return mulRate(new(big.Int).SetUint64(amount), rate).Uint64()
}

// applySlippage amount * (10000 - bps) / 10000，向下取整
func applySlippage(amount *big.Int, slippageBps uint32) *big.Int {
	if slippageBps >= bpsDenominator {
		return big.NewInt(0)
	}
	res := new(big.Int).Mul(amount, big.NewInt(int64(bpsDenominator-slippageBps)))
	return res.Div(res, big.NewInt(bpsDenominator))
}
