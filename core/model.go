package core

import (
	"math/big"
	"swap-deposit-example/display"

	"github.com/ethereum/go-ethereum/common"
)

// Token 代表一个 erc20 token，地址 + 精度
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals int32
}

// ExactInputSingleParams uniswap v3 SwapRouter02 exactInputSingle 的参数
// 字段名需要与 abi 中 tuple 的 components 对应
type ExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int // uint24
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int // uint160, 0 表示不限制价格
}

// NewExactInputSingleParams 按传入的值原样构造参数，不做任何调整
func NewExactInputSingleParams(tokenIn, tokenOut Token, fee *big.Int, recipient common.Address, amountIn, amountOutMinimum *big.Int) ExactInputSingleParams {
	return ExactInputSingleParams{
		TokenIn:           tokenIn.Address,
		TokenOut:          tokenOut.Address,
		Fee:               fee,
		Recipient:         recipient,
		AmountIn:          amountIn,
		AmountOutMinimum:  amountOutMinimum,
		SqrtPriceLimitX96: big.NewInt(0),
	}
}

func (p *ExactInputSingleParams) print() {
	display.Title("exactInputSingle params")
	display.Field("TokenIn", p.TokenIn.Hex())
	display.Field("TokenOut", p.TokenOut.Hex())
	display.Field("Fee", p.Fee)
	display.Field("Recipient", p.Recipient.Hex())
	display.Field("AmountIn", p.AmountIn)
	display.Field("AmountOutMinimum", p.AmountOutMinimum)
	display.Field("SqrtPriceLimitX96", p.SqrtPriceLimitX96)
}

// DepositParams lending pool deposit / supply 的参数
type DepositParams struct {
	Asset        common.Address
	Amount       *big.Int
	OnBehalfOf   common.Address
	ReferralCode uint16
}

func (p *DepositParams) print(method string) {
	display.Title(method + " params")
	display.Field("Asset", p.Asset.Hex())
	display.Field("Amount", p.Amount)
	display.Field("OnBehalfOf", p.OnBehalfOf.Hex())
	display.Field("ReferralCode", p.ReferralCode)
}
