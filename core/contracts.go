package core

import (
	"context"
	"embed"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const (
	methodApprove               = "approve"
	methodAllowance             = "allowance"
	methodBalanceOf             = "balanceOf"
	methodDecimals              = "decimals"
	methodGetPool               = "getPool"
	methodFee                   = "fee"
	methodQuoteExactInputSingle = "quoteExactInputSingle"
	methodExactInputSingle      = "exactInputSingle" // v3 swap
)

//go:embed abi/*.json
var abiFiles embed.FS

var (
	erc20Abi          *abi.ABI
	uniswapFactoryAbi *abi.ABI
	uniswapPoolAbi    *abi.ABI
	quoterAbi         *abi.ABI
	swapRouterAbi     *abi.ABI
	lendingPoolAbi    *abi.ABI
)

func init() {
	initAbi(&erc20Abi, "abi/erc20.json")
	initAbi(&uniswapFactoryAbi, "abi/IUniswapV3Factory.json")
	initAbi(&uniswapPoolAbi, "abi/IUniswapV3Pool.json")
	initAbi(&quoterAbi, "abi/IQuoter.json")
	initAbi(&swapRouterAbi, "abi/ISwapRouter.json")
	initAbi(&lendingPoolAbi, "abi/ILendingPool.json")
}

func initAbi(a **abi.ABI, path string) {
	file, err := abiFiles.Open(path)
	if err != nil {
		panic(err)
	}
	defer file.Close()
	tmpAbi, err := abi.JSON(file)
	if err != nil {
		panic(err)
	}
	*a = &tmpAbi
}

type baseContract struct {
	Address common.Address
	Abi     *abi.ABI
}

// call 只读调用，结果解码到 out
func (c *baseContract) call(ctx context.Context, backend Backend, out interface{}, methodName string, args ...interface{}) error {
	msg, err := packInput(c.Abi, common.Address{}, c.Address, methodName, args...)
	if err != nil {
		return err
	}
	resData, err := backend.CallContract(ctx, msg, nil)
	if err != nil {
		return err
	}
	return unpackOutput(out, c.Abi, methodName, resData)
}

// transact 构造交易，签名并发送，返回 tx hash，不等待上链
func (c *baseContract) transact(ctx context.Context, tx *Transactor, methodName string, args ...interface{}) (common.Hash, error) {
	msg, err := packInput(c.Abi, tx.From(), c.Address, methodName, args...)
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Send(ctx, msg, big.NewInt(0))
}

type Erc20Contract struct {
	baseContract
}

func newErc20Contract(address common.Address) *Erc20Contract {
	return &Erc20Contract{
		baseContract{
			Address: address,
			Abi:     erc20Abi,
		},
	}
}

// Approve 把 allowance 设置为 amount
func (c *Erc20Contract) Approve(ctx context.Context, tx *Transactor, spender common.Address, amount *big.Int) (common.Hash, error) {
	return c.transact(ctx, tx, methodApprove, spender, amount)
}

func (c *Erc20Contract) Allowance(ctx context.Context, backend Backend, owner, spender common.Address) (*big.Int, error) {
	resp := big.NewInt(0)
	err := c.call(ctx, backend, &resp, methodAllowance, owner, spender)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Erc20Contract) BalanceOf(ctx context.Context, backend Backend, account common.Address) (*big.Int, error) {
	resp := big.NewInt(0)
	err := c.call(ctx, backend, &resp, methodBalanceOf, account)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Erc20Contract) Decimals(ctx context.Context, backend Backend) (uint8, error) {
	var resp uint8
	err := c.call(ctx, backend, &resp, methodDecimals)
	return resp, err
}

type UniswapV3FactoryContract struct {
	baseContract
}

func newUniswapV3FactoryContract(address common.Address) *UniswapV3FactoryContract {
	return &UniswapV3FactoryContract{
		baseContract{
			Address: address,
			Abi:     uniswapFactoryAbi,
		},
	}
}

// GetPool 不存在时返回 0 地址
func (c *UniswapV3FactoryContract) GetPool(ctx context.Context, backend Backend, tokenA, tokenB common.Address, feeTier uint32) (common.Address, error) {
	var pool common.Address
	err := c.call(ctx, backend, &pool, methodGetPool, tokenA, tokenB, new(big.Int).SetUint64(uint64(feeTier)))
	return pool, err
}

type UniswapV3PoolContract struct {
	baseContract
}

func newUniswapV3PoolContract(address common.Address) *UniswapV3PoolContract {
	return &UniswapV3PoolContract{
		baseContract{
			Address: address,
			Abi:     uniswapPoolAbi,
		},
	}
}

func (c *UniswapV3PoolContract) Fee(ctx context.Context, backend Backend) (*big.Int, error) {
	resp := big.NewInt(0)
	err := c.call(ctx, backend, &resp, methodFee)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

type QuoterContract struct {
	baseContract
}

func newQuoterContract(address common.Address) *QuoterContract {
	return &QuoterContract{
		baseContract{
			Address: address,
			Abi:     quoterAbi,
		},
	}
}

// QuoteExactInputSingle quoter 是 nonpayable 方法，通过 eth_call 模拟执行得到报价
func (c *QuoterContract) QuoteExactInputSingle(ctx context.Context, backend Backend, tokenIn, tokenOut common.Address, fee, amountIn *big.Int) (*big.Int, error) {
	resp := big.NewInt(0)
	err := c.call(ctx, backend, &resp, methodQuoteExactInputSingle, tokenIn, tokenOut, fee, amountIn, big.NewInt(0))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

type SwapRouterContract struct {
	baseContract
}

func newSwapRouterContract(address common.Address) *SwapRouterContract {
	return &SwapRouterContract{
		baseContract{
			Address: address,
			Abi:     swapRouterAbi,
		},
	}
}

func (c *SwapRouterContract) ExactInputSingle(ctx context.Context, tx *Transactor, params ExactInputSingleParams) (common.Hash, error) {
	return c.transact(ctx, tx, methodExactInputSingle, params)
}

type LendingPoolContract struct {
	baseContract
	method string
}

// newLendingPoolContract method: aave v2 使用 deposit，aave v3 使用 supply，参数相同
func newLendingPoolContract(address common.Address, method string) *LendingPoolContract {
	return &LendingPoolContract{
		baseContract: baseContract{
			Address: address,
			Abi:     lendingPoolAbi,
		},
		method: method,
	}
}

func (c *LendingPoolContract) Deposit(ctx context.Context, tx *Transactor, params DepositParams) (common.Hash, error) {
	return c.transact(ctx, tx, c.method, params.Asset, params.Amount, params.OnBehalfOf, params.ReferralCode)
}

func packInput(pabi *abi.ABI, from, toContract common.Address, methodName string, args ...interface{}) (ethereum.CallMsg, error) {
	inputParams, err := pabi.Pack(methodName, args...)
	if err != nil {
		return ethereum.CallMsg{}, err
	}
	return ethereum.CallMsg{From: from, To: &toContract, Data: inputParams}, nil
}

func unpackOutput(out interface{}, pabi *abi.ABI, methodName string, resData []byte) error {
	method, ok := pabi.Methods[methodName]
	if !ok {
		return errors.New("not found method:" + methodName)
	}
	a, err := method.Outputs.Unpack(resData)
	if err != nil {
		return err
	}
	return method.Outputs.Copy(out, a)
}
