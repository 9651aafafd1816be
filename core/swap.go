package core

import (
	"context"
	"fmt"
	"math/big"
	"swap-deposit-example/display"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// RunOptions 命令行开关
type RunOptions struct {
	SkipSwap      bool
	SkipDeposit   bool
	DepositAmount string // 为空时使用 deposit.amount
}

// Runner 按顺序执行 swap USDC -> LINK 与 deposit LINK -> lending pool
// 每一步都等上一笔交易上链之后才开始
type Runner struct {
	config  Config
	backend Backend
	tx      *Transactor

	usdc Token
	link Token

	factory *UniswapV3FactoryContract
	router  *SwapRouterContract
	quoter  *QuoterContract // 可能为 nil
	lending *LendingPoolContract
}

func NewRunner(config Config, backend Backend, signer Signer) *Runner {
	r := &Runner{
		config:  config,
		backend: backend,
		tx:      NewTransactor(backend, signer, config.Gas, config.Receipt),
		usdc:    config.Tokens.Usdc.Token(),
		link:    config.Tokens.Link.Token(),
		factory: newUniswapV3FactoryContract(common.HexToAddress(config.Contracts.UniswapFactory)),
		router:  newSwapRouterContract(common.HexToAddress(config.Contracts.SwapRouter)),
		lending: newLendingPoolContract(common.HexToAddress(config.Contracts.LendingPool), config.Contracts.LendingMethod),
	}
	if config.Contracts.Quoter != "" {
		r.quoter = newQuoterContract(common.HexToAddress(config.Contracts.Quoter))
	}
	return r
}

func (r *Runner) Account() common.Address {
	return r.tx.From()
}

// Run swap 完成之后再 deposit
// deposit 数量在发送任何交易之前解析，格式错误时不会动用资金
func (r *Runner) Run(ctx context.Context, opts RunOptions) error {
	var depositAmount *big.Int
	if !opts.SkipDeposit {
		amountStr := r.config.Deposit.Amount
		if opts.DepositAmount != "" {
			amountStr = opts.DepositAmount
		}
		amount, err := ParseUnits(amountStr, r.link.Decimals)
		if err != nil {
			return fmt.Errorf("deposit amount: %w", err)
		}
		depositAmount = amount
	}

	if err := r.CheckNetwork(ctx); err != nil {
		return err
	}
	if err := r.ReportBalances(ctx); err != nil {
		return err
	}

	if !opts.SkipSwap {
		if _, err := r.SwapTokens(ctx); err != nil {
			return fmt.Errorf("swap %s -> %s: %w", r.usdc.Symbol, r.link.Symbol, err)
		}
		display.Success("Swap complete: %s -> %s", r.usdc.Symbol, r.link.Symbol)
	}

	if !opts.SkipDeposit {
		if _, err := r.Deposit(ctx, depositAmount); err != nil {
			return fmt.Errorf("deposit %s: %w", r.link.Symbol, err)
		}
		display.Success("Deposit complete: %s -> lending pool", r.link.Symbol)
	}

	return r.ReportBalances(ctx)
}

// CheckNetwork 校验 chain id 与 token 精度，配置错误时尽早失败
func (r *Runner) CheckNetwork(ctx context.Context) error {
	chainId, err := r.tx.ChainId(ctx)
	if err != nil {
		return err
	}
	if want := r.config.Network.ChainId; want != 0 && chainId.Cmp(big.NewInt(want)) != 0 {
		return fmt.Errorf("chain id mismatch: rpc %s, config %d", chainId, want)
	}
	for _, token := range []Token{r.usdc, r.link} {
		decimals, err := newErc20Contract(token.Address).Decimals(ctx, r.backend)
		if err != nil {
			return fmt.Errorf("read %s decimals: %w", token.Symbol, err)
		}
		if int32(decimals) != token.Decimals {
			return fmt.Errorf("%s decimals mismatch: chain %d, config %d", token.Symbol, decimals, token.Decimals)
		}
	}
	display.PrintfWithTime("network %s (chain id %s), account %s\n", r.config.Network.Name, chainId, r.Account().Hex())
	return nil
}

// Approve 授权 spender 使用 amount 数量的 token，等待交易上链
func (r *Runner) Approve(ctx context.Context, token Token, spender common.Address, amount *big.Int) error {
	txHash, err := newErc20Contract(token.Address).Approve(ctx, r.tx, spender, amount)
	if err != nil {
		return fmt.Errorf("approve %s: %w", token.Symbol, err)
	}

	display.Title("approve to token")
	display.Field("token", fmt.Sprintf("%s %s", token.Symbol, token.Address.Hex()))
	display.Field("to", spender.Hex())
	display.Field("amount", amount)
	display.Field("hash", txHash.Hex())

	if _, err = r.tx.WaitMined(ctx, txHash); err != nil {
		return fmt.Errorf("approve %s: %w", token.Symbol, err)
	}

	// 上链之后 allowance 应与授权数量一致
	allowance, err := newErc20Contract(token.Address).Allowance(ctx, r.backend, r.Account(), spender)
	if err != nil {
		return fmt.Errorf("allowance of %s: %w", token.Symbol, err)
	}
	display.Field("allowance", allowance)
	if allowance.Cmp(amount) != 0 {
		return fmt.Errorf("approve %s: %w: allowance %s, want %s", token.Symbol, ErrAllowanceMismatch, allowance, amount)
	}
	return nil
}

// SwapTokens 用 swap.amount_in 数量的 USDC 换 LINK
func (r *Runner) SwapTokens(ctx context.Context) (*types.Receipt, error) {
	amountIn, err := ParseUnits(r.config.Swap.AmountIn, r.usdc.Decimals)
	if err != nil {
		return nil, err
	}
	if err := r.Approve(ctx, r.usdc, r.router.Address, amountIn); err != nil {
		return nil, err
	}

	fee, err := r.poolFee(ctx, r.usdc, r.link)
	if err != nil {
		return nil, err
	}
	minOut, err := r.amountOutMinimum(ctx, fee, amountIn)
	if err != nil {
		return nil, err
	}

	params := NewExactInputSingleParams(r.usdc, r.link, fee, r.Account(), amountIn, minOut)
	params.print()

	txHash, err := r.router.ExactInputSingle(ctx, r.tx, params)
	if err != nil {
		return nil, err
	}
	display.PrintfWithTime("swap txHash: %s\n", txHash.Hex())
	return r.tx.WaitMined(ctx, txHash)
}

// poolFee 通过 factory 找到 pool，并从 pool 读取 fee
func (r *Runner) poolFee(ctx context.Context, tokenIn, tokenOut Token) (*big.Int, error) {
	feeTier := r.config.Swap.FeeTier
	poolAddress, err := r.factory.GetPool(ctx, r.backend, tokenIn.Address, tokenOut.Address, feeTier)
	if err != nil {
		return nil, err
	}
	if poolAddress == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s/%s fee %d", ErrPoolNotFound, tokenIn.Symbol, tokenOut.Symbol, feeTier)
	}
	fee, err := newUniswapV3PoolContract(poolAddress).Fee(ctx, r.backend)
	if err != nil {
		return nil, err
	}
	display.PrintfWithTime("pool %s fee %s\n", poolAddress.Hex(), fee)
	return fee, nil
}

// amountOutMinimum 配置了 quoter 时按报价与滑点计算，否则使用 swap.amount_out_minimum
func (r *Runner) amountOutMinimum(ctx context.Context, fee, amountIn *big.Int) (*big.Int, error) {
	if r.quoter != nil {
		quote, err := r.quoter.QuoteExactInputSingle(ctx, r.backend, r.usdc.Address, r.link.Address, fee, amountIn)
		if err != nil {
			return nil, fmt.Errorf("quote: %w", err)
		}
		minOut := applySlippage(quote, r.config.Swap.SlippageBps)
		display.PrintfWithTime("quote %s %s -> %s %s, min out %s (slippage %d bps)\n",
			FormatUnits(amountIn, r.usdc.Decimals), r.usdc.Symbol,
			FormatUnits(quote, r.link.Decimals), r.link.Symbol,
			FormatUnits(minOut, r.link.Decimals), r.config.Swap.SlippageBps)
		return minOut, nil
	}

	minOut, err := ParseUnits(r.config.Swap.AmountOutMinimum, r.link.Decimals)
	if err != nil {
		return nil, err
	}
	if minOut.Sign() == 0 {
		display.Warn("amountOutMinimum is 0, swap has no slippage protection; set contracts.quoter or swap.amount_out_minimum")
	}
	return minOut, nil
}

// Deposit 授权 lending pool 后存入 amount 数量的 LINK
func (r *Runner) Deposit(ctx context.Context, amount *big.Int) (*types.Receipt, error) {
	if err := r.Approve(ctx, r.link, r.lending.Address, amount); err != nil {
		return nil, err
	}

	params := DepositParams{
		Asset:        r.link.Address,
		Amount:       amount,
		OnBehalfOf:   r.Account(),
		ReferralCode: r.config.Deposit.ReferralCode,
	}
	params.print(r.lending.method)

	txHash, err := r.lending.Deposit(ctx, r.tx, params)
	if err != nil {
		return nil, err
	}
	display.PrintfWithTime("%s txHash: %s\n", r.lending.method, txHash.Hex())
	return r.tx.WaitMined(ctx, txHash)
}

// ReportBalances 输出当前账户的 USDC / LINK 余额
func (r *Runner) ReportBalances(ctx context.Context) error {
	display.Title("balances of " + r.Account().Hex())
	for _, token := range []Token{r.usdc, r.link} {
		balance, err := newErc20Contract(token.Address).BalanceOf(ctx, r.backend, r.Account())
		if err != nil {
			return fmt.Errorf("balance of %s: %w", token.Symbol, err)
		}
		display.Field(token.Symbol, FormatUnits(balance, token.Decimals))
	}
	return nil
}
