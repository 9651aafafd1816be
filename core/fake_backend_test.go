package core

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	testUsdc    = common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
	testLink    = common.HexToAddress("0x779877A7B0D9E8603169DdbD7836e478b4624789")
	testFactory = common.HexToAddress("0x0227628f3F023bb0B980b67D528571c95c6DaC1c")
	testPool    = common.HexToAddress("0x00000000000000000000000000000000000a0001")
	testRouter  = common.HexToAddress("0x3bFA4769FB09eefC5a80d6E87c3B9C650f7Ae48E")
	testQuoter  = common.HexToAddress("0x00000000000000000000000000000000000a0002")
	testLending = common.HexToAddress("0x00000000000000000000000000000000000a0003")
)

type fakeTx struct {
	tx     *types.Transaction
	method string
	status uint64
	polls  int
	block  uint64
}

type allowanceKey struct {
	token, owner, spender common.Address
}

// fakeChain 内存中的链，按 abi 解码 calldata 并维护余额 / 授权 / 存款
type fakeChain struct {
	mu sync.Mutex

	chainId  *big.Int
	baseFee  *big.Int // nil 表示不支持 EIP-1559
	tipCap   *big.Int
	gasPrice *big.Int

	feeTier  uint32
	poolFee  *big.Int
	linkRate *big.Int // 1 个 USDC 最小单位换多少个 LINK 最小单位
	decimals map[common.Address]uint8

	balances   map[common.Address]map[common.Address]*big.Int // token -> owner -> amount
	allowances map[allowanceKey]*big.Int
	deposits   map[common.Address]*big.Int // onBehalfOf -> LINK
	nonces     map[common.Address]uint64

	txs          map[common.Hash]*fakeTx
	pendingPolls int // 回执在查询多少次之后可用
	events       []string
	sent         []*types.Transaction
	block        uint64

	sendErr     error
	estimateErr error
	// approve 交易成功但不修改 allowance
	ignoreApprove bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		chainId:  big.NewInt(11155111),
		baseFee:  big.NewInt(1_000_000_000),
		tipCap:   big.NewInt(2_000_000_000),
		gasPrice: big.NewInt(3_000_000_000),
		feeTier:  3000,
		poolFee:  big.NewInt(3000),
		linkRate: big.NewInt(500_000_000_000), // 1 USDC -> 0.5 LINK
		decimals: map[common.Address]uint8{testUsdc: 6, testLink: 18},
		balances: map[common.Address]map[common.Address]*big.Int{
			testUsdc: {},
			testLink: {},
		},
		allowances:   map[allowanceKey]*big.Int{},
		deposits:     map[common.Address]*big.Int{},
		nonces:       map[common.Address]uint64{},
		txs:          map[common.Hash]*fakeTx{},
		pendingPolls: 1,
		block:        100,
	}
}

func (f *fakeChain) seed(token, owner common.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[token][owner] = new(big.Int).Set(amount)
}

func (f *fakeChain) balance(token, owner common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balanceLocked(token, owner)
}

func (f *fakeChain) balanceLocked(token, owner common.Address) *big.Int {
	if b, ok := f.balances[token][owner]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

func (f *fakeChain) allowance(token, owner, spender common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allowanceLocked(token, owner, spender)
}

func (f *fakeChain) allowanceLocked(token, owner, spender common.Address) *big.Int {
	if a, ok := f.allowances[allowanceKey{token, owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return big.NewInt(0)
}

func (f *fakeChain) deposit(owner common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.deposits[owner]; ok {
		return new(big.Int).Set(d)
	}
	return big.NewInt(0)
}

func (f *fakeChain) eventLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakeChain) sentTxs() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

func abiFor(to common.Address) *abi.ABI {
	switch to {
	case testUsdc, testLink:
		return erc20Abi
	case testFactory:
		return uniswapFactoryAbi
	case testPool:
		return uniswapPoolAbi
	case testQuoter:
		return quoterAbi
	case testRouter:
		return swapRouterAbi
	case testLending:
		return lendingPoolAbi
	}
	return nil
}

func decodeCall(to *common.Address, data []byte) (*abi.Method, []interface{}, error) {
	if to == nil {
		return nil, nil, errors.New("contract creation not supported")
	}
	contractAbi := abiFor(*to)
	if contractAbi == nil || len(data) < 4 {
		return nil, nil, fmt.Errorf("unknown contract %s", to.Hex())
	}
	method, err := contractAbi.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

func (f *fakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.chainId), nil
}

func (f *fakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	method, args, err := decodeCall(msg.To, msg.Data)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out interface{}
	switch method.Name {
	case methodBalanceOf:
		out = f.balanceLocked(*msg.To, args[0].(common.Address))
	case methodAllowance:
		out = f.allowanceLocked(*msg.To, args[0].(common.Address), args[1].(common.Address))
	case methodDecimals:
		out = f.decimals[*msg.To]
	case methodGetPool:
		a, b := args[0].(common.Address), args[1].(common.Address)
		fee := args[2].(*big.Int)
		pair := (a == testUsdc && b == testLink) || (a == testLink && b == testUsdc)
		if pair && fee.Cmp(new(big.Int).SetUint64(uint64(f.feeTier))) == 0 {
			out = testPool
		} else {
			out = common.Address{}
		}
	case methodFee:
		out = new(big.Int).Set(f.poolFee)
	case methodQuoteExactInputSingle:
		out = new(big.Int).Mul(args[3].(*big.Int), f.linkRate)
	default:
		return nil, fmt.Errorf("unexpected call %s", method.Name)
	}
	return method.Outputs.Pack(out)
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return 100000, nil
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.tipCap), nil
}

func (f *fakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	header := &types.Header{Number: new(big.Int).SetUint64(f.block)}
	if f.baseFee != nil {
		header.BaseFee = new(big.Int).Set(f.baseFee)
	}
	return header, nil
}

// SendTransaction 立即执行交易，回执在 pendingPolls 次查询后才可见
func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	from, err := types.Sender(types.LatestSignerForChainID(f.chainId), tx)
	if err != nil {
		return err
	}
	method, args, err := decodeCall(tx.To(), tx.Data())
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if tx.Nonce() != f.nonces[from] {
		return fmt.Errorf("nonce too low: have %d, want %d", tx.Nonce(), f.nonces[from])
	}
	f.nonces[from]++
	f.block++

	status := types.ReceiptStatusSuccessful
	if err := f.execute(from, *tx.To(), method.Name, args); err != nil {
		status = types.ReceiptStatusFailed
	}

	f.txs[tx.Hash()] = &fakeTx{tx: tx, method: method.Name, status: status, block: f.block}
	f.sent = append(f.sent, tx)
	f.events = append(f.events, "send "+method.Name)
	return nil
}

func (f *fakeChain) execute(from, to common.Address, method string, args []interface{}) error {
	switch method {
	case methodApprove:
		if f.ignoreApprove {
			return nil
		}
		f.allowances[allowanceKey{to, from, args[0].(common.Address)}] = new(big.Int).Set(args[1].(*big.Int))
		return nil
	case methodExactInputSingle:
		params := *abi.ConvertType(args[0], new(ExactInputSingleParams)).(*ExactInputSingleParams)
		if params.TokenIn != testUsdc || params.TokenOut != testLink || params.Fee.Cmp(f.poolFee) != 0 {
			return errors.New("no pool")
		}
		amountOut := new(big.Int).Mul(params.AmountIn, f.linkRate)
		if amountOut.Cmp(params.AmountOutMinimum) < 0 {
			return errors.New("Too little received")
		}
		if err := f.spend(params.TokenIn, from, to, params.AmountIn); err != nil {
			return err
		}
		f.balances[params.TokenOut][params.Recipient] = new(big.Int).Add(f.balanceLocked(params.TokenOut, params.Recipient), amountOut)
		return nil
	case LendingMethodDeposit, LendingMethodSupply:
		asset, amount, onBehalfOf := args[0].(common.Address), args[1].(*big.Int), args[2].(common.Address)
		if err := f.spend(asset, from, to, amount); err != nil {
			return err
		}
		d, ok := f.deposits[onBehalfOf]
		if !ok {
			d = big.NewInt(0)
		}
		f.deposits[onBehalfOf] = new(big.Int).Add(d, amount)
		return nil
	}
	return fmt.Errorf("unexpected tx %s", method)
}

// spend spender 从 owner 转走 amount，需要足够的授权和余额
func (f *fakeChain) spend(token, owner, spender common.Address, amount *big.Int) error {
	key := allowanceKey{token, owner, spender}
	allowance := f.allowanceLocked(token, owner, spender)
	if allowance.Cmp(amount) < 0 {
		return errors.New("insufficient allowance")
	}
	balance := f.balanceLocked(token, owner)
	if balance.Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	f.allowances[key] = allowance.Sub(allowance, amount)
	f.balances[token][owner] = balance.Sub(balance, amount)
	return nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ftx, ok := f.txs[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	if ftx.polls < f.pendingPolls {
		ftx.polls++
		return nil, ethereum.NotFound
	}
	if ftx.polls == f.pendingPolls {
		ftx.polls++
		f.events = append(f.events, "mined "+ftx.method)
	}
	return &types.Receipt{
		Status:      ftx.status,
		TxHash:      txHash,
		BlockNumber: new(big.Int).SetUint64(ftx.block),
		GasUsed:     50000,
	}, nil
}

var _ Backend = (*fakeChain)(nil)

func newTestKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}
