package core

import (
	"context"
	"errors"
	"math/big"
	"net"
	"swap-deposit-example/connpool"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Backend 用到的节点接口，*ethclient.Client 直接满足
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Backend = (*ethclient.Client)(nil)
var _ Backend = (*PoolBackend)(nil)

// PoolBackend 每次调用从连接池取一个连接
type PoolBackend struct {
	pool *connpool.EvmConnectPool
}

func NewPoolBackend(ctx context.Context, rpcUrl string, maxConnect int) *PoolBackend {
	return &PoolBackend{
		pool: connpool.NewEvmConnectPool(ctx, rpcUrl, maxConnect),
	}
}

func (b *PoolBackend) Close() {
	b.pool.Close()
}

func (b *PoolBackend) call(f func(*ethclient.Client) error) error {
	return b.pool.Call(func(c *ethclient.Client, _ *rpc.Client) error {
		return markConnectError(f(c))
	})
}

// connectError 保留原始错误，同时 errors.Is(err, connpool.ErrConnect) 为 true
type connectError struct {
	err error
}

func (e *connectError) Error() string {
	return connpool.ErrConnect.Error() + ": " + e.err.Error()
}

func (e *connectError) Unwrap() error {
	return e.err
}

func (e *connectError) Is(target error) bool {
	return target == connpool.ErrConnect
}

// markConnectError 网络层错误标记为 ErrConnect，连接池会关闭该连接
func markConnectError(err error) error {
	var netErr net.Error
	if err != nil && errors.As(err, &netErr) {
		return &connectError{err: err}
	}
	return err
}

func (b *PoolBackend) ChainID(ctx context.Context) (id *big.Int, err error) {
	err = b.call(func(c *ethclient.Client) (e error) {
		id, e = c.ChainID(ctx)
		return
	})
	return
}

func (b *PoolBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) (res []byte, err error) {
	err = b.call(func(c *ethclient.Client) (e error) {
		res, e = c.CallContract(ctx, msg, blockNumber)
		return
	})
	return
}

func (b *PoolBackend) PendingNonceAt(ctx context.Context, account common.Address) (nonce uint64, err error) {
	err = b.call(func(c *ethclient.Client) (e error) {
		nonce, e = c.PendingNonceAt(ctx, account)
		return
	})
	return
}

func (b *PoolBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (gas uint64, err error) {
	err = b.call(func(c *ethclient.Client) (e error) {
		gas, e = c.EstimateGas(ctx, msg)
		return
	})
	return
}

func (b *PoolBackend) SuggestGasPrice(ctx context.Context) (price *big.Int, err error) {
	err = b.call(func(c *ethclient.Client) (e error) {
		price, e = c.SuggestGasPrice(ctx)
		return
	})
	return
}

func (b *PoolBackend) SuggestGasTipCap(ctx context.Context) (tip *big.Int, err error) {
	err = b.call(func(c *ethclient.Client) (e error) {
		tip, e = c.SuggestGasTipCap(ctx)
		return
	})
	return
}

func (b *PoolBackend) HeaderByNumber(ctx context.Context, number *big.Int) (header *types.Header, err error) {
	err = b.call(func(c *ethclient.Client) (e error) {
		header, e = c.HeaderByNumber(ctx, number)
		return
	})
	return
}

func (b *PoolBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return b.call(func(c *ethclient.Client) error {
		return c.SendTransaction(ctx, tx)
	})
}

func (b *PoolBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (receipt *types.Receipt, err error) {
	err = b.call(func(c *ethclient.Client) (e error) {
		receipt, e = c.TransactionReceipt(ctx, txHash)
		return
	})
	return
}
