package connpool

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

type EvmConnectPool struct {
	*ConnectPool
}

// NewEvmConnectPool 初始化 evm 连接池，rawUrl 支持 http(s) 与 ws(s)
func NewEvmConnectPool(ctx context.Context, rawUrl string, maxConnect int) *EvmConnectPool {
	return &EvmConnectPool{
		ConnectPool: NewConnectPool(int32(maxConnect), func() (Closeable, error) {
			client, err := rpc.DialContext(ctx, rawUrl)
			if err != nil {
				return nil, err
			}
			return client, nil
		}),
	}
}

func (e *EvmConnectPool) Call(f func(*ethclient.Client, *rpc.Client) error) error {
	return e.ConnectPool.Call(func(closeable Closeable) error {
		client, ok := closeable.(*rpc.Client)
		if !ok {
			return ErrConnect
		}
		return f(ethclient.NewClient(client), client)
	})
}
