package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"swap-deposit-example/display"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Transactor 构造交易 (nonce, gas, fee)，交给 signer 签名发送，并等待回执
type Transactor struct {
	backend Backend
	signer  Signer
	gas     GasConfig
	receipt ReceiptConfig

	chainIdOnce sync.Once
	chainId     *big.Int
	chainIdErr  error
}

func NewTransactor(backend Backend, signer Signer, gas GasConfig, receipt ReceiptConfig) *Transactor {
	return &Transactor{
		backend: backend,
		signer:  signer,
		gas:     gas,
		receipt: receipt,
	}
}

func (t *Transactor) From() common.Address {
	return t.signer.Address()
}

func (t *Transactor) ChainId(ctx context.Context) (*big.Int, error) {
	t.chainIdOnce.Do(func() {
		t.chainId, t.chainIdErr = t.backend.ChainID(ctx)
	})
	return t.chainId, t.chainIdErr
}

// Send 发送交易，不等待上链
func (t *Transactor) Send(ctx context.Context, msg ethereum.CallMsg, value *big.Int) (common.Hash, error) {
	chainId, err := t.ChainId(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	rawTx, err := t.createRawTx(ctx, chainId, msg, value)
	if err != nil {
		return common.Hash{}, err
	}
	txHash, err := t.signer.SignAndSend(ctx, chainId, rawTx)
	if err != nil {
		return common.Hash{}, err
	}
	display.Logger().Debugw("tx sent",
		"hash", txHash.Hex(),
		"to", msg.To.Hex(),
		"nonce", rawTx.Nonce(),
		"gas", rawTx.Gas(),
		"gasFeeCap", rawTx.GasFeeCap(),
		"gasTipCap", rawTx.GasTipCap())
	return txHash, nil
}

// createRawTx 获取 nonce, 估算 gas, 计算 gas fee 构造未签名交易
// 节点支持 EIP-1559 时构造 DynamicFeeTx，否则构造 LegacyTx
func (t *Transactor) createRawTx(ctx context.Context, chainId *big.Int, msg ethereum.CallMsg, value *big.Int) (*types.Transaction, error) {
	from := t.signer.Address()
	nonce, err := t.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, err
	}
	msg.From = from
	msg.Value = value
	estimateGas, err := t.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gasLimit := mulRateUint64(estimateGas, t.gas.LimitMultiplier)

	header, err := t.backend.HeaderByNumber(ctx, nil)
	if err != nil || header.BaseFee == nil {
		gasPrice, err := t.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, err
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       msg.To,
			Value:    value,
			Gas:      gasLimit,
			GasPrice: mulRate(gasPrice, t.gas.MaxFeeRate),
			Data:     msg.Data,
		}), nil
	}

	// MaxPriorityFee = SuggestPriorityFee * priorityRate
	// MaxFee = (MaxPriorityFee + BaseFee) * maxFeeRate
	priorityFee, err := t.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, err
	}
	maxPriorityFee := mulRate(priorityFee, t.gas.PriorityRate)
	maxFee := mulRate(new(big.Int).Add(maxPriorityFee, header.BaseFee), t.gas.MaxFeeRate)

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainId,
		Nonce:     nonce,
		To:        msg.To,
		Value:     value,
		Gas:       gasLimit,
		GasFeeCap: maxFee,
		GasTipCap: maxPriorityFee,
		Data:      msg.Data,
	}), nil
}

// WaitMined 轮询回执直到交易上链，status 为 0 时返回 ErrTxFailed
func (t *Transactor) WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if timeout := t.receipt.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	display.Pending("wait tx %s", txHash.Hex())
	ticker := time.NewTicker(t.receipt.PollInterval())
	defer ticker.Stop()

	for {
		receipt, err := t.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				display.Fail("tx failed %s", txHash.Hex())
				return receipt, fmt.Errorf("%w: %s", ErrTxFailed, txHash.Hex())
			}
			display.Success("tx success %s (block %v, gas used %d)", txHash.Hex(), receipt.BlockNumber, receipt.GasUsed)
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait tx %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
