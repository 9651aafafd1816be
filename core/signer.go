package core

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/coming-chat/wallet-SDK/core/eth"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer 对交易签名并广播，返回 tx hash
type Signer interface {
	Address() common.Address
	SignAndSend(ctx context.Context, chainId *big.Int, tx *types.Transaction) (common.Hash, error)
}

// NewSigner 按配置创建 signer
// 私钥优先取 PRIVATE_KEY，没有时用 MNEMONIC 派生
func NewSigner(config Config, backend Backend) (Signer, error) {
	privateKeyHex := config.PrivateKey
	if privateKeyHex == "" {
		var err error
		privateKeyHex, err = privateKeyFromMnemonic(config.Mnemonic)
		if err != nil {
			return nil, err
		}
	}

	switch config.Signer {
	case SignerKey:
		return NewKeySigner(privateKeyHex, backend)
	case SignerWallet:
		return NewWalletSigner(config.Network.Rpc, privateKeyHex)
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportSigner, config.Signer)
	}
}

func privateKeyFromMnemonic(words string) (string, error) {
	if words == "" {
		return "", errMissingKey
	}
	account, err := eth.NewAccountWithMnemonic(words)
	if err != nil {
		return "", fmt.Errorf("load account from mnemonic: %w", err)
	}
	return account.PrivateKeyHex()
}

func parsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// KeySigner 本地私钥签名，通过 backend 广播
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	backend Backend
}

func NewKeySigner(privateKeyHex string, backend Backend) (*KeySigner, error) {
	key, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		backend: backend,
	}, nil
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

func (s *KeySigner) SignAndSend(ctx context.Context, chainId *big.Int, tx *types.Transaction) (common.Hash, error) {
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainId), s.key)
	if err != nil {
		return common.Hash{}, err
	}
	if err := s.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, err
	}
	return signedTx.Hash(), nil
}

// WalletSigner 交易 marshalBinary 之后交给 wallet-sdk 处理签名 + 发送
type WalletSigner struct {
	rpc           string
	privateKeyHex string
	address       common.Address
}

func NewWalletSigner(rpc string, privateKeyHex string) (*WalletSigner, error) {
	key, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return &WalletSigner{
		rpc:           rpc,
		privateKeyHex: "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
		address:       crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (s *WalletSigner) Address() common.Address {
	return s.address
}

// SignAndSend wallet-sdk 自己从 rpc 获取 chain id，这里的 chainId 只用于构造交易
// wallet-sdk 的调用不接受 ctx，签名和广播前检查 ctx，已经开始的广播无法中断
func (s *WalletSigner) SignAndSend(ctx context.Context, _ *big.Int, tx *types.Transaction) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	rawBytes, err := tx.MarshalBinary()
	if err != nil {
		return common.Hash{}, err
	}
	wallet := eth.NewChainWithRpc(s.rpc)
	ethTx, err := eth.NewTransactionFromHex(hex.EncodeToString(rawBytes))
	if err != nil {
		return common.Hash{}, err
	}
	signedTx, err := wallet.SignTransaction(s.privateKeyHex, ethTx)
	if err != nil {
		return common.Hash{}, err
	}
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	txHash, err := wallet.SendRawTransaction(signedTx.Value)
	if err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash(txHash), nil
}
