package core

import "errors"

var (
	errMissingRpc          = errors.New("missing rpc url, set RPC_URL or network.rpc")
	errMissingKey          = errors.New("missing wallet key, set PRIVATE_KEY or MNEMONIC")
	errUnsupportSigner     = errors.New("unsupported signer")
	errUnsupportLendMethod = errors.New("unsupported lending method")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrPoolNotFound  = errors.New("pool not found")
	ErrTxFailed      = errors.New("transaction failed")

	ErrAllowanceMismatch = errors.New("allowance mismatch")
)
