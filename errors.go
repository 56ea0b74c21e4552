package wasmdeploy

import "errors"

// Sentinel errors
var (
	ErrMissingChainID      = errors.New("wasmdeploy: chain_id is required")
	ErrMissingGRPCEndpoint = errors.New("wasmdeploy: grpc_endpoint is required")
	ErrMissingMnemonic     = errors.New("wasmdeploy: mnemonic is required")
	ErrInvalidMnemonic     = errors.New("wasmdeploy: mnemonic is not valid bip39")
	ErrMissingReportPath   = errors.New("wasmdeploy: report path is required")
	ErrInvalidGasPrices    = errors.New("wasmdeploy: invalid gas prices")
	ErrInvalidHDPath       = errors.New("wasmdeploy: invalid hd path")

	ErrChainIDMismatch  = errors.New("wasmdeploy: chain id mismatch")
	ErrNodeUnavailable  = errors.New("wasmdeploy: node unavailable")
	ErrAccountNotFound  = errors.New("wasmdeploy: account not found on chain")
	ErrInsufficientFund = errors.New("wasmdeploy: insufficient balance")

	ErrInvalidWasm       = errors.New("wasmdeploy: not a wasm binary")
	ErrTxFailed          = errors.New("wasmdeploy: transaction failed")
	ErrTxTimeout         = errors.New("wasmdeploy: timed out waiting for transaction")
	ErrAttributeNotFound = errors.New("wasmdeploy: event attribute not found")

	ErrReportCorrupted = errors.New("wasmdeploy: report corrupted")
	ErrReportPersist   = errors.New("wasmdeploy: report persist failed")
)
