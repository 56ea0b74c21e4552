// Package wasmdeploy provides a CosmWasm deployment client for Cosmos SDK
// chains: it derives a signing key from a mnemonic, uploads and instantiates
// contracts, executes follow-up transactions and records the resulting code
// IDs and addresses in a JSON report.
package wasmdeploy

import (
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Defaults applied by LoadConfig when a field is left empty.
const (
	DefaultBech32Prefix  = "paloma"
	DefaultFeeDenom      = "ugrain"
	DefaultGasPrices     = "0.01ugrain"
	DefaultGasAdjustment = 1.3
	DefaultHDPath        = "m/44'/118'/0'/0/0"
	DefaultMnemonicEnv   = "MNEMONIC"
	DefaultTxTimeout     = 2 * time.Minute
	DefaultPollInterval  = 2 * time.Second
	DefaultReportVersion = 1
)

// Event types and attribute keys emitted by the wasm module.
const (
	EventTypeStoreCode   = "store_code"
	EventTypeInstantiate = "instantiate"
	EventTypeWasm        = "wasm"

	AttributeKeyCodeID          = "code_id"
	AttributeKeyContractAddress = "_contract_address"
)

// Config holds the chain connection settings read from disk.
type Config struct {
	ChainID       string        `mapstructure:"chain_id" json:"chain_id" yaml:"chain_id"`
	GRPCEndpoint  string        `mapstructure:"grpc_endpoint" json:"grpc_endpoint" yaml:"grpc_endpoint"`
	GRPCInsecure  bool          `mapstructure:"grpc_insecure" json:"grpc_insecure" yaml:"grpc_insecure"`
	Bech32Prefix  string        `mapstructure:"bech32_prefix" json:"bech32_prefix" yaml:"bech32_prefix"`
	FeeDenom      string        `mapstructure:"fee_denom" json:"fee_denom" yaml:"fee_denom"`
	GasPrices     string        `mapstructure:"gas_prices" json:"gas_prices" yaml:"gas_prices"`
	GasAdjustment float64       `mapstructure:"gas_adjustment" json:"gas_adjustment" yaml:"gas_adjustment"`
	HDPath        string        `mapstructure:"hd_path" json:"hd_path" yaml:"hd_path"`
	MnemonicEnv   string        `mapstructure:"mnemonic_env" json:"mnemonic_env" yaml:"mnemonic_env"`
	TxTimeout     time.Duration `mapstructure:"tx_timeout" json:"tx_timeout" yaml:"tx_timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval" json:"poll_interval" yaml:"poll_interval"`
	// MinBalance is the smallest fee-denom balance preflight accepts, in base units.
	MinBalance string `mapstructure:"min_balance" json:"min_balance" yaml:"min_balance"`
}

// TxResult is the outcome of a transaction that was included in a block.
type TxResult struct {
	TxHash    string       `json:"tx_hash"`
	Height    int64        `json:"height"`
	GasWanted int64        `json:"gas_wanted"`
	GasUsed   int64        `json:"gas_used"`
	Events    []abci.Event `json:"-"`

	// Set by Upload.
	CodeID uint64 `json:"code_id,omitempty"`
	// Set by Instantiate.
	ContractAddress string `json:"contract_address,omitempty"`
}

// InstantiateRequest describes a MsgInstantiateContract.
type InstantiateRequest struct {
	CodeID uint64
	Label  string
	Admin  string
	Msg    []byte
	Funds  sdk.Coins
}

// ExecuteRequest describes a MsgExecuteContract.
type ExecuteRequest struct {
	Contract string
	Msg      []byte
	Funds    sdk.Coins
}

// Step kinds recorded in the report.
const (
	StepKindUpload      = "upload"
	StepKindInstantiate = "instantiate"
	StepKindExecute     = "execute"
	StepKindCheckpoint  = "checkpoint"
)

// StepRecord is a completed step as persisted in the report.
type StepRecord struct {
	Kind        string    `json:"kind"`
	TxHash      string    `json:"tx_hash,omitempty"`
	Height      int64     `json:"height,omitempty"`
	GasUsed     int64     `json:"gas_used,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
	// Pending marks a transaction that was committed but whose captures
	// were not all found. A later run reads them back from TxHash.
	Pending bool `json:"pending,omitempty"`
}

// Report is the persisted deployment result.
type Report struct {
	Version   int                    `json:"version"`
	RunID     string                 `json:"run_id"`
	Plan      string                 `json:"plan,omitempty"`
	ChainID   string                 `json:"chain_id"`
	Sender    string                 `json:"sender"`
	StartedAt time.Time              `json:"started_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Codes     map[string]uint64      `json:"codes"`
	Contracts map[string]string      `json:"contracts"`
	Values    map[string]string      `json:"values"`
	Steps     map[string]*StepRecord `json:"steps"`
}
