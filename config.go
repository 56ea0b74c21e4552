package wasmdeploy

import (
	"fmt"
	"os"
	"strings"

	"cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/crypto/hd"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides of config keys,
// e.g. WASMDEPLOY_GRPC_ENDPOINT.
const EnvPrefix = "WASMDEPLOY"

var configKeys = []string{
	"chain_id",
	"grpc_endpoint",
	"grpc_insecure",
	"bech32_prefix",
	"fee_denom",
	"gas_prices",
	"gas_adjustment",
	"hd_path",
	"mnemonic_env",
	"tx_timeout",
	"poll_interval",
	"min_balance",
}

// LoadConfig reads the chain config at path (YAML, JSON or TOML by
// extension), applies environment overrides and defaults, and validates it.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Bech32Prefix == "" {
		c.Bech32Prefix = DefaultBech32Prefix
	}
	if c.FeeDenom == "" {
		c.FeeDenom = DefaultFeeDenom
	}
	if c.GasPrices == "" {
		c.GasPrices = DefaultGasPrices
	}
	if c.GasAdjustment <= 0 {
		c.GasAdjustment = DefaultGasAdjustment
	}
	if c.HDPath == "" {
		c.HDPath = DefaultHDPath
	}
	if c.MnemonicEnv == "" {
		c.MnemonicEnv = DefaultMnemonicEnv
	}
	if c.TxTimeout <= 0 {
		c.TxTimeout = DefaultTxTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
}

// Validate checks that all required configuration is present and parseable.
func (c *Config) Validate() error {
	if c.ChainID == "" {
		return ErrMissingChainID
	}
	if c.GRPCEndpoint == "" {
		return ErrMissingGRPCEndpoint
	}
	if _, err := c.ParsedGasPrices(); err != nil {
		return err
	}
	if _, err := hd.NewParamsFromPath(c.HDPath); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidHDPath, c.HDPath, err)
	}
	if _, err := c.ParsedMinBalance(); err != nil {
		return err
	}
	return nil
}

// ParsedGasPrices returns GasPrices as decimal coins.
func (c *Config) ParsedGasPrices() (sdk.DecCoins, error) {
	prices, err := sdk.ParseDecCoins(c.GasPrices)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidGasPrices, c.GasPrices, err)
	}
	if prices.IsZero() {
		return nil, fmt.Errorf("%w: %q is zero", ErrInvalidGasPrices, c.GasPrices)
	}
	return prices, nil
}

// ParsedMinBalance returns MinBalance as an integer, zero when unset.
func (c *Config) ParsedMinBalance() (math.Int, error) {
	if c.MinBalance == "" {
		return math.ZeroInt(), nil
	}
	amt, ok := math.NewIntFromString(c.MinBalance)
	if !ok || amt.IsNegative() {
		return math.Int{}, fmt.Errorf("invalid min_balance %q", c.MinBalance)
	}
	return amt, nil
}

// MnemonicFromEnv reads the signing mnemonic from the environment variable
// named by cfg.MnemonicEnv.
func MnemonicFromEnv(cfg *Config) (string, error) {
	name := cfg.MnemonicEnv
	if name == "" {
		name = DefaultMnemonicEnv
	}
	mnemonic := strings.TrimSpace(os.Getenv(name))
	if mnemonic == "" {
		return "", fmt.Errorf("%w: set %s", ErrMissingMnemonic, name)
	}
	return mnemonic, nil
}
