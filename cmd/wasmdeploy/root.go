package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/palomachain/wasmdeploy"
	"github.com/palomachain/wasmdeploy/plan"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Global flag variables
var (
	cfgFile    string
	reportFile string
	planFile   string
	logLevel   string
	jsonOut    bool
	assumeYes  bool
	verbose    bool
)

// Default values
const (
	DefaultConfigFile = "chain.yaml"
	DefaultReportFile = "deploy-report.json"
	DefaultLogLevel   = "info"
)

var env = viper.New()

// logger is configured by the root command before any subcommand runs.
var logger = zerolog.Nop()

// rootCmd is the base command for the CLI
var rootCmd *cobra.Command

// versionCmd prints version information
var versionCmd *cobra.Command

func init() {
	rootCmd = &cobra.Command{
		Use:   "wasmdeploy",
		Short: "wasmdeploy - CosmWasm contract deployment for Paloma",
		Long: `wasmdeploy uploads, instantiates and wires CosmWasm contracts on a
Cosmos SDK chain following a deployment plan, and records every code ID,
contract address and captured event value in a JSON report.

Runs are resumable: steps already recorded in the report are skipped.

Configuration (in order of priority):
  1. Command-line flags (--config, --report, --plan, --log-level)
  2. Environment variables (WASMDEPLOY_CONFIG, WASMDEPLOY_REPORT, WASMDEPLOY_PLAN, WASMDEPLOY_LOG_LEVEL)
  3. Defaults (chain.yaml, deploy-report.json, built-in palomadex plan)

The signing mnemonic is read from the environment variable named by
mnemonic_env in the chain config (MNEMONIC by default).`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogger,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print the version, commit hash, and build date of wasmdeploy",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wasmdeploy %s\n", Version)
			if verbose {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", Commit)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", BuildDate)
			}
		},
	}

	env.SetEnvPrefix(wasmdeploy.EnvPrefix)
	env.AutomaticEnv()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "chain config file (or WASMDEPLOY_CONFIG, default chain.yaml)")
	rootCmd.PersistentFlags().StringVar(&reportFile, "report", "", "deployment report file (or WASMDEPLOY_REPORT, default deploy-report.json)")
	rootCmd.PersistentFlags().StringVar(&planFile, "plan", "", "deployment plan file (or WASMDEPLOY_PLAN, default built-in palomadex plan)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (or WASMDEPLOY_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "confirm every checkpoint without prompting")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(instantiateCmd)
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(reportCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteWithArgs runs the root command with the provided arguments (for testing)
func ExecuteWithArgs(args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// SetOutput sets the output writer for the root command (for testing)
func SetOutput(w io.Writer) {
	rootCmd.SetOut(w)
	rootCmd.SetErr(w)
}

// ResetFlags resets all global flags to their defaults (for testing)
func ResetFlags() {
	cfgFile = ""
	reportFile = ""
	planFile = ""
	logLevel = ""
	jsonOut = false
	assumeYes = false
	verbose = false
	logger = zerolog.Nop()
}

// getConfigPath returns the chain config path from flags, env, or default.
func getConfigPath() string {
	return firstNonEmpty(cfgFile, env.GetString("config"), DefaultConfigFile)
}

// getReportPath returns the report path from flags, env, or default.
func getReportPath() string {
	return firstNonEmpty(reportFile, env.GetString("report"), DefaultReportFile)
}

// getLogLevel returns the log level from flags, env, or default.
func getLogLevel() string {
	return firstNonEmpty(logLevel, env.GetString("log_level"), DefaultLogLevel)
}

// getPlan loads the plan file from flags or env, or the built-in plan.
func getPlan() (*plan.Plan, error) {
	path := firstNonEmpty(planFile, env.GetString("plan"))
	if path == "" {
		return plan.Default()
	}
	return plan.Load(path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func setupLogger(cmd *cobra.Command, args []string) error {
	l, err := newLogger(cmd.ErrOrStderr(), getLogLevel(), jsonOut || color.NoColor)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// newLogger builds the process logger. Console output is used on a terminal,
// JSON lines otherwise.
func newLogger(w io.Writer, level string, jsonFormat bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q", level)
	}
	if !jsonFormat {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// loadSigner reads the chain config and derives the signing key.
func loadSigner() (*wasmdeploy.Config, *wasmdeploy.Signer, error) {
	cfg, err := wasmdeploy.LoadConfig(getConfigPath())
	if err != nil {
		return nil, nil, err
	}
	mnemonic, err := wasmdeploy.MnemonicFromEnv(cfg)
	if err != nil {
		return nil, nil, err
	}
	signer, err := wasmdeploy.NewSigner(cfg, mnemonic)
	if err != nil {
		return nil, nil, err
	}
	return cfg, signer, nil
}

// getClient connects to the configured node and verifies its chain ID.
func getClient(ctx context.Context) (*wasmdeploy.Client, error) {
	cfg, signer, err := loadSigner()
	if err != nil {
		return nil, err
	}
	return wasmdeploy.Dial(ctx, cfg, signer, logger)
}

// reportScope exposes the current report to ${...} placeholders in ad-hoc
// commands. A missing report yields an empty scope.
func reportScope(sender, chainID string) (plan.Scope, error) {
	store, err := wasmdeploy.OpenReportStore(getReportPath())
	if err != nil {
		return plan.Scope{}, err
	}
	rep := store.Report()
	return plan.Scope{
		Sender:    sender,
		ChainID:   chainID,
		Codes:     rep.Codes,
		Contracts: rep.Contracts,
		Values:    rep.Values,
	}, nil
}

// readMessage returns arg as a JSON message, reading it from a file when
// it starts with '@'.
func readMessage(arg string) ([]byte, error) {
	if strings.HasPrefix(arg, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return nil, fmt.Errorf("read message: %w", err)
		}
		return data, nil
	}
	return []byte(arg), nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// colorRed returns text in red color for terminal output.
func colorRed(s string) string {
	return color.New(color.FgRed).Sprint(s)
}

// colorGreen returns text in green color for terminal output.
func colorGreen(s string) string {
	return color.New(color.FgGreen).Sprint(s)
}

// colorYellow returns text in yellow color for terminal output.
func colorYellow(s string) string {
	return color.New(color.FgYellow).Sprint(s)
}

// colorBold returns text in bold for terminal output.
func colorBold(s string) string {
	return color.New(color.Bold).Sprint(s)
}
