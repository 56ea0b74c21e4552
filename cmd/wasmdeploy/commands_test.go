package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palomachain/wasmdeploy"
	"github.com/palomachain/wasmdeploy/plan"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// ============================================
// Test Helpers
// ============================================

// resetFlags resets global and command-local flags between tests.
func resetFlags(t *testing.T) {
	t.Helper()
	ResetFlags()
	require.NoError(t, planShowCmd.Flags().Set("yaml", "false"))
	skipPreflight = false
}

// run executes the CLI with args and returns its combined output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t)
	var buf bytes.Buffer
	SetOutput(&buf)
	err := ExecuteWithArgs(args)
	return buf.String(), err
}

func writeChainConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chain_id: paloma-testnet-15
grpc_endpoint: localhost:9090
grpc_insecure: true
`), 0o600))
	return path
}

// ============================================
// Root Command Tests
// ============================================

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantContain []string
	}{
		{
			name:        "basic version",
			args:        []string{"version"},
			wantContain: []string{"wasmdeploy"},
		},
		{
			name:        "verbose version",
			args:        []string{"--verbose", "version"},
			wantContain: []string{"wasmdeploy", "commit:", "built:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			for _, want := range tt.wantContain {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestRootCommand_Help(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)

	for _, want := range []string{
		"CosmWasm",
		"--config",
		"--report",
		"--plan",
		"--json",
		"--log-level",
		"--yes",
		"WASMDEPLOY_CONFIG",
		"MNEMONIC",
	} {
		assert.Contains(t, out, want)
	}
}

func TestCommandTree(t *testing.T) {
	want := map[string][]string{
		"wasmdeploy": {"version", "deploy", "upload <file.wasm>", "instantiate <code-id|name> <json|@file>", "execute <contract> <json|@file>", "status", "keys", "plan", "report"},
		"keys":       {"show"},
		"plan":       {"show", "validate"},
		"report":     {"show"},
	}

	uses := func(parent string) []string {
		cmd := rootCmd
		if parent != "wasmdeploy" {
			for _, c := range rootCmd.Commands() {
				if c.Use == parent {
					cmd = c
				}
			}
		}
		var out []string
		for _, c := range cmd.Commands() {
			out = append(out, c.Use)
		}
		return out
	}

	for parent, children := range want {
		got := uses(parent)
		for _, c := range children {
			assert.Contains(t, got, c, "%s should have %s", parent, c)
		}
	}
}

func TestUnknownLogLevel(t *testing.T) {
	_, err := run(t, "--log-level", "chatty", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

// ============================================
// Plan and Report Commands
// ============================================

func TestPlanValidate_Default(t *testing.T) {
	out, err := run(t, "plan", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "plan palomadex")
}

func TestPlanShow(t *testing.T) {
	out, err := run(t, "plan", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "upload-factory")
	assert.Contains(t, out, "create-pair-grain-dex")

	out, err = run(t, "--json", "--log-level", "error", "plan", "show")
	require.NoError(t, err)
	var p plan.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "palomadex", p.Name)
	assert.NotEmpty(t, p.Steps)
}

func TestPlanValidate_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
steps:
  - instantiate: {code: factory}
`), 0o644))

	_, err := run(t, "--plan", path, "plan", "validate")
	require.Error(t, err)
	assert.ErrorIs(t, err, plan.ErrInvalidPlan)
}

func TestPlanFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: from-env
steps:
  - upload: {contract: a, file: a.wasm}
`), 0o644))
	t.Setenv("WASMDEPLOY_PLAN", path)

	out, err := run(t, "plan", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "plan from-env with 1 steps")
}

func TestReportShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	_, err := run(t, "--report", path, "report", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no report")

	store, err := wasmdeploy.OpenReportStore(path)
	require.NoError(t, err)
	store.Begin("palomadex", "paloma-testnet-15", "paloma1sender")
	store.SetContract("factory", "paloma1factory")
	require.NoError(t, store.Sync())

	out, err := run(t, "--report", path, "report", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "paloma1factory")

	out, err = run(t, "--report", path, "--json", "--log-level", "error", "report", "show")
	require.NoError(t, err)
	var rep wasmdeploy.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "paloma1factory", rep.Contracts["factory"])
}

// ============================================
// Keys Command
// ============================================

func TestKeysShow(t *testing.T) {
	cfg := writeChainConfig(t)
	t.Setenv("MNEMONIC", testMnemonic)

	out, err := run(t, "--config", cfg, "keys", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "paloma1")
	assert.Contains(t, out, wasmdeploy.DefaultHDPath)

	out, err = run(t, "--config", cfg, "--json", "--log-level", "error", "keys", "show")
	require.NoError(t, err)
	var key KeyShowOutput
	require.NoError(t, json.Unmarshal([]byte(out), &key))
	assert.True(t, strings.HasPrefix(key.Address, "paloma1"))
	assert.NotEmpty(t, key.PubKey)
	assert.Equal(t, wasmdeploy.DefaultHDPath, key.HDPath)
}

func TestKeysShow_MissingMnemonic(t *testing.T) {
	cfg := writeChainConfig(t)
	t.Setenv("MNEMONIC", "")

	_, err := run(t, "--config", cfg, "keys", "show")
	assert.ErrorIs(t, err, wasmdeploy.ErrMissingMnemonic)
}

func TestKeysShow_ConfigFromEnv(t *testing.T) {
	t.Setenv("WASMDEPLOY_CONFIG", writeChainConfig(t))
	t.Setenv("MNEMONIC", testMnemonic)

	out, err := run(t, "keys", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "paloma1")
}

func TestKeysShow_MissingConfig(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "keys", "show")
	require.Error(t, err)
}

// ============================================
// Helpers
// ============================================

func TestGetPaths_Defaults(t *testing.T) {
	resetFlags(t)
	t.Setenv("WASMDEPLOY_CONFIG", "")
	t.Setenv("WASMDEPLOY_REPORT", "")
	t.Setenv("WASMDEPLOY_LOG_LEVEL", "")

	assert.Equal(t, DefaultConfigFile, getConfigPath())
	assert.Equal(t, DefaultReportFile, getReportPath())
	assert.Equal(t, DefaultLogLevel, getLogLevel())

	t.Setenv("WASMDEPLOY_REPORT", "env.json")
	assert.Equal(t, "env.json", getReportPath())

	reportFile = "flag.json"
	assert.Equal(t, "flag.json", getReportPath(), "flag wins over env")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&buf, "WARN", true)
	require.NoError(t, err)

	l.Info().Msg("hidden")
	l.Warn().Str("step", "upload-factory").Msg("shown")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"step":"upload-factory"`)

	_, err = newLogger(&buf, "loud", true)
	assert.Error(t, err)
}

func TestReadMessage(t *testing.T) {
	msg, err := readMessage(`{"ping":{}}`)
	require.NoError(t, err)
	assert.Equal(t, `{"ping":{}}`, string(msg))

	path := filepath.Join(t.TempDir(), "msg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"owner":"${sender}"}`), 0o644))
	msg, err = readMessage("@" + path)
	require.NoError(t, err)
	assert.Equal(t, `{"owner":"${sender}"}`, string(msg))

	_, err = readMessage("@" + filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestResolveCodeID(t *testing.T) {
	scope := plan.Scope{Codes: map[string]uint64{"factory": 5}}

	id, err := resolveCodeID("12", scope)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), id)

	id, err = resolveCodeID("factory", scope)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), id)

	_, err = resolveCodeID("router", scope)
	assert.ErrorIs(t, err, plan.ErrUnresolvedReference)
}

func TestParseCoins(t *testing.T) {
	coins, err := parseCoins("", plan.Scope{})
	require.NoError(t, err)
	assert.Nil(t, coins)

	coins, err = parseCoins("100ugrain", plan.Scope{})
	require.NoError(t, err)
	assert.Equal(t, "100ugrain", coins.String())

	_, err = parseCoins("free", plan.Scope{})
	assert.Error(t, err)
}

func TestTxOutput(t *testing.T) {
	out := txOutput(&wasmdeploy.TxResult{
		TxHash:  "AB",
		Height:  9,
		GasUsed: 1000,
		Events: []abci.Event{
			{Type: "message", Attributes: []abci.EventAttribute{{Key: "sender", Value: "paloma1sender"}}},
			{Type: wasmdeploy.EventTypeWasm, Attributes: []abci.EventAttribute{
				{Key: wasmdeploy.AttributeKeyContractAddress, Value: "paloma1factory"},
				{Key: "pair_contract_addr", Value: "paloma1pair"},
			}},
		},
	})
	assert.Equal(t, "AB", out.TxHash)
	assert.Equal(t, map[string]string{"pair_contract_addr": "paloma1pair"}, out.Attributes)

	empty := txOutput(&wasmdeploy.TxResult{TxHash: "CD"})
	assert.Nil(t, empty.Attributes)
}

func TestColorHelpers(t *testing.T) {
	for _, fn := range []func(string) string{colorRed, colorGreen, colorYellow, colorBold} {
		assert.Contains(t, fn("text"), "text")
		assert.Equal(t, "", strings.TrimSpace(stripANSI(fn(""))))
	}
}

func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\033':
			inEscape = true
		case inEscape && r == 'm':
			inEscape = false
		case !inEscape:
			b.WriteRune(r)
		}
	}
	return b.String()
}
