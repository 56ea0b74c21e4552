package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAddress = mustBech32("paloma", make([]byte, 20))

func mustBech32(prefix string, addr []byte) string {
	s, err := bech32.ConvertAndEncode(prefix, addr)
	if err != nil {
		panic(err)
	}
	return s
}

type fakeNode struct {
	chainID    string
	height     int64
	balance    math.Int
	heightErr  error
	balanceErr error
}

func (f *fakeNode) ChainID(ctx context.Context) (string, error) { return f.chainID, nil }

func (f *fakeNode) Height(ctx context.Context) (int64, error) { return f.height, f.heightErr }

func (f *fakeNode) Balance(ctx context.Context, denom string) (math.Int, error) {
	return f.balance, f.balanceErr
}

func validRequest() *Request {
	return &Request{
		ChainID:         "paloma-testnet-15",
		DeployerAddress: testAddress,
		Denom:           "ugrain",
		MinBalance:      math.NewInt(1_000_000),
	}
}

func TestNewChecker(t *testing.T) {
	checker := NewChecker()
	assert.NotNil(t, checker)
	assert.Equal(t, DefaultTimeout, checker.timeout)
}

func TestChecker_WithTimeout(t *testing.T) {
	checker := NewChecker().WithTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, checker.timeout)
}

func TestChecker_ValidateRequest(t *testing.T) {
	checker := NewChecker()

	tests := []struct {
		name    string
		mutate  func(*Request)
		wantErr string
	}{
		{name: "valid request", mutate: func(*Request) {}},
		{name: "zero min balance", mutate: func(r *Request) { r.MinBalance = math.Int{} }},
		{name: "missing chain_id", mutate: func(r *Request) { r.ChainID = "" }, wantErr: "chain_id is required"},
		{name: "missing denom", mutate: func(r *Request) { r.Denom = "" }, wantErr: "denom is required"},
		{name: "missing deployer_address", mutate: func(r *Request) { r.DeployerAddress = "" }, wantErr: "deployer_address is required"},
		{name: "invalid deployer_address", mutate: func(r *Request) { r.DeployerAddress = "0x1234" }, wantErr: "not a valid bech32 address"},
		{name: "negative min balance", mutate: func(r *Request) { r.MinBalance = math.NewInt(-1) }, wantErr: "must not be negative"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(req)
			err := checker.validateRequest(req)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestChecker_RunChecks(t *testing.T) {
	tests := []struct {
		name       string
		node       *fakeNode
		wantOK     bool
		wantChecks map[CheckName]bool
	}{
		{
			name:   "all pass",
			node:   &fakeNode{chainID: "paloma-testnet-15", height: 100, balance: math.NewInt(5_000_000)},
			wantOK: true,
			wantChecks: map[CheckName]bool{
				CheckNodeReachable:   true,
				CheckChainIDMatch:    true,
				CheckDeployerBalance: true,
			},
		},
		{
			name:   "node down stops early",
			node:   &fakeNode{heightErr: errors.New("connection refused")},
			wantOK: false,
			wantChecks: map[CheckName]bool{
				CheckNodeReachable: false,
			},
		},
		{
			name:   "wrong chain",
			node:   &fakeNode{chainID: "paloma-mainnet", height: 100, balance: math.NewInt(5_000_000)},
			wantOK: false,
			wantChecks: map[CheckName]bool{
				CheckNodeReachable:   true,
				CheckChainIDMatch:    false,
				CheckDeployerBalance: true,
			},
		},
		{
			name:   "underfunded",
			node:   &fakeNode{chainID: "paloma-testnet-15", height: 100, balance: math.NewInt(10)},
			wantOK: false,
			wantChecks: map[CheckName]bool{
				CheckNodeReachable:   true,
				CheckChainIDMatch:    true,
				CheckDeployerBalance: false,
			},
		},
		{
			name:   "balance query fails",
			node:   &fakeNode{chainID: "paloma-testnet-15", height: 100, balanceErr: errors.New("account not found")},
			wantOK: false,
			wantChecks: map[CheckName]bool{
				CheckNodeReachable:   true,
				CheckChainIDMatch:    true,
				CheckDeployerBalance: false,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := NewChecker().RunChecks(context.Background(), tc.node, validRequest())
			require.NoError(t, err)
			assert.Equal(t, tc.wantOK, resp.OK)
			assert.Equal(t, testAddress, resp.DeployerAddress)

			got := make(map[CheckName]bool, len(resp.Checks))
			for _, c := range resp.Checks {
				got[c.Name] = c.Passed
				assert.NotEmpty(t, c.Message)
			}
			assert.Equal(t, tc.wantChecks, got)
		})
	}
}

func TestChecker_RunChecks_Details(t *testing.T) {
	node := &fakeNode{chainID: "paloma-testnet-15", height: 77, balance: math.NewInt(2_500_000)}
	resp, err := NewChecker().RunChecks(context.Background(), node, validRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(77), resp.Height)
	assert.Equal(t, "2500000ugrain", resp.CurrentBalance)
}

func TestChecker_RunChecks_InvalidRequest(t *testing.T) {
	req := validRequest()
	req.ChainID = ""
	_, err := NewChecker().RunChecks(context.Background(), &fakeNode{}, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request")
}

func TestChecker_Artifacts(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "factory.wasm")
	require.NoError(t, os.WriteFile(good, []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, 0o644))
	bad := filepath.Join(dir, "pair.wasm")
	require.NoError(t, os.WriteFile(bad, []byte("not wasm"), 0o644))

	node := &fakeNode{chainID: "paloma-testnet-15", height: 1, balance: math.NewInt(5_000_000)}

	req := validRequest()
	req.Artifacts = []string{good}
	resp, err := NewChecker().RunChecks(context.Background(), node, req)
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, CheckArtifacts, resp.Checks[0].Name)

	req.Artifacts = []string{good, bad, filepath.Join(dir, "missing.wasm")}
	resp, err = NewChecker().RunChecks(context.Background(), node, req)
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.False(t, resp.Checks[0].Passed)
	assert.Len(t, resp.Checks[0].Details["missing"], 2)
}
