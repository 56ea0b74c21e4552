package wasmdeploy

import (
	"context"
	"sync"
	"testing"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	p2p "github.com/cometbft/cometbft/proto/tendermint/p2p"
	"github.com/cosmos/cosmos-sdk/client/grpc/cmtservice"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	testMnemonic      = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	otherTestMnemonic = "zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo wrong"
	testChainID       = "paloma-testnet-15"
)

func testConfig() *Config {
	cfg := &Config{
		ChainID:      testChainID,
		GRPCEndpoint: "localhost:9090",
		GRPCInsecure: true,
		TxTimeout:    time.Second,
		PollInterval: 5 * time.Millisecond,
	}
	cfg.ApplyDefaults()
	return cfg
}

func testSigner(t *testing.T, cfg *Config) *Signer {
	t.Helper()
	s, err := NewSigner(cfg, testMnemonic)
	require.NoError(t, err)
	return s
}

// fakeNode implements the node info service.
type fakeNode struct {
	cmtservice.ServiceClient
	network string
	height  int64
	err     error
}

func (f *fakeNode) GetNodeInfo(ctx context.Context, in *cmtservice.GetNodeInfoRequest, opts ...grpc.CallOption) (*cmtservice.GetNodeInfoResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &cmtservice.GetNodeInfoResponse{DefaultNodeInfo: &p2p.DefaultNodeInfo{Network: f.network}}, nil
}

func (f *fakeNode) GetLatestBlock(ctx context.Context, in *cmtservice.GetLatestBlockRequest, opts ...grpc.CallOption) (*cmtservice.GetLatestBlockResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &cmtservice.GetLatestBlockResponse{SdkBlock: &cmtservice.Block{Header: cmtservice.Header{Height: f.height}}}, nil
}

// fakeAuth serves a single base account.
type fakeAuth struct {
	authtypes.QueryClient
	account  sdk.AccountI
	notFound bool
}

func (f *fakeAuth) Account(ctx context.Context, in *authtypes.QueryAccountRequest, opts ...grpc.CallOption) (*authtypes.QueryAccountResponse, error) {
	if f.notFound {
		return nil, status.Errorf(codes.NotFound, "account %s not found", in.Address)
	}
	anyAcc, err := codectypes.NewAnyWithValue(f.account)
	if err != nil {
		return nil, err
	}
	return &authtypes.QueryAccountResponse{Account: anyAcc}, nil
}

// fakeBank serves a fixed balance.
type fakeBank struct {
	banktypes.QueryClient
	balance *sdk.Coin
}

func (f *fakeBank) Balance(ctx context.Context, in *banktypes.QueryBalanceRequest, opts ...grpc.CallOption) (*banktypes.QueryBalanceResponse, error) {
	return &banktypes.QueryBalanceResponse{Balance: f.balance}, nil
}

// fakeTxService records broadcasts and returns scripted responses.
type fakeTxService struct {
	txtypes.ServiceClient

	mu          sync.Mutex
	gasUsed     uint64
	checkResp   *sdk.TxResponse
	deliverResp *sdk.TxResponse
	notFoundFor int
	getCalls    int
	broadcasts  [][]byte
	// onGet runs before every GetTx.
	onGet func()
}

func (f *fakeTxService) Simulate(ctx context.Context, in *txtypes.SimulateRequest, opts ...grpc.CallOption) (*txtypes.SimulateResponse, error) {
	return &txtypes.SimulateResponse{GasInfo: &sdk.GasInfo{GasUsed: f.gasUsed}}, nil
}

func (f *fakeTxService) BroadcastTx(ctx context.Context, in *txtypes.BroadcastTxRequest, opts ...grpc.CallOption) (*txtypes.BroadcastTxResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, in.TxBytes)
	resp := f.checkResp
	if resp == nil {
		resp = &sdk.TxResponse{TxHash: "ABCDEF"}
	}
	return &txtypes.BroadcastTxResponse{TxResponse: resp}, nil
}

func (f *fakeTxService) GetTx(ctx context.Context, in *txtypes.GetTxRequest, opts ...grpc.CallOption) (*txtypes.GetTxResponse, error) {
	if f.onGet != nil {
		f.onGet()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.deliverResp == nil || f.getCalls <= f.notFoundFor {
		return nil, status.Errorf(codes.NotFound, "tx not found: %s", in.Hash)
	}
	return &txtypes.GetTxResponse{TxResponse: f.deliverResp}, nil
}

type fakeChain struct {
	node *fakeNode
	auth *fakeAuth
	bank *fakeBank
	tx   *fakeTxService
}

func newFakeChain(t *testing.T, signer *Signer) *fakeChain {
	t.Helper()
	return &fakeChain{
		node: &fakeNode{network: testChainID, height: 42},
		auth: &fakeAuth{account: authtypes.NewBaseAccount(signer.AccAddress(), signer.PubKey(), 7, 3)},
		bank: &fakeBank{},
		tx:   &fakeTxService{gasUsed: 100000},
	}
}

func (f *fakeChain) client(t *testing.T, cfg *Config, signer *Signer) *Client {
	t.Helper()
	c, err := newClient(cfg, signer, services{
		auth: f.auth,
		bank: f.bank,
		tx:   f.tx,
		node: f.node,
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func event(typ string, kv ...string) abci.Event {
	ev := abci.Event{Type: typ}
	for i := 0; i+1 < len(kv); i += 2 {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: kv[i], Value: kv[i+1], Index: true})
	}
	return ev
}
