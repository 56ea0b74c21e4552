package wasmdeploy

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"

	"cosmossdk.io/math"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	"github.com/cosmos/cosmos-sdk/client/grpc/cmtservice"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// services are the gRPC query and tx clients the Client talks to.
type services struct {
	auth authtypes.QueryClient
	bank banktypes.QueryClient
	tx   txtypes.ServiceClient
	node cmtservice.ServiceClient
}

// Client uploads, instantiates and executes CosmWasm contracts on one chain
// as the Signer's account.
type Client struct {
	cfg       *Config
	signer    *Signer
	svc       services
	conn      *grpc.ClientConn
	gasPrices sdk.DecCoins
	log       zerolog.Logger
}

func newClient(cfg *Config, signer *Signer, svc services, logger zerolog.Logger) (*Client, error) {
	gasPrices, err := cfg.ParsedGasPrices()
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:       cfg,
		signer:    signer,
		svc:       svc,
		gasPrices: gasPrices,
		log:       logger.With().Str("component", "client").Logger(),
	}, nil
}

// Dial connects to the node's gRPC endpoint and verifies that the node
// reports cfg.ChainID.
func Dial(ctx context.Context, cfg *Config, signer *Signer, logger zerolog.Logger) (*Client, error) {
	c, err := Connect(cfg, signer, logger)
	if err != nil {
		return nil, err
	}
	if err := c.VerifyChainID(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.log.Info().
		Str("endpoint", cfg.GRPCEndpoint).
		Str("chain_id", cfg.ChainID).
		Str("sender", signer.Address()).
		Msg("connected to node")
	return c, nil
}

// Connect sets up the gRPC connection without querying the node. Use it
// when the caller reports node problems itself.
func Connect(cfg *Config, signer *Signer, logger zerolog.Logger) (*Client, error) {
	var creds credentials.TransportCredentials
	if cfg.GRPCInsecure {
		creds = insecure.NewCredentials()
	} else {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	conn, err := grpc.NewClient(cfg.GRPCEndpoint,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(signer.Encoding().Codec.GRPCCodec())),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeUnavailable, err)
	}

	c, err := newClient(cfg, signer, services{
		auth: authtypes.NewQueryClient(conn),
		bank: banktypes.NewQueryClient(conn),
		tx:   txtypes.NewServiceClient(conn),
		node: cmtservice.NewServiceClient(conn),
	}, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.conn = conn
	return c, nil
}

// Close releases the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Sender returns the deployer address.
func (c *Client) Sender() string {
	return c.signer.Address()
}

// Config returns the client's chain config.
func (c *Client) Config() *Config {
	return c.cfg
}

// ChainID returns the network name reported by the node.
func (c *Client) ChainID(ctx context.Context) (string, error) {
	resp, err := c.svc.node.GetNodeInfo(ctx, &cmtservice.GetNodeInfoRequest{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNodeUnavailable, err)
	}
	if resp.DefaultNodeInfo == nil {
		return "", fmt.Errorf("%w: node info missing", ErrNodeUnavailable)
	}
	return resp.DefaultNodeInfo.Network, nil
}

// VerifyChainID fails with ErrChainIDMismatch when the node serves a
// different chain than configured.
func (c *Client) VerifyChainID(ctx context.Context) error {
	actual, err := c.ChainID(ctx)
	if err != nil {
		return err
	}
	if actual != c.cfg.ChainID {
		return fmt.Errorf("%w: expected %s, got %s", ErrChainIDMismatch, c.cfg.ChainID, actual)
	}
	return nil
}

// Height returns the latest block height.
func (c *Client) Height(ctx context.Context) (int64, error) {
	resp, err := c.svc.node.GetLatestBlock(ctx, &cmtservice.GetLatestBlockRequest{})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNodeUnavailable, err)
	}
	if resp.SdkBlock == nil {
		return 0, fmt.Errorf("%w: latest block missing", ErrNodeUnavailable)
	}
	return resp.SdkBlock.Header.Height, nil
}

// Balance returns the sender's balance in denom.
func (c *Client) Balance(ctx context.Context, denom string) (math.Int, error) {
	resp, err := c.svc.bank.Balance(ctx, &banktypes.QueryBalanceRequest{
		Address: c.signer.Address(),
		Denom:   denom,
	})
	if err != nil {
		return math.Int{}, fmt.Errorf("query balance: %w", err)
	}
	if resp.Balance == nil {
		return math.ZeroInt(), nil
	}
	return resp.Balance.Amount, nil
}

// account fetches the sender's account number and sequence.
func (c *Client) account(ctx context.Context) (sdk.AccountI, error) {
	resp, err := c.svc.auth.Account(ctx, &authtypes.QueryAccountRequest{Address: c.signer.Address()})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, c.signer.Address())
		}
		return nil, fmt.Errorf("query account: %w", err)
	}

	var acc sdk.AccountI
	if err := c.signer.Encoding().InterfaceRegistry.UnpackAny(resp.Account, &acc); err != nil {
		return nil, fmt.Errorf("unpack account: %w", err)
	}
	return acc, nil
}

// Upload stores wasm bytecode on chain and returns the assigned code ID.
func (c *Client) Upload(ctx context.Context, wasm []byte) (*TxResult, error) {
	code, err := CompressWasm(wasm)
	if err != nil {
		return nil, err
	}

	c.log.Debug().Int("raw_bytes", len(wasm)).Int("upload_bytes", len(code)).Msg("uploading code")
	res, err := c.broadcast(ctx, &wasmtypes.MsgStoreCode{
		Sender:       c.signer.Address(),
		WASMByteCode: code,
	})
	if err != nil {
		return nil, fmt.Errorf("store code: %w", err)
	}

	res.CodeID, err = CodeIDFromEvents(res.Events)
	if err != nil {
		return nil, fmt.Errorf("store code %s: %w", res.TxHash, err)
	}
	return res, nil
}

// Instantiate creates a contract from an uploaded code ID and returns its
// address.
func (c *Client) Instantiate(ctx context.Context, req InstantiateRequest) (*TxResult, error) {
	if !json.Valid(req.Msg) {
		return nil, fmt.Errorf("instantiate code %d: message is not valid JSON", req.CodeID)
	}
	label := req.Label
	if label == "" {
		label = fmt.Sprintf("code-%d", req.CodeID)
	}

	res, err := c.broadcast(ctx, &wasmtypes.MsgInstantiateContract{
		Sender: c.signer.Address(),
		Admin:  req.Admin,
		CodeID: req.CodeID,
		Label:  label,
		Msg:    wasmtypes.RawContractMessage(req.Msg),
		Funds:  req.Funds,
	})
	if err != nil {
		return nil, fmt.Errorf("instantiate code %d: %w", req.CodeID, err)
	}

	res.ContractAddress, err = ContractAddressFromEvents(res.Events)
	if err != nil {
		return nil, fmt.Errorf("instantiate code %d (%s): %w", req.CodeID, res.TxHash, err)
	}
	return res, nil
}

// Execute runs a contract execute message.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (*TxResult, error) {
	if req.Contract == "" {
		return nil, errors.New("execute: contract address is required")
	}
	if !json.Valid(req.Msg) {
		return nil, fmt.Errorf("execute %s: message is not valid JSON", req.Contract)
	}

	res, err := c.broadcast(ctx, &wasmtypes.MsgExecuteContract{
		Sender:   c.signer.Address(),
		Contract: req.Contract,
		Msg:      wasmtypes.RawContractMessage(req.Msg),
		Funds:    req.Funds,
	})
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", req.Contract, err)
	}
	return res, nil
}

// Tx looks up a committed transaction by hash. A failed transaction
// returns ErrTxFailed.
func (c *Client) Tx(ctx context.Context, hash string) (*TxResult, error) {
	resp, err := c.svc.tx.GetTx(ctx, &txtypes.GetTxRequest{Hash: hash})
	if err != nil {
		return nil, fmt.Errorf("get tx %s: %w", hash, err)
	}
	if resp.TxResponse == nil {
		return nil, fmt.Errorf("get tx %s: empty response", hash)
	}
	return c.txResult(resp.TxResponse)
}
