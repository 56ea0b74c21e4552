package wasmdeploy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	errorsmod "cosmossdk.io/errors"
	cmttypes "github.com/cometbft/cometbft/types"
	clienttx "github.com/cosmos/cosmos-sdk/client/tx"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// broadcast simulates, signs and broadcasts msgs, then waits until the
// transaction is included in a block.
func (c *Client) broadcast(ctx context.Context, msgs ...sdk.Msg) (*TxResult, error) {
	acc, err := c.account(ctx)
	if err != nil {
		return nil, err
	}

	txf := clienttx.Factory{}.
		WithTxConfig(c.signer.Encoding().TxConfig).
		WithKeybase(c.signer.Keyring()).
		WithFromName(SignerUID).
		WithChainID(c.cfg.ChainID).
		WithAccountNumber(acc.GetAccountNumber()).
		WithSequence(acc.GetSequence()).
		WithGasAdjustment(c.cfg.GasAdjustment).
		WithGasPrices(c.gasPrices.String()).
		WithSignMode(signing.SignMode_SIGN_MODE_DIRECT)

	simBytes, err := txf.BuildSimTx(msgs...)
	if err != nil {
		return nil, fmt.Errorf("build simulation tx: %w", err)
	}
	sim, err := c.svc.tx.Simulate(ctx, &txtypes.SimulateRequest{TxBytes: simBytes})
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	gas := adjustGas(sim.GasInfo.GasUsed, c.cfg.GasAdjustment)
	txf = txf.WithGas(gas)

	builder, err := txf.BuildUnsignedTx(msgs...)
	if err != nil {
		return nil, fmt.Errorf("build tx: %w", err)
	}
	if err := clienttx.Sign(ctx, txf, SignerUID, builder, true); err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	txBytes, err := c.signer.Encoding().TxConfig.TxEncoder()(builder.GetTx())
	if err != nil {
		return nil, fmt.Errorf("encode tx: %w", err)
	}

	c.log.Debug().
		Uint64("sequence", acc.GetSequence()).
		Uint64("gas", gas).
		Str("fee", builder.GetTx().GetFee().String()).
		Msg("broadcasting tx")

	resp, err := c.svc.tx.BroadcastTx(ctx, &txtypes.BroadcastTxRequest{
		TxBytes: txBytes,
		Mode:    txtypes.BroadcastMode_BROADCAST_MODE_SYNC,
	})
	if err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}

	hash := fmt.Sprintf("%X", cmttypes.Tx(txBytes).Hash())
	if r := resp.TxResponse; r != nil {
		if r.TxHash != "" {
			hash = r.TxHash
		}
		if r.Code != 0 {
			checkErr := errorsmod.ABCIError(r.Codespace, r.Code, r.RawLog)
			if !errors.Is(checkErr, sdkerrors.ErrTxInMempoolCache) {
				return nil, fmt.Errorf("%w: check tx %s: %w", ErrTxFailed, hash, checkErr)
			}
			c.log.Warn().Str("tx_hash", hash).Msg("tx already in mempool, waiting for inclusion")
		}
	}

	return c.waitForTx(ctx, hash)
}

// waitForTx polls the tx service until hash is included or TxTimeout passes.
func (c *Client) waitForTx(parent context.Context, hash string) (*TxResult, error) {
	ctx, cancel := context.WithTimeout(parent, c.cfg.TxTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	// A cancelled parent means the tx may still land, so it is not a timeout.
	stopped := func() error {
		if err := parent.Err(); err != nil {
			return fmt.Errorf("waiting for tx %s: %w", hash, err)
		}
		return fmt.Errorf("%w: %s", ErrTxTimeout, hash)
	}

	for {
		resp, err := c.svc.tx.GetTx(ctx, &txtypes.GetTxRequest{Hash: hash})
		switch {
		case err == nil && resp.TxResponse != nil:
			return c.txResult(resp.TxResponse)
		case ctx.Err() != nil:
			return nil, stopped()
		case err != nil && status.Code(err) != codes.NotFound:
			return nil, fmt.Errorf("get tx %s: %w", hash, err)
		}

		select {
		case <-ctx.Done():
			return nil, stopped()
		case <-ticker.C:
		}
	}
}

func (c *Client) txResult(r *sdk.TxResponse) (*TxResult, error) {
	if r.Code != 0 {
		return nil, fmt.Errorf("%w: %s at height %d: %w", ErrTxFailed, r.TxHash, r.Height,
			errorsmod.ABCIError(r.Codespace, r.Code, r.RawLog))
	}

	c.log.Info().
		Str("tx_hash", r.TxHash).
		Int64("height", r.Height).
		Int64("gas_used", r.GasUsed).
		Msg("tx included")

	return &TxResult{
		TxHash:    r.TxHash,
		Height:    r.Height,
		GasWanted: r.GasWanted,
		GasUsed:   r.GasUsed,
		Events:    r.Events,
	}, nil
}

// adjustGas scales simulated gas by adjustment, rounding up.
func adjustGas(simulated uint64, adjustment float64) uint64 {
	if adjustment <= 0 {
		adjustment = DefaultGasAdjustment
	}
	return uint64(math.Ceil(float64(simulated) * adjustment))
}
