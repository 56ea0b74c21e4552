// Package deploy runs a plan against a chain, one step at a time, and
// records every completed step in the report before starting the next.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/palomachain/wasmdeploy"
	"github.com/palomachain/wasmdeploy/plan"
)

var (
	ErrReportChainMismatch = errors.New("deploy: report was written for a different chain")
	ErrCheckpointDeclined  = errors.New("deploy: checkpoint declined")
	ErrInvalidFunds        = errors.New("deploy: invalid funds")
)

// Chain is the subset of *wasmdeploy.Client the runner needs.
type Chain interface {
	Sender() string
	ChainID(ctx context.Context) (string, error)
	Upload(ctx context.Context, wasm []byte) (*wasmdeploy.TxResult, error)
	Instantiate(ctx context.Context, req wasmdeploy.InstantiateRequest) (*wasmdeploy.TxResult, error)
	Execute(ctx context.Context, req wasmdeploy.ExecuteRequest) (*wasmdeploy.TxResult, error)
	Tx(ctx context.Context, hash string) (*wasmdeploy.TxResult, error)
}

// Runner executes plans.
type Runner struct {
	chain    Chain
	store    *wasmdeploy.ReportStore
	prompter Prompter
	log      zerolog.Logger

	chainID string
}

// NewRunner creates a Runner.
func NewRunner(chain Chain, store *wasmdeploy.ReportStore, prompter Prompter, logger zerolog.Logger) *Runner {
	return &Runner{
		chain:    chain,
		store:    store,
		prompter: prompter,
		log:      logger.With().Str("component", "deploy").Logger(),
	}
}

// Run executes p. Steps already recorded in the report are skipped, so a
// failed or interrupted run can be started again with the same report.
func (r *Runner) Run(ctx context.Context, p *plan.Plan) error {
	chainID, err := r.chain.ChainID(ctx)
	if err != nil {
		return err
	}
	r.chainID = chainID

	rep := r.store.Report()
	if rep.ChainID != "" && rep.ChainID != chainID {
		return fmt.Errorf("%w: report has %q, node reports %q", ErrReportChainMismatch, rep.ChainID, chainID)
	}
	if rep.Sender != "" && rep.Sender != r.chain.Sender() {
		r.log.Warn().Str("report_sender", rep.Sender).Str("sender", r.chain.Sender()).Msg("report was written by a different account")
	}

	r.store.Begin(p.Name, chainID, r.chain.Sender())
	if err := r.store.Sync(); err != nil {
		return err
	}

	r.log.Info().
		Str("plan", p.Name).
		Str("chain_id", chainID).
		Str("sender", r.chain.Sender()).
		Str("run_id", rep.RunID).
		Int("steps", len(p.Steps)).
		Msg("starting deployment")

	for i := range p.Steps {
		step := &p.Steps[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		var (
			rec wasmdeploy.StepRecord
			err error
		)
		prev, seen := r.store.Step(step.ID)
		switch {
		case seen && !prev.Pending:
			r.log.Debug().Str("step", step.ID).Msg("already completed, skipping")
			continue
		case seen:
			rec, err = r.recapture(ctx, step, prev)
		default:
			rec, err = r.runStep(ctx, p, step)
		}
		if err != nil {
			return fmt.Errorf("step %s: %w", step.ID, err)
		}
		r.store.CompleteStep(step.ID, rec)
		if err := r.store.Sync(); err != nil {
			return fmt.Errorf("step %s: %w", step.ID, err)
		}
	}

	r.log.Info().Str("report", r.store.Path()).Msg("deployment complete")
	return nil
}

func (r *Runner) runStep(ctx context.Context, p *plan.Plan, step *plan.Step) (wasmdeploy.StepRecord, error) {
	switch step.Kind() {
	case plan.KindUpload:
		return r.upload(ctx, p, step)
	case plan.KindInstantiate:
		return r.instantiate(ctx, p, step)
	case plan.KindExecute:
		return r.execute(ctx, p, step)
	case plan.KindCheckpoint:
		return r.checkpoint(p, step)
	default:
		return wasmdeploy.StepRecord{}, fmt.Errorf("%w: step has no kind", plan.ErrInvalidPlan)
	}
}

func (r *Runner) upload(ctx context.Context, p *plan.Plan, step *plan.Step) (wasmdeploy.StepRecord, error) {
	up := step.Upload
	code, err := wasmdeploy.ReadWasm(p.ContractPath(up.File))
	if err != nil {
		return wasmdeploy.StepRecord{}, err
	}

	res, err := r.chain.Upload(ctx, code)
	if err != nil {
		return wasmdeploy.StepRecord{}, err
	}
	r.store.SetCode(up.Contract, res.CodeID)

	r.log.Info().
		Str("step", step.ID).
		Str("contract", up.Contract).
		Uint64("code_id", res.CodeID).
		Str("tx_hash", res.TxHash).
		Int64("height", res.Height).
		Msg("stored code")
	return record(wasmdeploy.StepKindUpload, res), nil
}

func (r *Runner) instantiate(ctx context.Context, p *plan.Plan, step *plan.Step) (wasmdeploy.StepRecord, error) {
	in := step.Instantiate
	scope := r.scope()

	codeID, ok := scope.Codes[in.Code]
	if !ok {
		return wasmdeploy.StepRecord{}, fmt.Errorf("%w: ${codes.%s}", plan.ErrUnresolvedReference, in.Code)
	}
	msg, err := r.message(p, step, scope)
	if err != nil {
		return wasmdeploy.StepRecord{}, err
	}
	label := p.DefaultLabel(in.ContractName())
	if in.Label != "" {
		if label, err = plan.ResolveString(in.Label, scope); err != nil {
			return wasmdeploy.StepRecord{}, err
		}
	}
	admin, err := plan.ResolveString(in.Admin, scope)
	if err != nil {
		return wasmdeploy.StepRecord{}, err
	}
	funds, err := parseFunds(in.Funds, scope)
	if err != nil {
		return wasmdeploy.StepRecord{}, err
	}

	res, err := r.chain.Instantiate(ctx, wasmdeploy.InstantiateRequest{
		CodeID: codeID,
		Label:  label,
		Admin:  admin,
		Msg:    msg,
		Funds:  funds,
	})
	if err != nil {
		return wasmdeploy.StepRecord{}, err
	}
	r.store.SetContract(in.ContractName(), res.ContractAddress)
	rec, err := r.settle(step.ID, wasmdeploy.StepKindInstantiate, in.Captures, res)
	if err != nil {
		return wasmdeploy.StepRecord{}, err
	}

	r.log.Info().
		Str("step", step.ID).
		Uint64("code_id", codeID).
		Str("contract", res.ContractAddress).
		Str("tx_hash", res.TxHash).
		Int64("height", res.Height).
		Msgf("instantiated %s", in.ContractName())
	return rec, nil
}

func (r *Runner) execute(ctx context.Context, p *plan.Plan, step *plan.Step) (wasmdeploy.StepRecord, error) {
	ex := step.Execute
	scope := r.scope()

	contract, err := plan.ResolveString(ex.Contract, scope)
	if err != nil {
		return wasmdeploy.StepRecord{}, err
	}
	msg, err := r.message(p, step, scope)
	if err != nil {
		return wasmdeploy.StepRecord{}, err
	}
	funds, err := parseFunds(ex.Funds, scope)
	if err != nil {
		return wasmdeploy.StepRecord{}, err
	}

	res, err := r.chain.Execute(ctx, wasmdeploy.ExecuteRequest{
		Contract: contract,
		Msg:      msg,
		Funds:    funds,
	})
	if err != nil {
		return wasmdeploy.StepRecord{}, err
	}
	rec, err := r.settle(step.ID, wasmdeploy.StepKindExecute, ex.Captures, res)
	if err != nil {
		return wasmdeploy.StepRecord{}, err
	}

	r.log.Info().
		Str("step", step.ID).
		Str("contract", contract).
		Str("tx_hash", res.TxHash).
		Int64("height", res.Height).
		Msg("executed")
	return rec, nil
}

func (r *Runner) checkpoint(p *plan.Plan, step *plan.Step) (wasmdeploy.StepRecord, error) {
	files := make([]string, 0, len(step.Checkpoint.Files))
	for _, f := range step.Checkpoint.Files {
		files = append(files, filepath.Join(p.ConfigPath(), f))
	}

	ok, err := r.prompter.Confirm(step.Checkpoint.Message, files)
	if err != nil {
		return wasmdeploy.StepRecord{}, err
	}
	if !ok {
		return wasmdeploy.StepRecord{}, ErrCheckpointDeclined
	}
	r.log.Info().Str("step", step.ID).Msg("checkpoint confirmed")
	return wasmdeploy.StepRecord{Kind: wasmdeploy.StepKindCheckpoint}, nil
}

// settle captures values from a committed transaction. When a capture is
// missing the step is saved as pending with its tx hash, so the next run
// reads the events back instead of sending the transaction again.
func (r *Runner) settle(stepID, kind string, captures []plan.Capture, res *wasmdeploy.TxResult) (wasmdeploy.StepRecord, error) {
	rec := record(kind, res)
	if err := r.capture(stepID, captures, res); err != nil {
		rec.Pending = true
		r.store.CompleteStep(stepID, rec)
		if syncErr := r.store.Sync(); syncErr != nil {
			return wasmdeploy.StepRecord{}, errors.Join(err, syncErr)
		}
		r.log.Warn().Str("step", stepID).Str("tx_hash", res.TxHash).Msg("transaction committed, captures pending")
		return wasmdeploy.StepRecord{}, err
	}
	return rec, nil
}

// recapture finishes a pending step from its committed transaction.
func (r *Runner) recapture(ctx context.Context, step *plan.Step, prev wasmdeploy.StepRecord) (wasmdeploy.StepRecord, error) {
	var captures []plan.Capture
	switch {
	case step.Instantiate != nil:
		captures = step.Instantiate.Captures
	case step.Execute != nil:
		captures = step.Execute.Captures
	}

	res, err := r.chain.Tx(ctx, prev.TxHash)
	if err != nil {
		return wasmdeploy.StepRecord{}, fmt.Errorf("pending tx %s: %w", prev.TxHash, err)
	}
	if err := r.capture(step.ID, captures, res); err != nil {
		return wasmdeploy.StepRecord{}, fmt.Errorf("pending tx %s: %w", prev.TxHash, err)
	}

	r.log.Info().Str("step", step.ID).Str("tx_hash", prev.TxHash).Msg("captured from committed tx")
	prev.Pending = false
	prev.CompletedAt = time.Time{}
	return prev, nil
}

// capture records every requested attribute, or none if one is missing.
func (r *Runner) capture(stepID string, captures []plan.Capture, res *wasmdeploy.TxResult) error {
	values := make(map[string]string, len(captures))
	for _, c := range captures {
		v, err := wasmdeploy.FindAttributeAt(res.Events, c.Event, c.Attribute, c.Index)
		if err != nil {
			return fmt.Errorf("capture %s: %w", c.As, err)
		}
		values[c.As] = v
	}
	for name, v := range values {
		r.store.SetValue(name, v)
		r.log.Info().Str("step", stepID).Str(name, v).Msg("captured")
	}
	return nil
}

func (r *Runner) message(p *plan.Plan, step *plan.Step, scope plan.Scope) ([]byte, error) {
	raw, err := step.Message(p.ConfigPath())
	if err != nil {
		return nil, err
	}
	return plan.Resolve(raw, scope)
}

func (r *Runner) scope() plan.Scope {
	rep := r.store.Report()
	return plan.Scope{
		Sender:    r.chain.Sender(),
		ChainID:   r.chainID,
		Codes:     rep.Codes,
		Contracts: rep.Contracts,
		Values:    rep.Values,
	}
}

func parseFunds(s string, scope plan.Scope) (sdk.Coins, error) {
	if s == "" {
		return nil, nil
	}
	resolved, err := plan.ResolveString(s, scope)
	if err != nil {
		return nil, err
	}
	coins, err := sdk.ParseCoinsNormalized(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidFunds, resolved, err)
	}
	return coins, nil
}

func record(kind string, res *wasmdeploy.TxResult) wasmdeploy.StepRecord {
	return wasmdeploy.StepRecord{
		Kind:    kind,
		TxHash:  res.TxHash,
		Height:  res.Height,
		GasUsed: res.GasUsed,
	}
}
