package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/palomachain/wasmdeploy"
	"github.com/palomachain/wasmdeploy/deploy"
	"github.com/palomachain/wasmdeploy/plan"
	"github.com/palomachain/wasmdeploy/preflight"
)

var skipPreflight bool

// deployCmd runs the deployment plan.
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run the deployment plan",
	Long: `Run every step of the deployment plan against the configured chain.

Steps already recorded in the report are skipped, so a failed run can be
continued by running the same command again. At checkpoints the run pauses
until the operator confirms; --yes confirms them automatically.

Examples:
  wasmdeploy deploy --config chain.yaml
  wasmdeploy deploy --plan my-plan.yaml --report testnet.json
  wasmdeploy deploy --yes --json`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "do not run pre-flight checks before deploying")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := getPlan()
	if err != nil {
		return err
	}
	client, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if !skipPreflight {
		if err := requirePreflight(ctx, client, p); err != nil {
			return err
		}
	}

	store, err := wasmdeploy.OpenReportStore(getReportPath())
	if err != nil {
		return err
	}
	if !store.Fresh() {
		logger.Info().Str("report", store.Path()).Msg("resuming from existing report")
	}

	var prompter deploy.Prompter
	if assumeYes {
		prompter = deploy.NewAutoPrompter(logger)
	} else {
		prompter = deploy.NewTerminalPrompter()
	}

	runErr := deploy.NewRunner(client, store, prompter, logger).Run(ctx, p)
	if errors.Is(runErr, deploy.ErrCheckpointDeclined) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), colorYellow("Stopped at checkpoint. Run deploy again to continue."))
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		if err := printJSON(out, store.Report()); err != nil {
			return err
		}
	} else {
		if err := deploy.Summary(out, store.Report()); err != nil {
			return err
		}
	}
	return runErr
}

// requirePreflight fails unless every pre-flight check passes.
func requirePreflight(ctx context.Context, client *wasmdeploy.Client, p *plan.Plan) error {
	resp, err := runPreflight(ctx, client, p)
	if err != nil {
		return err
	}
	if resp.OK {
		return nil
	}
	for _, c := range resp.Checks {
		if !c.Passed {
			logger.Error().Str("check", string(c.Name)).Msg(c.Message)
		}
	}
	return fmt.Errorf("pre-flight checks failed (use --skip-preflight to override)")
}

func runPreflight(ctx context.Context, client *wasmdeploy.Client, p *plan.Plan) (*preflight.Response, error) {
	cfg := client.Config()
	minBalance, err := cfg.ParsedMinBalance()
	if err != nil {
		return nil, err
	}

	req := &preflight.Request{
		ChainID:         cfg.ChainID,
		DeployerAddress: client.Sender(),
		Denom:           cfg.FeeDenom,
		MinBalance:      minBalance,
	}
	if p != nil {
		for _, s := range p.Steps {
			if s.Upload != nil {
				req.Artifacts = append(req.Artifacts, p.ContractPath(s.Upload.File))
			}
		}
	}
	return preflight.NewChecker().RunChecks(ctx, client, req)
}
