package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/palomachain/wasmdeploy"
)

// statusCmd runs the pre-flight checks without deploying.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check node, chain ID, balance and artifacts",
	Long: `Run the pre-flight checks that deploy runs before its first step:
the node answers, serves the configured chain ID, the deployer holds at
least min_balance of the fee denom, and every wasm file in the plan exists.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := getPlan()
	if err != nil {
		return err
	}
	cfg, signer, err := loadSigner()
	if err != nil {
		return err
	}
	client, err := wasmdeploy.Connect(cfg, signer, logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	resp, err := runPreflight(ctx, client, p)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		if err := printJSON(out, resp); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(out, "%s %s\n", colorBold("Deployer:"), resp.DeployerAddress)
		if resp.Height > 0 {
			_, _ = fmt.Fprintf(out, "%s %d\n", colorBold("Height:  "), resp.Height)
		}
		for _, c := range resp.Checks {
			mark := colorGreen("✓")
			if !c.Passed {
				mark = colorRed("✗")
			}
			_, _ = fmt.Fprintf(out, "  %s %-18s %s\n", mark, c.Name, c.Message)
		}
	}

	if !resp.OK {
		return fmt.Errorf("pre-flight checks failed")
	}
	return nil
}
