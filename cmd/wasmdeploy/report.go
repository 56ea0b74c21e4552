package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/palomachain/wasmdeploy"
	"github.com/palomachain/wasmdeploy/deploy"
)

// reportCmd is the parent command for report operations.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect the deployment report",
}

var reportShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the codes, contracts and values recorded so far",
	RunE:  runReportShow,
}

func init() {
	reportCmd.AddCommand(reportShowCmd)
}

func runReportShow(cmd *cobra.Command, args []string) error {
	store, err := wasmdeploy.OpenReportStore(getReportPath())
	if err != nil {
		return err
	}
	if store.Fresh() {
		return fmt.Errorf("no report at %s", store.Path())
	}
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), store.Report())
	}
	return deploy.Summary(cmd.OutOrStdout(), store.Report())
}
