package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/palomachain/wasmdeploy/plan"
)

// planCmd is the parent command for plan operations.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect the deployment plan",
	Long: `Plan commands.

Available subcommands:
  show      - Print the plan steps
  validate  - Check the plan without connecting to a chain`,
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the plan steps",
	RunE:  runPlanShow,
}

var planValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the plan without connecting to a chain",
	RunE:  runPlanValidate,
}

func init() {
	planShowCmd.Flags().Bool("yaml", false, "print the full plan as YAML")

	planCmd.AddCommand(planShowCmd)
	planCmd.AddCommand(planValidateCmd)
}

func runPlanShow(cmd *cobra.Command, args []string) error {
	p, err := getPlan()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, p)
	}
	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		data, err := p.Marshal()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	t := table.NewWriter()
	t.SetTitle(p.Name)
	t.AppendHeader(table.Row{"#", "ID", "Kind", "Target"})
	for i, s := range p.Steps {
		t.AppendRow(table.Row{i + 1, s.ID, s.Kind(), stepTarget(p, &s)})
	}
	_, err = fmt.Fprintln(out, t.Render())
	return err
}

func runPlanValidate(cmd *cobra.Command, args []string) error {
	p, err := getPlan()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s plan %s with %d steps\n", colorGreen("Valid"), p.Name, len(p.Steps))
	return nil
}

func stepTarget(p *plan.Plan, s *plan.Step) string {
	switch {
	case s.Upload != nil:
		return p.ContractPath(s.Upload.File)
	case s.Instantiate != nil:
		return fmt.Sprintf("%s from codes.%s", s.Instantiate.ContractName(), s.Instantiate.Code)
	case s.Execute != nil:
		return s.Execute.Contract
	case s.Checkpoint != nil:
		return s.Checkpoint.Message
	}
	return ""
}
