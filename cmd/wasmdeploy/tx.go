package main

import (
	"fmt"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cobra"

	"github.com/palomachain/wasmdeploy"
	"github.com/palomachain/wasmdeploy/plan"
)

// uploadCmd stores a single wasm file.
var uploadCmd = &cobra.Command{
	Use:   "upload <file.wasm>",
	Short: "Store a wasm binary and print its code ID",
	Long: `Store a single wasm binary. Raw wasm is gzip-compressed before upload;
already-compressed files are sent as is.

With --name the code ID is also recorded in the report as codes.<name>.

Examples:
  wasmdeploy upload artifacts/palomadex_pair.wasm
  wasmdeploy upload artifacts/palomadex_pair.wasm --name pair`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

// instantiateCmd creates one contract.
var instantiateCmd = &cobra.Command{
	Use:   "instantiate <code-id|name> <json|@file>",
	Short: "Instantiate a contract from a stored code ID",
	Long: `Instantiate a contract. The code may be a numeric code ID or a name
recorded in the report. The message may reference ${codes.x},
${contracts.x}, ${values.x}, ${sender} and ${chain_id}, resolved against
the report.

Examples:
  wasmdeploy instantiate 12 '{"palomadex_factory":"${contracts.factory}"}' --label router
  wasmdeploy instantiate factory @configs/factory.json --admin '${sender}' --name factory`,
	Args: cobra.ExactArgs(2),
	RunE: runInstantiate,
}

// executeCmd sends one execute message.
var executeCmd = &cobra.Command{
	Use:   "execute <contract> <json|@file>",
	Short: "Execute a message on a contract",
	Long: `Execute a message on a contract and print the emitted wasm attributes.
The contract may be an address or a placeholder such as ${contracts.factory}.

Examples:
  wasmdeploy execute '${contracts.factory}' @configs/create_pair.json
  wasmdeploy execute paloma1... '{"create_gauge":{}}' --funds 1000000ugrain`,
	Args: cobra.ExactArgs(2),
	RunE: runExecute,
}

func init() {
	uploadCmd.Flags().String("name", "", "record the code ID in the report under this name")

	instantiateCmd.Flags().String("label", "", "contract label (default code-<id>)")
	instantiateCmd.Flags().String("admin", "", "contract admin address")
	instantiateCmd.Flags().String("funds", "", "coins sent with the message, e.g. 100ugrain")
	instantiateCmd.Flags().String("name", "", "record the address in the report under this name")

	executeCmd.Flags().String("funds", "", "coins sent with the message, e.g. 100ugrain")
}

// TxOutput is the JSON output of the tx commands.
type TxOutput struct {
	TxHash          string            `json:"tx_hash"`
	Height          int64             `json:"height"`
	GasUsed         int64             `json:"gas_used"`
	CodeID          uint64            `json:"code_id,omitempty"`
	ContractAddress string            `json:"contract_address,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"`
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	name, _ := cmd.Flags().GetString("name")
	code, err := wasmdeploy.ReadWasm(args[0])
	if err != nil {
		return err
	}

	client, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	res, err := client.Upload(ctx, code)
	if err != nil {
		return err
	}
	if name != "" {
		if err := recordInReport(client, func(s *wasmdeploy.ReportStore) { s.SetCode(name, res.CodeID) }); err != nil {
			return err
		}
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), txOutput(res))
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s code ID %s (tx %s, height %d)\n",
		colorGreen("Stored"), colorBold(strconv.FormatUint(res.CodeID, 10)), res.TxHash, res.Height)
	return nil
}

func runInstantiate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	label, _ := cmd.Flags().GetString("label")
	admin, _ := cmd.Flags().GetString("admin")
	funds, _ := cmd.Flags().GetString("funds")
	name, _ := cmd.Flags().GetString("name")

	raw, err := readMessage(args[1])
	if err != nil {
		return err
	}

	client, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	scope, err := reportScope(client.Sender(), client.Config().ChainID)
	if err != nil {
		return err
	}
	codeID, err := resolveCodeID(args[0], scope)
	if err != nil {
		return err
	}
	msg, err := plan.Resolve(raw, scope)
	if err != nil {
		return err
	}
	if admin, err = plan.ResolveString(admin, scope); err != nil {
		return err
	}
	coins, err := parseCoins(funds, scope)
	if err != nil {
		return err
	}

	res, err := client.Instantiate(ctx, wasmdeploy.InstantiateRequest{
		CodeID: codeID,
		Label:  label,
		Admin:  admin,
		Msg:    msg,
		Funds:  coins,
	})
	if err != nil {
		return err
	}
	if name != "" {
		if err := recordInReport(client, func(s *wasmdeploy.ReportStore) { s.SetContract(name, res.ContractAddress) }); err != nil {
			return err
		}
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), txOutput(res))
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s (tx %s, height %d)\n",
		colorGreen("Instantiated"), colorBold(res.ContractAddress), res.TxHash, res.Height)
	return nil
}

func runExecute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	funds, _ := cmd.Flags().GetString("funds")
	raw, err := readMessage(args[1])
	if err != nil {
		return err
	}

	client, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	scope, err := reportScope(client.Sender(), client.Config().ChainID)
	if err != nil {
		return err
	}
	contract, err := plan.ResolveString(args[0], scope)
	if err != nil {
		return err
	}
	msg, err := plan.Resolve(raw, scope)
	if err != nil {
		return err
	}
	coins, err := parseCoins(funds, scope)
	if err != nil {
		return err
	}

	res, err := client.Execute(ctx, wasmdeploy.ExecuteRequest{Contract: contract, Msg: msg, Funds: coins})
	if err != nil {
		return err
	}

	out := txOutput(res)
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), out)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s (tx %s, height %d)\n", colorGreen("Executed"), contract, res.TxHash, res.Height)
	keys := make([]string, 0, len(out.Attributes))
	for k := range out.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", k, out.Attributes[k])
	}
	return nil
}

// resolveCodeID accepts a numeric code ID or a name recorded in the report.
func resolveCodeID(arg string, scope plan.Scope) (uint64, error) {
	if id, err := strconv.ParseUint(arg, 10, 64); err == nil {
		return id, nil
	}
	if id, ok := scope.Codes[arg]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: code %q is neither a number nor recorded in the report", plan.ErrUnresolvedReference, arg)
}

func parseCoins(s string, scope plan.Scope) (sdk.Coins, error) {
	if s == "" {
		return nil, nil
	}
	resolved, err := plan.ResolveString(s, scope)
	if err != nil {
		return nil, err
	}
	coins, err := sdk.ParseCoinsNormalized(resolved)
	if err != nil {
		return nil, fmt.Errorf("invalid funds %q: %w", resolved, err)
	}
	return coins, nil
}

func recordInReport(client *wasmdeploy.Client, update func(*wasmdeploy.ReportStore)) error {
	store, err := wasmdeploy.OpenReportStore(getReportPath())
	if err != nil {
		return err
	}
	rep := store.Report()
	if rep.ChainID != "" && rep.ChainID != client.Config().ChainID {
		return fmt.Errorf("report %s belongs to chain %s", store.Path(), rep.ChainID)
	}
	store.Begin("", client.Config().ChainID, client.Sender())
	update(store)
	return store.Sync()
}

func txOutput(res *wasmdeploy.TxResult) TxOutput {
	out := TxOutput{
		TxHash:          res.TxHash,
		Height:          res.Height,
		GasUsed:         res.GasUsed,
		CodeID:          res.CodeID,
		ContractAddress: res.ContractAddress,
	}
	for _, ev := range res.Events {
		if ev.Type != wasmdeploy.EventTypeWasm {
			continue
		}
		for _, a := range ev.Attributes {
			if a.Key == wasmdeploy.AttributeKeyContractAddress {
				continue
			}
			if out.Attributes == nil {
				out.Attributes = make(map[string]string)
			}
			out.Attributes[a.Key] = a.Value
		}
	}
	return out
}
