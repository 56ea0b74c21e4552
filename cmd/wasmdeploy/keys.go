package main

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

// keysCmd is the parent command for key operations.
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Inspect the deployer key",
	Long: `Key commands for the deployer account derived from the mnemonic.

Available subcommands:
  show    - Show the deployer address and public key`,
}

// keysShowCmd shows the derived deployer key.
var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the deployer address and public key",
	Long: `Derive the deployer key from the mnemonic and print its bech32 address,
compressed public key and HD path. Nothing is sent to the chain.`,
	RunE: runKeysShow,
}

func init() {
	keysCmd.AddCommand(keysShowCmd)
}

// KeyShowOutput represents the key show output.
type KeyShowOutput struct {
	Address string `json:"address"`
	PubKey  string `json:"pubkey"`
	HDPath  string `json:"hd_path"`
}

func runKeysShow(cmd *cobra.Command, args []string) error {
	_, signer, err := loadSigner()
	if err != nil {
		return err
	}

	out := KeyShowOutput{
		Address: signer.Address(),
		PubKey:  base64.StdEncoding.EncodeToString(signer.PubKey().Bytes()),
		HDPath:  signer.HDPath(),
	}
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "%s %s\n", colorBold("Address:"), out.Address)
	_, _ = fmt.Fprintf(w, "%s %s\n", colorBold("PubKey: "), out.PubKey)
	_, _ = fmt.Fprintf(w, "%s %s\n", colorBold("HD path:"), out.HDPath)
	return nil
}
