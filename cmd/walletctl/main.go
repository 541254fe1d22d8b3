// Command walletctl is a thin CLI over the wallet library: derive
// addresses, check balances, and send ETH/ERC-20/USDC transfers from a
// recovery phrase, grounded on the chapool wallet service's cobra-based
// command surface.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("walletctl command failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "walletctl",
		Short: "Derive Ethereum/USDC wallet accounts and submit transactions",
		Long: fmt.Sprintf(`walletctl

A stateless CLI over the usdc-wallet library. Reads a recovery phrase from
a file (never a flag value, to keep it out of shell history) and derives
accounts at a configurable BIP-44 path.`),
	}

	root.PersistentFlags().String("rpc-url", "", "JSON-RPC endpoint URL")
	root.PersistentFlags().String("path", "", "BIP-44 derivation path prefix (default m/44'/60'/0'/0)")
	root.PersistentFlags().String("phrase-file", "", "path to a file containing the recovery phrase")
	root.PersistentFlags().Uint32("account", 0, "account index to derive")

	root.AddCommand(
		newAddressCommand(),
		newBalanceCommand(),
		newSendCommand(),
		newTransferCommand(),
		newPermitCommand(),
	)

	return root
}
