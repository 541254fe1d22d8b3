package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/chapool/usdc-wallet/erc20"
	"github.com/chapool/usdc-wallet/hdwallet"
	"github.com/chapool/usdc-wallet/hexutil"
	"github.com/chapool/usdc-wallet/txbuilder"
	"github.com/chapool/usdc-wallet/usdc"
)

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func flagUint32(cmd *cobra.Command, name string) uint32 {
	v, _ := cmd.Flags().GetUint32(name)
	return v
}

// openWallet reads the recovery phrase file and derives the wallet's
// selected account, wiring in the --rpc-url and --path persistent flags.
func openWallet(cmd *cobra.Command) (*hdwallet.Wallet, error) {
	phraseFile := flagString(cmd, "phrase-file")
	if phraseFile == "" {
		return nil, errors.New("walletctl: --phrase-file is required")
	}

	raw, err := os.ReadFile(phraseFile)
	if err != nil {
		return nil, errors.Wrap(err, "walletctl: read phrase file")
	}

	wallet, err := hdwallet.FromPhrase(strings.TrimSpace(string(raw)), flagString(cmd, "path"), nil, flagString(cmd, "rpc-url"))
	if err != nil {
		return nil, err
	}

	accountIndex := flagUint32(cmd, "account")
	if accountIndex == 0 {
		return wallet, nil
	}
	return wallet.SelectAccount(accountIndex)
}

func newAddressCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the address for the selected account",
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := openWallet(cmd)
			if err != nil {
				return err
			}
			acc, err := wallet.Account(flagUint32(cmd, "account"))
			if err != nil {
				return err
			}
			fmt.Println(acc.Address())
			return nil
		},
	}
}

func newBalanceCommand() *cobra.Command {
	var tokenAddress string
	var useUSDC bool

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Print the ETH, ERC-20, or USDC balance of the selected account",
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := openWallet(cmd)
			if err != nil {
				return err
			}
			acc, err := wallet.Account(flagUint32(cmd, "account"))
			if err != nil {
				return err
			}
			ctx := context.Background()

			switch {
			case useUSDC:
				client := usdc.NewClient(wallet.RPC(), "")
				balance, err := client.BalanceOf(ctx, acc.Address())
				if err != nil {
					return err
				}
				fmt.Println(balance)
			case tokenAddress != "":
				client, err := wallet.ERC20(tokenAddress)
				if err != nil {
					return err
				}
				balance, err := client.BalanceOf(ctx, acc.Address())
				if err != nil {
					return err
				}
				fmt.Println(balance)
			default:
				rpcClient := wallet.RPC()
				if rpcClient == nil {
					return errors.New("walletctl: --rpc-url is required")
				}
				balance, err := rpcClient.GetBalance(ctx, acc.Address(), "latest")
				if err != nil {
					return err
				}
				fmt.Println(balance.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tokenAddress, "token", "", "ERC-20 contract address to query instead of native ETH")
	cmd.Flags().BoolVar(&useUSDC, "usdc", false, "query the USDC balance instead of native ETH")
	return cmd
}

func newSendCommand() *cobra.Command {
	var to string
	var ethValue string
	var wait bool

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Sign and submit a plain ETH transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := openWallet(cmd)
			if err != nil {
				return err
			}
			acc, err := wallet.Account(flagUint32(cmd, "account"))
			if err != nil {
				return err
			}
			rpcClient := wallet.RPC()
			if rpcClient == nil {
				return errors.New("walletctl: --rpc-url is required")
			}

			builder := txbuilder.New(acc, rpcClient)
			if err := builder.SetTo(to); err != nil {
				return err
			}
			if err := builder.SetEthValue(ethValue); err != nil {
				return err
			}

			ctx := context.Background()
			signed, err := builder.Sign(ctx)
			if err != nil {
				return err
			}

			if wait {
				receipt, err := builder.SubmitAndWait(ctx, signed, false, 2, 120)
				if err != nil {
					return err
				}
				fmt.Println(receipt.TransactionHash)
				return nil
			}

			submission, err := builder.Submit(ctx, signed)
			if err != nil {
				return err
			}
			fmt.Println(submission.TxHash)
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	cmd.Flags().StringVar(&ethValue, "value", "", "amount in ETH as a decimal string")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll for the transaction receipt before exiting")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("value")
	return cmd
}

func newTransferCommand() *cobra.Command {
	var to string
	var amount string
	var tokenAddress string
	var useUSDC bool

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Sign and submit an ERC-20 or USDC token transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := openWallet(cmd)
			if err != nil {
				return err
			}
			acc, err := wallet.Account(flagUint32(cmd, "account"))
			if err != nil {
				return err
			}
			rpcClient := wallet.RPC()
			if rpcClient == nil {
				return errors.New("walletctl: --rpc-url is required")
			}

			ctx := context.Background()

			var client *erc20.Client
			switch {
			case useUSDC:
				usdcClient := usdc.NewClient(rpcClient, "")
				address, err := usdcClient.ContractAddress(ctx)
				if err != nil {
					return err
				}
				client = erc20.NewClient(rpcClient, address)
			case tokenAddress != "":
				client, err = wallet.ERC20(tokenAddress)
				if err != nil {
					return err
				}
			default:
				return errors.New("walletctl: one of --token or --usdc is required")
			}

			data, err := client.TransferCallData(ctx, to, amount)
			if err != nil {
				return err
			}

			builder := txbuilder.New(acc, rpcClient)
			if err := builder.SetTo(client.ContractAddress()); err != nil {
				return err
			}
			if err := builder.SetData(hexutil.HexFromBytes(data, true)); err != nil {
				return err
			}

			signed, err := builder.Sign(ctx)
			if err != nil {
				return err
			}
			submission, err := builder.Submit(ctx, signed)
			if err != nil {
				return err
			}
			fmt.Println(submission.TxHash)
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	cmd.Flags().StringVar(&amount, "amount", "", "amount as a decimal string, scaled by the token's decimals")
	cmd.Flags().StringVar(&tokenAddress, "token", "", "ERC-20 contract address")
	cmd.Flags().BoolVar(&useUSDC, "usdc", false, "transfer USDC instead of an arbitrary ERC-20 token")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func newPermitCommand() *cobra.Command {
	var spender string
	var amount string
	var submit bool

	cmd := &cobra.Command{
		Use:   "permit",
		Short: "Sign (and optionally submit) an EIP-2612 USDC permit",
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := openWallet(cmd)
			if err != nil {
				return err
			}
			acc, err := wallet.Account(flagUint32(cmd, "account"))
			if err != nil {
				return err
			}
			rpcClient := wallet.RPC()
			if rpcClient == nil {
				return errors.New("walletctl: --rpc-url is required")
			}

			ctx := context.Background()
			client := usdc.NewClient(rpcClient, "")

			permit, err := client.SignPermit(ctx, acc, spender, amount, nil, nil)
			if err != nil {
				return err
			}

			fmt.Printf("owner=%s spender=%s allowance=%s nonce=%s v=%d r=0x%x s=0x%x\n",
				permit.Owner, permit.Spender, permit.Allowance.String(), permit.Nonce.String(),
				permit.V, permit.R, permit.S)

			if !submit {
				return nil
			}

			submission, err := client.SubmitPermit(ctx, acc, permit)
			if err != nil {
				return err
			}
			fmt.Println(submission.TxHash)
			return nil
		},
	}

	cmd.Flags().StringVar(&spender, "spender", "", "address granted the allowance")
	cmd.Flags().StringVar(&amount, "amount", "", "allowance amount as a decimal string, scaled by USDC's decimals")
	cmd.Flags().BoolVar(&submit, "submit", false, "also submit the permit() transaction on-chain")
	cmd.MarkFlagRequired("spender")
	cmd.MarkFlagRequired("amount")
	return cmd
}
