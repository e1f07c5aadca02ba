package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kursadbilgin/certmint/internal/ledger"
	"github.com/kursadbilgin/certmint/internal/service"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke <tokenId>",
	Short: "Revoke a minted credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := service.ParseTokenID(args[0]); err != nil {
			return err
		}
		if err := cfg.RequireLedger(); err != nil {
			return err
		}

		eth, err := ledger.NewEthereumLedger(cmd.Context(), cfg.Ledger(), logger)
		if err != nil {
			return err
		}
		defer eth.Close()

		credentials, err := service.NewCredentialService(eth, logger)
		if err != nil {
			return err
		}
		receipt, err := credentials.Revoke(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "token %s revoked in tx %s (block %d)\n",
			args[0], receipt.TxHash, receipt.BlockNumber)
		return nil
	},
}
