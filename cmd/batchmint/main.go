package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kursadbilgin/certmint/internal/config"
	"github.com/kursadbilgin/certmint/internal/observability"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "batchmint",
	Short: "Mint credential NFTs from a spreadsheet of recipients",
	Long: `batchmint runs the issuance pipeline locally, without the API or the worker.

Available commands:
  run       - Upload assets and metadata, then mint one credential per row
  assets    - Upload files to IPFS and export the resulting links
  template  - Write an example batch file
  students  - Search or register students in the directory
  revoke    - Revoke a minted credential

Examples:
  batchmint template --format xlsx -o batch.xlsx
  batchmint run --file batch.csv --assets-dir ./certificates
  batchmint revoke 42`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Overload()

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		logger, err = observability.NewLogger(observability.LoggerConfig{
			Service: "batchmint",
			Level:   cfg.LogLevel,
			Format:  observability.LogFormatConsole,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(assetsCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(studentsCmd)
	rootCmd.AddCommand(revokeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
