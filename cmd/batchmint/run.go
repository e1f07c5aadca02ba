package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kursadbilgin/certmint/internal/contentstore"
	"github.com/kursadbilgin/certmint/internal/directory"
	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/ledger"
	"github.com/kursadbilgin/certmint/internal/service"
)

var (
	runFile        string
	runAssetsDir   string
	runConcurrency int
	runResolve     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Mint one credential per row of a CSV or XLSX batch file",
	Long: `Mint one credential per row of a CSV or XLSX batch file.

Rows whose IPFSLink is "file:<name>" get <name> from --assets-dir uploaded first.
Every row gets an outcome; failed rows never stop the rest of the batch.`,
	RunE: runBatch,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Batch file (.csv or .xlsx)")
	runCmd.Flags().StringVar(&runAssetsDir, "assets-dir", "", "Directory holding the files referenced as file:<name>")
	runCmd.Flags().IntVarP(&runConcurrency, "concurrency", "c", 0, "Records processed at once (default: BATCH_CONCURRENCY)")
	runCmd.Flags().BoolVar(&runResolve, "resolve-names", false, "Complete missing student names from the directory")
	_ = runCmd.MarkFlagRequired("file")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireLedger(); err != nil {
		return err
	}
	ctx := cmd.Context()

	data, err := os.ReadFile(runFile)
	if err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}
	assets, err := readAssetDir(runAssetsDir)
	if err != nil {
		return err
	}

	records, err := service.PrepareRecords(filepath.Base(runFile), data, assets)
	if err != nil {
		return err
	}

	if runResolve || cfg.ResolveSubjectNames {
		students, err := directory.NewClient(cfg.DirectoryURL)
		if err != nil {
			return err
		}
		records = service.ResolveNames(ctx, students, records, logger)
	}

	uploader, err := contentstore.NewIPFSUploader(cfg.IPFSAPIURL, cfg.IPFSGatewayURL,
		contentstore.WithRetries(cfg.ContentUploadRetries),
		contentstore.WithTimeout(cfg.ContentUploadTimeout()),
		contentstore.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	eth, err := ledger.NewEthereumLedger(ctx, cfg.Ledger(), logger)
	if err != nil {
		return err
	}
	defer eth.Close()

	concurrency := runConcurrency
	if concurrency <= 0 {
		concurrency = cfg.BatchConcurrency
	}

	out := cmd.OutOrStdout()
	coordinator, err := service.NewCoordinator(uploader, eth, service.CoordinatorOptions{
		Concurrency: concurrency,
		Observer:    progressPrinter(cmd.ErrOrStderr()),
	}, logger)
	if err != nil {
		return err
	}

	logger.Info("batch run started",
		zap.String("file", runFile),
		zap.Int("records", len(records)),
		zap.Int("concurrency", concurrency),
	)

	report := coordinator.Run(ctx, records)
	printReport(out, report)
	return nil
}

func progressPrinter(w io.Writer) service.ObserverFunc {
	return func(ctx context.Context, event domain.ProgressEvent) {
		fmt.Fprintf(w, "[%d/%d] %s\n", event.Index+1, event.Total, event.Stage)
	}
}

func printReport(w io.Writer, report domain.BatchReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tADDRESS\tSTATUS\tTX\tTOKEN\tERROR")
	for _, outcome := range report.Outcomes {
		status := "OK"
		if !outcome.Succeeded {
			status = outcome.Stage.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			outcome.Record.Row,
			outcome.Record.SubjectAddress,
			status,
			outcome.TxHash,
			outcome.TokenID,
			outcome.Error,
		)
	}
	_ = tw.Flush()
	fmt.Fprintln(w, report.Summary())
}

func readAssetDir(dir string) ([]domain.Asset, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read assets dir: %w", err)
	}

	assets := make([]domain.Asset, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read asset %s: %w", entry.Name(), err)
		}
		assets = append(assets, domain.Asset{Name: entry.Name(), Data: data})
	}
	return assets, nil
}
