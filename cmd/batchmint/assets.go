package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kursadbilgin/certmint/internal/contentstore"
	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/service"
	"github.com/kursadbilgin/certmint/internal/sheet"
)

var (
	assetsFormat string
	assetsOutput string
)

var assetsCmd = &cobra.Command{
	Use:   "assets <file>...",
	Short: "Upload files to IPFS and export their links",
	Long: `Upload files to IPFS and write a FileName/IPFSLink sheet.

The sheet can be pasted into the IPFSLink column of a batch file.
Failed uploads are listed as UPLOAD_FAILED.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAssets,
}

func init() {
	assetsCmd.Flags().StringVar(&assetsFormat, "format", "csv", "Export format: csv or xlsx")
	assetsCmd.Flags().StringVarP(&assetsOutput, "output", "o", "", "Export file (default: IPFSLinks.<format>)")
}

func runAssets(cmd *cobra.Command, args []string) error {
	format, err := sheet.ParseFormat(assetsFormat)
	if err != nil {
		return err
	}

	assets := make([]domain.Asset, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		assets = append(assets, domain.Asset{Name: filepath.Base(path), Data: data})
	}

	uploader, err := contentstore.NewIPFSUploader(cfg.IPFSAPIURL, cfg.IPFSGatewayURL,
		contentstore.WithRetries(cfg.ContentUploadRetries),
		contentstore.WithTimeout(cfg.ContentUploadTimeout()),
		contentstore.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	assetService, err := service.NewAssetService(uploader, nil, logger)
	if err != nil {
		return err
	}

	refs, err := assetService.Upload(cmd.Context(), assets)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, ref := range refs {
		if ref.Failed() {
			fmt.Fprintf(out, "%s\t%s\t%s\n", ref.OriginalName, domain.UploadFailed, ref.Reason)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", ref.OriginalName, ref.LocationURI)
	}

	data, fileName, err := assetService.Export(refs, format)
	if err != nil {
		return err
	}
	if assetsOutput != "" {
		fileName = assetsOutput
	}
	if err := os.WriteFile(fileName, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fileName, err)
	}
	fmt.Fprintf(out, "links written to %s\n", fileName)
	return nil
}
