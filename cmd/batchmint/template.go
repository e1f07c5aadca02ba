package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kursadbilgin/certmint/internal/sheet"
)

var (
	templateFormat string
	templateOutput string
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write an example batch file with two sample rows",
	Args:  cobra.NoArgs,
	RunE:  runTemplate,
}

func init() {
	templateCmd.Flags().StringVar(&templateFormat, "format", "csv", "Template format: csv or xlsx")
	templateCmd.Flags().StringVarP(&templateOutput, "output", "o", "", "Output file (default: the template's own name)")
}

func runTemplate(cmd *cobra.Command, args []string) error {
	format, err := sheet.ParseFormat(templateFormat)
	if err != nil {
		return err
	}
	data, err := sheet.Template(format)
	if err != nil {
		return err
	}

	fileName := templateOutput
	if fileName == "" {
		fileName = sheet.TemplateFileName(format)
	}
	if err := os.WriteFile(fileName, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fileName, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "template written to %s\n", fileName)
	return nil
}
