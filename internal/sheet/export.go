package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kursadbilgin/certmint/internal/domain"
)

const (
	TemplateSheetName = "BatchMintExample"
	LinksSheetName    = "IPFSLinks"
)

// TemplateHeader lists the columns of the example batch file.
var TemplateHeader = []string{"StudentAddress", "StudentName", "CertificateName", "IssueDate", "IPFSLink", "ExtraData"}

var templateRows = [][]string{
	{"0x1234567890abcdef1234567890abcdef12345678", "Đình Đức Lâm", "Bachelor of Science", "2025-07-01", "http://localhost:8080/ipfs/EXAMPLE_HASH", ""},
	{"0xabcdef1234567890abcdef1234567890abcdef12", "Trần Đức Việt", "Master of Science", "2025-07-02", "http://localhost:8080/ipfs/EXAMPLE_HASH2", ""},
}

// Template renders an example batch file with two sample rows.
func Template(format Format) ([]byte, error) {
	rows := append([][]string{TemplateHeader}, templateRows...)
	return write(format, TemplateSheetName, rows)
}

// TemplateFileName is the download name of the example batch file.
func TemplateFileName(format Format) string {
	return "batch_mint_example." + format.String()
}

// Links renders uploaded content references as a FileName,IPFSLink table.
func Links(refs []domain.ContentReference, format Format) ([]byte, error) {
	rows := make([][]string, 0, len(refs)+1)
	rows = append(rows, []string{"FileName", "IPFSLink"})
	for _, ref := range refs {
		rows = append(rows, []string{ref.OriginalName, ref.LocationURI})
	}
	return write(format, LinksSheetName, rows)
}

// LinksFileName is the download name of an exported links table.
func LinksFileName(format Format) string {
	return "ipfs_links." + format.String()
}

func write(format Format, sheetName string, rows [][]string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return writeCSV(rows)
	case FormatXLSX:
		return writeXLSX(sheetName, rows)
	default:
		_, err := ParseFormat(string(format))
		return nil, err
	}
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func writeXLSX(sheetName string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
