package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/kursadbilgin/certmint/internal/domain"
)

type column int

const (
	colAddress column = iota
	colName
	colTitle
	colDate
	colLink
	colExtra
)

var columnAliases = map[string]column{
	"studentaddress":  colAddress,
	"subjectaddress":  colAddress,
	"address":         colAddress,
	"studentname":     colName,
	"subjectname":     colName,
	"name":            colName,
	"certificatename": colTitle,
	"credentialtitle": colTitle,
	"title":           colTitle,
	"issuedate":       colDate,
	"date":            colDate,
	"ipfslink":        colLink,
	"contentlink":     colLink,
	"link":            colLink,
	"extradata":       colExtra,
	"extra":           colExtra,
}

var requiredColumns = []struct {
	col  column
	name string
}{
	{colAddress, "StudentAddress"},
	{colName, "StudentName"},
	{colTitle, "CertificateName"},
	{colDate, "IssueDate"},
}

// headerIndex maps each known column to its position in the header row.
type headerIndex map[column]int

func makeHeaderIndex(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		col, ok := columnAliases[normalizeHeader(h)]
		if !ok {
			continue
		}
		if _, seen := idx[col]; seen {
			continue
		}
		idx[col] = i
	}
	return idx
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\uFEFF")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "")
	return strings.ReplaceAll(h, "_", "")
}

func (idx headerIndex) cell(row []string, col column) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ExtractRecords turns a CSV or XLSX document into issuance records in row order.
// Blank rows are skipped. Rows with empty fields are still returned; the
// coordinator decides their eligibility.
func ExtractRecords(data []byte, format Format) ([]domain.IssuanceRecord, error) {
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatCSV:
		rows, err = parseCSV(sanitizeUTF8(data))
	case FormatXLSX:
		rows, err = readFirstSheet(data)
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("unsupported format %q", string(format))}
	}
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, &ParseError{Reason: "missing header row"}
	}

	idx := makeHeaderIndex(rows[0])
	var missing []string
	for _, rc := range requiredColumns {
		if _, ok := idx[rc.col]; !ok {
			missing = append(missing, rc.name)
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{Reason: "missing required columns: " + strings.Join(missing, ", ")}
	}

	records := make([]domain.IssuanceRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		records = append(records, domain.IssuanceRecord{
			Row:             len(records) + 1,
			SubjectAddress:  idx.cell(row, colAddress),
			SubjectName:     idx.cell(row, colName),
			CredentialTitle: idx.cell(row, colTitle),
			IssueDate:       idx.cell(row, colDate),
			ContentLink:     idx.cell(row, colLink),
			ExtraData:       idx.cell(row, colExtra),
		})
	}

	return records, nil
}

func sanitizeUTF8(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &ParseError{Reason: "malformed csv", Err: err}
	}
	return rows, nil
}

func readFirstSheet(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Reason: "malformed xlsx", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Reason: "workbook has no sheets"}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Reason: "read sheet " + sheets[0], Err: err}
	}
	for i, row := range rows {
		for j, v := range row {
			if !utf8.ValidString(v) {
				rows[i][j] = strings.ToValidUTF8(v, "\uFFFD")
			}
		}
	}
	return rows, nil
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
