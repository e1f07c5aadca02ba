package sheet

import (
	"path/filepath"
	"strings"
)

// Format identifies the tabular encoding of a batch file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func (f Format) String() string { return string(f) }

// ContentType is the MIME type used when serving files of this format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FormatFromFileName resolves the format from the file extension.
func FormatFromFileName(name string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(name)), "."))
	return ParseFormat(ext)
}

// ParseFormat accepts a bare format name such as "csv" or "xlsx".
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	case "xls":
		return "", &ParseError{Reason: "legacy .xls spreadsheets are not supported, save the file as .xlsx"}
	case "":
		return "", &ParseError{Reason: "file has no extension"}
	default:
		return "", &ParseError{Reason: "unsupported file extension ." + strings.ToLower(strings.TrimSpace(value))}
	}
}
