package sheet

import (
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kursadbilgin/certmint/internal/domain"
)

func TestFormatFromFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr string
	}{
		{name: "csv", input: "batch.csv", want: FormatCSV},
		{name: "xlsx uppercase", input: "Batch.XLSX", want: FormatXLSX},
		{name: "legacy xls", input: "batch.xls", wantErr: ".xls"},
		{name: "unsupported", input: "batch.txt", wantErr: ".txt"},
		{name: "no extension", input: "batch", wantErr: "no extension"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := FormatFromFileName(tt.input)
			if tt.wantErr != "" {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("FormatFromFileName() error = %v, want ParseError", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("FormatFromFileName() error = %q, want it to mention %q", err, tt.wantErr)
				}
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected ParseError to match ErrValidation")
				}
				return
			}
			if err != nil {
				t.Fatalf("FormatFromFileName() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("FormatFromFileName() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExtractRecordsCSV(t *testing.T) {
	t.Parallel()

	input := "\xEF\xBB\xBFStudentAddress,StudentName,CertificateName,IssueDate,IPFSLink,ExtraData\n" +
		"0xaaa,Ada,BSc,2025-07-01,http://localhost:8080/ipfs/H1,honours\n" +
		"\n" +
		" , , , \n" +
		"0xbbb,,MSc,2025-07-02\n"

	records, err := ExtractRecords([]byte(input), FormatCSV)
	if err != nil {
		t.Fatalf("ExtractRecords() unexpected error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	first := records[0]
	if first.Row != 1 || first.SubjectAddress != "0xaaa" || first.SubjectName != "Ada" ||
		first.CredentialTitle != "BSc" || first.IssueDate != "2025-07-01" ||
		first.ContentLink != "http://localhost:8080/ipfs/H1" || first.ExtraData != "honours" {
		t.Fatalf("unexpected first record: %+v", first)
	}

	second := records[1]
	if second.Row != 2 || second.SubjectAddress != "0xbbb" || second.SubjectName != "" {
		t.Fatalf("unexpected second record: %+v", second)
	}
	if err := second.Eligible(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected second record to be ineligible, got %v", err)
	}
}

func TestExtractRecordsHeaderAliases(t *testing.T) {
	t.Parallel()

	input := "extra,Date,Title,Name,subject_address\n" +
		"x,2025-01-01,Diploma,Grace,0xccc\n"

	records, err := ExtractRecords([]byte(input), FormatCSV)
	if err != nil {
		t.Fatalf("ExtractRecords() unexpected error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	r := records[0]
	if r.SubjectAddress != "0xccc" || r.SubjectName != "Grace" || r.CredentialTitle != "Diploma" ||
		r.IssueDate != "2025-01-01" || r.ExtraData != "x" || r.ContentLink != "" {
		t.Fatalf("unexpected record: %+v", r)
	}
}

func TestExtractRecordsMissingColumns(t *testing.T) {
	t.Parallel()

	_, err := ExtractRecords([]byte("StudentAddress,StudentName\n0xaaa,Ada\n"), FormatCSV)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("ExtractRecords() error = %v, want ParseError", err)
	}
	if !strings.Contains(pe.Reason, "CertificateName") || !strings.Contains(pe.Reason, "IssueDate") {
		t.Fatalf("reason %q should list the missing columns", pe.Reason)
	}
}

func TestExtractRecordsEmptyInput(t *testing.T) {
	t.Parallel()

	_, err := ExtractRecords(nil, FormatCSV)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("ExtractRecords() error = %v, want ParseError", err)
	}
}

func TestExtractRecordsUnsupportedFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format Format
	}{
		{name: "unknown", format: Format("ods")},
		{name: "upper case csv", format: Format("CSV")},
		{name: "padded xlsx", format: Format(" xlsx")},
		{name: "empty", format: Format("")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			records, err := ExtractRecords([]byte("StudentAddress,StudentName,CertificateName,IssueDate\n"), tt.format)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("ExtractRecords() error = %v, want ParseError", err)
			}
			if !strings.Contains(pe.Reason, "unsupported format") {
				t.Fatalf("Reason = %q, want unsupported format", pe.Reason)
			}
			if records != nil {
				t.Fatalf("expected no records, got %d", len(records))
			}
		})
	}
}

func TestExtractRecordsHeaderOnly(t *testing.T) {
	t.Parallel()

	records, err := ExtractRecords([]byte("StudentAddress,StudentName,CertificateName,IssueDate\n"), FormatCSV)
	if err != nil {
		t.Fatalf("ExtractRecords() unexpected error = %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %d, want 0", len(records))
	}
}

func TestExtractRecordsInvalidUTF8(t *testing.T) {
	t.Parallel()

	input := []byte("StudentAddress,StudentName,CertificateName,IssueDate\n0xaaa,L\xffm,BSc,2025\n")
	records, err := ExtractRecords(input, FormatCSV)
	if err != nil {
		t.Fatalf("ExtractRecords() unexpected error = %v", err)
	}
	if got, want := records[0].SubjectName, "L\uFFFDm"; got != want {
		t.Fatalf("SubjectName = %q, want %q", got, want)
	}
}

func TestExtractRecordsXLSX(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"StudentAddress", "StudentName", "CertificateName", "IssueDate"},
		{"0xaaa", "Ada", "BSc", "2025-07-01"},
		{},
		{"0xbbb", "Grace", "MSc", "2025-07-02"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	records, err := ExtractRecords(buf.Bytes(), FormatXLSX)
	if err != nil {
		t.Fatalf("ExtractRecords() unexpected error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[1].SubjectName != "Grace" || records[1].Row != 2 {
		t.Fatalf("unexpected second record: %+v", records[1])
	}
}

func TestExtractRecordsMalformedXLSX(t *testing.T) {
	t.Parallel()

	_, err := ExtractRecords([]byte("not a zip"), FormatXLSX)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("ExtractRecords() error = %v, want ParseError", err)
	}
}
