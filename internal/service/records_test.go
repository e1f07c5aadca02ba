package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/sheet"
)

func TestPrepareRecords(t *testing.T) {
	t.Parallel()

	const header = "StudentAddress,StudentName,CertificateName,IssueDate,IPFSLink\n"

	tests := []struct {
		name      string
		fileName  string
		data      string
		assets    []domain.Asset
		wantCount int
		wantErr   error
	}{
		{name: "header only", fileName: "batch.csv", data: header},
		{
			name:      "attached asset",
			fileName:  "batch.csv",
			data:      header + "0x1,Ada,BSc,2024,file:diploma.pdf\n",
			assets:    []domain.Asset{{Name: "diploma.pdf", Data: []byte("%PDF")}},
			wantCount: 1,
		},
		{
			name:      "missing asset stays a row",
			fileName:  "batch.csv",
			data:      header + "0x1,Ada,BSc,2024,file:diploma.pdf\n0x2,Linus,BSc,2024,https://ipfs.io/ipfs/cid\n",
			wantCount: 2,
		},
		{
			name:      "empty asset stays a row",
			fileName:  "batch.csv",
			data:      header + "0x1,Ada,BSc,2024,file:diploma.pdf\n",
			assets:    []domain.Asset{{Name: "diploma.pdf"}},
			wantCount: 1,
		},
		{name: "unsupported extension", fileName: "batch.ods", data: header, wantErr: domain.ErrValidation},
		{
			name:     "too many rows",
			fileName: "batch.csv",
			data:     header + strings.Repeat("0x1,Ada,BSc,2024,\n", maxBatchSize+1),
			wantErr:  domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			records, err := PrepareRecords(tt.fileName, []byte(tt.data), tt.assets)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("PrepareRecords() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("PrepareRecords() unexpected error = %v", err)
			}
			if len(records) != tt.wantCount {
				t.Fatalf("records = %d, want %d", len(records), tt.wantCount)
			}
			for _, r := range records {
				name, linked := r.AssetReference()
				switch {
				case r.HasAsset() && r.ContentLink != "":
					t.Fatalf("row %d keeps link %q after attaching %s", r.Row, r.ContentLink, r.Asset.Name)
				case linked && r.Eligible() == nil:
					t.Fatalf("row %d references %q without an asset but is eligible", r.Row, name)
				}
			}
		})
	}
}

func TestPrepareRecordsParseErrorIsFatal(t *testing.T) {
	t.Parallel()

	_, err := PrepareRecords("batch.csv", []byte("StudentAddress\n0x1\n"), nil)
	var pe *sheet.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("PrepareRecords() error = %v, want ParseError", err)
	}
}
