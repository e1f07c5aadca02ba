package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kursadbilgin/certmint/internal/domain"
)

func TestReadAssetDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "alice.pdf"), []byte("pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	assets, err := readAssetDir(dir)
	if err != nil {
		t.Fatalf("readAssetDir() error = %v", err)
	}
	if len(assets) != 1 || assets[0].Name != "alice.pdf" || string(assets[0].Data) != "pdf" {
		t.Fatalf("assets = %+v", assets)
	}

	none, err := readAssetDir("")
	if err != nil || none != nil {
		t.Fatalf("readAssetDir(\"\") = %v, %v", none, err)
	}

	if _, err := readAssetDir(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing dir")
	}
}

func TestPrintReport(t *testing.T) {
	t.Parallel()

	var report domain.BatchReport
	report.Add(domain.IssuanceOutcome{
		Record:    domain.IssuanceRecord{Row: 2, SubjectAddress: "0xabc"},
		Succeeded: true,
		Stage:     domain.StageSucceeded,
		TxHash:    "0xok",
		TokenID:   "7",
	})
	report.Add(domain.IssuanceOutcome{
		Record: domain.IssuanceRecord{Row: 3, SubjectAddress: "0xdef"},
		Stage:  domain.StageUploadingAsset,
		Error:  "asset: gateway timeout",
	})

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	for _, want := range []string{"0xok", "UPLOADING_ASSET", "asset: gateway timeout", "Success: 1, Failed: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q:\n%s", want, out)
		}
	}
}

func TestProgressPrinter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	progressPrinter(&buf).Notify(context.Background(), domain.ProgressEvent{Index: 0, Total: 3, Stage: domain.StageSubmitting})

	if got := buf.String(); got != "[1/3] SUBMITTING\n" {
		t.Fatalf("progress line = %q", got)
	}
}
