package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsIssuanceCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncRecordSucceeded()
	metrics.IncRecordSucceeded()
	metrics.IncRecordFailed("SUBMITTING")
	metrics.ObserveStageDuration("uploading_asset", 120*time.Millisecond)
	metrics.IncBatchesInFlight()
	metrics.DecBatchesInFlight()
	metrics.IncUpload("failure")
	metrics.IncLedgerSubmission("mintCertificate", "")

	if got := testutil.ToFloat64(metrics.recordsSucceededTotal); got != 2 {
		t.Fatalf("records_succeeded_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.recordsFailedTotal.WithLabelValues("submitting")); got != 1 {
		t.Fatalf("records_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.uploadsTotal.WithLabelValues("failure")); got != 1 {
		t.Fatalf("uploads_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ledgerSubmissionsTotal.WithLabelValues("mintcertificate", "unknown")); got != 1 {
		t.Fatalf("ledger_submissions_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.batchesInflight); got != 0 {
		t.Fatalf("batches_inflight = %v, want 0", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncRecordSucceeded()
	metrics.IncRecordFailed("pending")
	metrics.ObserveStageDuration("submitting", time.Second)
	metrics.IncUpload("success")
	if metrics.Handler() == nil {
		t.Fatal("expected default handler for nil metrics")
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
