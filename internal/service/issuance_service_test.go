package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/observability"
	"github.com/kursadbilgin/certmint/internal/queue"
	"github.com/kursadbilgin/certmint/internal/repository"
	"github.com/kursadbilgin/certmint/internal/sheet"
	"go.uber.org/zap"
)

const testBatchCSV = "StudentAddress,StudentName,CertificateName,IssueDate,IPFSLink,ExtraData\n" +
	"0x1111111111111111111111111111111111111111,Ada,Go Basics,2024-06-01,https://ipfs.io/ipfs/cid-1,\n" +
	"0x2222222222222222222222222222222222222222,Linus,Go Basics,2024-06-01,file:diploma.pdf,honors\n"

func TestIssuanceServiceCreateBatch(t *testing.T) {
	t.Parallel()

	var (
		createdBatch   *domain.Batch
		createdRecords []*domain.BatchRecord
		published      []queue.BatchJobMessage
		publishedQueue string
	)
	batches := &fakeBatchRepo{
		createFn: func(ctx context.Context, b *domain.Batch, records []*domain.BatchRecord) error {
			createdBatch = b
			createdRecords = records
			return nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.BatchJobMessage) error {
			publishedQueue = queueName
			published = append(published, msg)
			return nil
		},
	}
	svc := newTestIssuanceService(t, batches, &fakeRecordRepo{}, publisher, nil)

	ctx := observability.WithCorrelationID(context.Background(), "corr-1")
	assets := []domain.Asset{{Name: "diploma.pdf", Data: []byte("%PDF")}}
	batch, err := svc.CreateBatch(ctx, "graduates.csv", []byte(testBatchCSV), assets)
	if err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}

	if batch != createdBatch {
		t.Fatal("returned batch should be the stored batch")
	}
	if batch.Status != domain.BatchStatusPending || batch.TotalCount != 2 {
		t.Fatalf("batch = %+v, want PENDING with 2 records", batch)
	}
	if batch.CorrelationID != "corr-1" || batch.FileName != "graduates.csv" {
		t.Fatalf("batch = %+v", batch)
	}
	if len(createdRecords) != 2 {
		t.Fatalf("created records = %d, want 2", len(createdRecords))
	}
	for i, r := range createdRecords {
		if r.Index != i || r.BatchID != batch.ID || r.Stage != domain.StagePending || r.ID == "" {
			t.Fatalf("records[%d] = %+v", i, r)
		}
	}
	if createdRecords[0].Record.HasAsset() {
		t.Fatal("record 1 should not carry an asset")
	}
	second := createdRecords[1].Record
	if !second.HasAsset() || second.Asset.Name != "diploma.pdf" {
		t.Fatalf("record 2 asset = %+v, want diploma.pdf", second.Asset)
	}
	if second.ContentLink != "" {
		t.Fatalf("record 2 ContentLink = %q, want empty once the asset is attached", second.ContentLink)
	}

	if publishedQueue != queue.BatchQueueName {
		t.Fatalf("queue = %q, want %q", publishedQueue, queue.BatchQueueName)
	}
	if len(published) != 1 || published[0].BatchID != batch.ID || published[0].RecordCount != 2 || published[0].CorrelationID != "corr-1" {
		t.Fatalf("published = %+v", published)
	}
}

func TestIssuanceServiceCreateBatchRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fileName string
		data     string
		assets   []domain.Asset
		parseErr bool
	}{
		{name: "unsupported extension", fileName: "batch.txt", data: testBatchCSV, parseErr: true},
		{name: "missing columns", fileName: "batch.csv", data: "StudentAddress,StudentName\n0x1,Ada\n", parseErr: true},
		{name: "header only", fileName: "batch.csv", data: "StudentAddress,StudentName,CertificateName,IssueDate\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			batches := &fakeBatchRepo{
				createFn: func(ctx context.Context, b *domain.Batch, records []*domain.BatchRecord) error {
					t.Fatal("Create should not be called for malformed input")
					return nil
				},
			}
			publisher := &fakePublisher{
				publishFn: func(ctx context.Context, queueName string, msg queue.BatchJobMessage) error {
					t.Fatal("Publish should not be called for malformed input")
					return nil
				},
			}
			svc := newTestIssuanceService(t, batches, &fakeRecordRepo{}, publisher, nil)

			_, err := svc.CreateBatch(context.Background(), tt.fileName, []byte(tt.data), tt.assets)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("CreateBatch() error = %v, want ErrValidation", err)
			}
			var parseErr *sheet.ParseError
			if tt.parseErr != errors.As(err, &parseErr) {
				t.Fatalf("errors.As(ParseError) = %v, want %v", !tt.parseErr, tt.parseErr)
			}
		})
	}
}

func TestIssuanceServiceCreateBatchKeepsRowProblemsPerRecord(t *testing.T) {
	t.Parallel()

	longAddress := "0x" + strings.Repeat("ab", 35)
	csv := "StudentAddress,StudentName,CertificateName,IssueDate,IPFSLink\n" +
		longAddress + ",Ada," + strings.Repeat("T", 300) + ",2024-06-01,https://ipfs.io/ipfs/cid-1\n" +
		"0x2222222222222222222222222222222222222222,Linus,Go Basics,2024-06-01,file:missing.pdf\n"

	var createdRecords []*domain.BatchRecord
	batches := &fakeBatchRepo{
		createFn: func(ctx context.Context, b *domain.Batch, records []*domain.BatchRecord) error {
			createdRecords = records
			return nil
		},
	}
	svc := newTestIssuanceService(t, batches, &fakeRecordRepo{}, &fakePublisher{}, nil)

	batch, err := svc.CreateBatch(context.Background(), "batch.csv", []byte(csv), nil)
	if err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}
	if batch.TotalCount != 2 || len(createdRecords) != 2 {
		t.Fatalf("batch = %+v, records = %d, want 2", batch, len(createdRecords))
	}
	if got := createdRecords[0].Record.SubjectAddress; got != longAddress {
		t.Fatalf("records[0] address = %q, want the cell verbatim", got)
	}
	missing := createdRecords[1].Record
	if missing.HasAsset() || missing.ContentLink != "file:missing.pdf" {
		t.Fatalf("records[1] = %+v, want unattached file link", missing)
	}
	if err := missing.Eligible(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("records[1].Eligible() = %v, want ErrValidation", err)
	}
}

func TestIssuanceServiceCreateBatchPublishFailure(t *testing.T) {
	t.Parallel()

	var updatedStatus domain.BatchStatus
	batches := &fakeBatchRepo{
		updateStatusFn: func(ctx context.Context, id string, status domain.BatchStatus) error {
			updatedStatus = status
			return nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.BatchJobMessage) error {
			return errors.New("broker unavailable")
		},
	}
	svc := newTestIssuanceService(t, batches, &fakeRecordRepo{}, publisher, nil)

	assets := []domain.Asset{{Name: "diploma.pdf", Data: []byte("%PDF")}}
	_, err := svc.CreateBatch(context.Background(), "batch.csv", []byte(testBatchCSV), assets)
	if err == nil || !strings.Contains(err.Error(), "broker unavailable") {
		t.Fatalf("CreateBatch() error = %v, want publish error", err)
	}
	if updatedStatus != domain.BatchStatusFailed {
		t.Fatalf("status = %s, want FAILED", updatedStatus)
	}
}

func TestIssuanceServiceGetBatch(t *testing.T) {
	t.Parallel()

	batches := &fakeBatchRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Batch, error) {
			return &domain.Batch{ID: id, TotalCount: 1, Status: domain.BatchStatusCompleted}, nil
		},
	}
	records := &fakeRecordRepo{
		listByBatchFn: func(ctx context.Context, batchID string) ([]domain.BatchRecord, error) {
			return []domain.BatchRecord{{BatchID: batchID, Index: 0, Processed: true, Stage: domain.StageSucceeded}}, nil
		},
	}
	svc := newTestIssuanceService(t, batches, records, &fakePublisher{}, nil)

	if _, err := svc.GetBatch(context.Background(), "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("GetBatch(blank) error = %v, want ErrValidation", err)
	}

	detail, err := svc.GetBatch(context.Background(), " b-1 ")
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if detail.Batch.ID != "b-1" || len(detail.Records) != 1 || detail.Records[0].BatchID != "b-1" {
		t.Fatalf("detail = %+v", detail)
	}
}

func TestIssuanceServiceGetProgress(t *testing.T) {
	t.Parallel()

	withoutStore := newTestIssuanceService(t, &fakeBatchRepo{}, &fakeRecordRepo{}, &fakePublisher{}, nil)
	if _, err := withoutStore.GetProgress(context.Background(), "b-1"); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("GetProgress() error = %v, want ErrUnavailable", err)
	}

	reader := &fakeProgressReader{
		getFn: func(ctx context.Context, batchID string) (*domain.BatchProgress, error) {
			return &domain.BatchProgress{BatchID: batchID, Total: 3, Succeeded: 2}, nil
		},
	}
	svc := newTestIssuanceService(t, &fakeBatchRepo{}, &fakeRecordRepo{}, &fakePublisher{}, reader)

	progress, err := svc.GetProgress(context.Background(), "b-1")
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if progress.BatchID != "b-1" || progress.Completed() != 2 {
		t.Fatalf("progress = %+v", progress)
	}
}

func TestResolveNames(t *testing.T) {
	t.Parallel()

	var lookups []string
	resolver := &fakeResolver{
		resolveFn: func(ctx context.Context, address string) (domain.Student, error) {
			lookups = append(lookups, address)
			if address == "0xabc" {
				return domain.Student{Name: "Grace", Address: "0xABC"}, nil
			}
			return domain.Student{}, domain.ErrNotFound
		},
	}

	records := []domain.IssuanceRecord{
		{Row: 1, SubjectAddress: "0xabc"},
		{Row: 2, SubjectAddress: "0xdef"},
		{Row: 3, SubjectAddress: "0x123", SubjectName: "Known"},
		{Row: 4},
	}
	resolved := ResolveNames(context.Background(), resolver, records, zap.NewNop())

	if resolved[0].SubjectName != "Grace" {
		t.Fatalf("resolved[0].SubjectName = %q, want Grace", resolved[0].SubjectName)
	}
	if resolved[1].SubjectName != "" || resolved[2].SubjectName != "Known" {
		t.Fatalf("resolved = %+v", resolved)
	}
	if strings.Join(lookups, ",") != "0xabc,0xdef" {
		t.Fatalf("lookups = %v, want only records missing a name", lookups)
	}
	if records[0].SubjectName != "" {
		t.Fatal("input records must not be modified")
	}
	if got := ResolveNames(context.Background(), nil, records, nil); len(got) != len(records) {
		t.Fatal("nil resolver should return records unchanged")
	}
}

func newTestIssuanceService(
	t *testing.T,
	batches *fakeBatchRepo,
	records *fakeRecordRepo,
	publisher *fakePublisher,
	progress ProgressReader,
) *IssuanceService {
	t.Helper()

	svc, err := NewIssuanceService(batches, records, publisher, progress, zap.NewNop())
	if err != nil {
		t.Fatalf("NewIssuanceService() error = %v", err)
	}
	return svc
}

type fakeBatchRepo struct {
	createFn         func(ctx context.Context, b *domain.Batch, records []*domain.BatchRecord) error
	getByIDFn        func(ctx context.Context, id string) (*domain.Batch, error)
	markProcessingFn func(ctx context.Context, id string) (*domain.Batch, error)
	completeFn       func(ctx context.Context, id string, report domain.BatchReport) error
	updateStatusFn   func(ctx context.Context, id string, status domain.BatchStatus) error
}

func (f *fakeBatchRepo) Create(ctx context.Context, b *domain.Batch, records []*domain.BatchRecord) error {
	if f.createFn != nil {
		return f.createFn(ctx, b, records)
	}
	return nil
}

func (f *fakeBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBatchRepo) MarkProcessing(ctx context.Context, id string) (*domain.Batch, error) {
	if f.markProcessingFn != nil {
		return f.markProcessingFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeBatchRepo) Complete(ctx context.Context, id string, report domain.BatchReport) error {
	if f.completeFn != nil {
		return f.completeFn(ctx, id, report)
	}
	return nil
}

func (f *fakeBatchRepo) UpdateStatus(ctx context.Context, id string, status domain.BatchStatus) error {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, status)
	}
	return nil
}

var _ repository.BatchRepository = (*fakeBatchRepo)(nil)

type fakeRecordRepo struct {
	listByBatchFn func(ctx context.Context, batchID string) ([]domain.BatchRecord, error)
	saveOutcomeFn func(ctx context.Context, batchID string, index int, outcome domain.IssuanceOutcome) error
}

func (f *fakeRecordRepo) ListByBatch(ctx context.Context, batchID string) ([]domain.BatchRecord, error) {
	if f.listByBatchFn != nil {
		return f.listByBatchFn(ctx, batchID)
	}
	return nil, nil
}

func (f *fakeRecordRepo) SaveOutcome(ctx context.Context, batchID string, index int, outcome domain.IssuanceOutcome) error {
	if f.saveOutcomeFn != nil {
		return f.saveOutcomeFn(ctx, batchID, index, outcome)
	}
	return nil
}

var _ repository.BatchRecordRepository = (*fakeRecordRepo)(nil)

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.BatchJobMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.BatchJobMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	return nil
}

type fakeProgressReader struct {
	getFn func(ctx context.Context, batchID string) (*domain.BatchProgress, error)
}

func (f *fakeProgressReader) Get(ctx context.Context, batchID string) (*domain.BatchProgress, error) {
	if f.getFn != nil {
		return f.getFn(ctx, batchID)
	}
	return nil, domain.ErrNotFound
}

type fakeResolver struct {
	resolveFn func(ctx context.Context, address string) (domain.Student, error)
}

func (f *fakeResolver) ResolveByAddress(ctx context.Context, address string) (domain.Student, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, address)
	}
	return domain.Student{}, domain.ErrNotFound
}
