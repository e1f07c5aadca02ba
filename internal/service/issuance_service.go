package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/observability"
	"github.com/kursadbilgin/certmint/internal/queue"
	"github.com/kursadbilgin/certmint/internal/repository"
	"go.uber.org/zap"
)

// ProgressReader returns the latest progress of a running batch.
type ProgressReader interface {
	Get(ctx context.Context, batchID string) (*domain.BatchProgress, error)
}

// IssuanceService accepts batch files and hands them to workers through the queue.
type IssuanceService struct {
	batches   repository.BatchRepository
	records   repository.BatchRecordRepository
	publisher queue.Publisher
	progress  ProgressReader
	logger    *zap.Logger
}

type BatchDetail struct {
	Batch   *domain.Batch
	Records []domain.BatchRecord
}

func NewIssuanceService(
	batches repository.BatchRepository,
	records repository.BatchRecordRepository,
	publisher queue.Publisher,
	progress ProgressReader,
	logger *zap.Logger,
) (*IssuanceService, error) {
	if batches == nil || records == nil {
		return nil, fmt.Errorf("batch repositories are required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("queue publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &IssuanceService{
		batches:   batches,
		records:   records,
		publisher: publisher,
		progress:  progress,
		logger:    logger,
	}, nil
}

// CreateBatch parses and stores a batch file, then queues it for minting.
// A malformed file fails here and nothing is stored.
func (s *IssuanceService) CreateBatch(
	ctx context.Context,
	fileName string,
	data []byte,
	assets []domain.Asset,
) (*domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	records, err := PrepareRecords(fileName, data, assets)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: batch file contains no records", domain.ErrValidation)
	}

	batchID := uuid.NewString()
	correlationID, ok := observability.CorrelationIDFromContext(ctx)
	if !ok {
		correlationID = batchID
	}

	batch := &domain.Batch{
		ID:            batchID,
		CorrelationID: correlationID,
		FileName:      strings.TrimSpace(fileName),
		TotalCount:    len(records),
		Status:        domain.BatchStatusPending,
	}
	stored := make([]*domain.BatchRecord, len(records))
	for i, record := range records {
		stored[i] = &domain.BatchRecord{
			ID:      uuid.NewString(),
			BatchID: batchID,
			Index:   i,
			Record:  record,
			Stage:   domain.StagePending,
		}
	}

	if err := s.batches.Create(ctx, batch, stored); err != nil {
		return nil, err
	}

	msg := queue.BatchJobMessage{
		BatchID:       batch.ID,
		CorrelationID: correlationID,
		RecordCount:   batch.TotalCount,
	}
	if err := s.publisher.Publish(ctx, queue.BatchQueueName, msg); err != nil {
		s.logger.Error("failed to publish batch job",
			zap.String("batchId", batch.ID),
			zap.Error(err),
		)
		if updateErr := s.batches.UpdateStatus(ctx, batch.ID, domain.BatchStatusFailed); updateErr != nil {
			s.logger.Error("failed to mark batch as failed after publish error",
				zap.String("batchId", batch.ID),
				zap.Error(updateErr),
			)
			return nil, fmt.Errorf("failed to publish batch job: %w (failed to mark as failed: %v)", err, updateErr)
		}
		return nil, fmt.Errorf("failed to publish batch job: %w", err)
	}

	observability.WithContextLogger(s.logger, ctx).Info("batch queued",
		zap.String("batchId", batch.ID),
		zap.String("file", batch.FileName),
		zap.Int("records", batch.TotalCount),
	)

	return batch, nil
}

func (s *IssuanceService) GetBatch(ctx context.Context, batchID string) (*BatchDetail, error) {
	id := strings.TrimSpace(batchID)
	if id == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	records, err := s.records.ListByBatch(ctx, id)
	if err != nil {
		return nil, err
	}

	return &BatchDetail{Batch: batch, Records: records}, nil
}

func (s *IssuanceService) GetProgress(ctx context.Context, batchID string) (*domain.BatchProgress, error) {
	id := strings.TrimSpace(batchID)
	if id == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}
	if s.progress == nil {
		return nil, fmt.Errorf("%w: progress tracking is not configured", domain.ErrUnavailable)
	}

	return s.progress.Get(ctx, id)
}
