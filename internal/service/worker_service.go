package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/observability"
	"github.com/kursadbilgin/certmint/internal/queue"
	"github.com/kursadbilgin/certmint/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConsumers = 1

type WorkerOptions struct {
	// Consumers is the number of batch jobs processed at once.
	Consumers int
	// Resolver completes missing subject names before a run. Optional.
	Resolver NameResolver
	// Progress receives every event of every run, e.g. the Redis progress store. Optional.
	Progress ProgressObserver
}

// WorkerService consumes batch jobs and runs them through the coordinator.
type WorkerService struct {
	batches     repository.BatchRepository
	records     repository.BatchRecordRepository
	consumer    queue.Consumer
	coordinator *Coordinator
	resolver    NameResolver
	progress    ProgressObserver
	consumers   int
	logger      *zap.Logger
	metrics     *observability.Metrics
}

func NewWorkerService(
	batches repository.BatchRepository,
	records repository.BatchRecordRepository,
	consumer queue.Consumer,
	coordinator *Coordinator,
	opts WorkerOptions,
	logger *zap.Logger,
) (*WorkerService, error) {
	if batches == nil || records == nil {
		return nil, fmt.Errorf("batch repositories are required")
	}
	if coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}

	consumers := opts.Consumers
	if consumers < minWorkerConsumers {
		consumers = minWorkerConsumers
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		batches:     batches,
		records:     records,
		consumer:    consumer,
		coordinator: coordinator,
		resolver:    opts.Resolver,
		progress:    opts.Progress,
		consumers:   consumers,
		logger:      logger,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes batch jobs until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.consumer == nil {
		return fmt.Errorf("queue consumer is required")
	}

	queueNames := queue.WorkQueueNames()
	if len(queueNames) == 0 {
		return fmt.Errorf("no work queues configured")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.consumers; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := s.consumer.Consume(groupCtx, queueName, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.BatchJobMessage) error {
	correlationID := strings.TrimSpace(msg.CorrelationID)
	if correlationID == "" {
		correlationID = msg.BatchID
	}
	ctx = observability.WithCorrelationID(ctx, correlationID)
	logger := observability.WithContextLogger(s.logger, ctx)

	batch, err := s.batches.MarkProcessing(ctx, msg.BatchID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("batch not found, skipping", zap.String("batchId", msg.BatchID))
			return nil
		}
		return fmt.Errorf("failed to claim batch: %w", err)
	}

	// Nil means another worker already claimed it; minting twice is never safe.
	if batch == nil {
		logger.Info("batch already claimed, skipping", zap.String("batchId", msg.BatchID))
		return nil
	}

	s.metrics.IncBatchesInFlight()
	defer s.metrics.DecBatchesInFlight()

	stored, err := s.records.ListByBatch(ctx, batch.ID)
	if err != nil {
		// Nothing was submitted yet, so hand the batch back for a redelivery.
		if releaseErr := s.batches.UpdateStatus(ctx, batch.ID, domain.BatchStatusPending); releaseErr != nil {
			logger.Error("failed to release batch after load error",
				zap.String("batchId", batch.ID),
				zap.Error(releaseErr),
			)
		}
		return fmt.Errorf("failed to load batch records: %w", err)
	}

	records := make([]domain.IssuanceRecord, len(stored))
	for i := range stored {
		records[i] = stored[i].Record
	}
	records = ResolveNames(ctx, s.resolver, records, logger)

	report := s.coordinator.RunBatch(ctx, batch.ID, records, Observers{
		NewOutcomeRecorder(s.records, logger),
		s.progress,
	})

	if err := s.batches.Complete(context.WithoutCancel(ctx), batch.ID, report); err != nil {
		return fmt.Errorf("failed to complete batch: %w", err)
	}

	logger.Info(report.Summary(),
		zap.String("batchId", batch.ID),
		zap.String("status", domain.StatusForReport(report).String()),
	)

	return nil
}
