package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/certmint/internal/contentstore"
	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/ledger"
	"github.com/kursadbilgin/certmint/internal/metadata"
	"github.com/kursadbilgin/certmint/internal/observability"
	"github.com/kursadbilgin/certmint/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minCoordinatorConcurrency = 1

type CoordinatorOptions struct {
	// Concurrency bounds how many records run at once. 1 keeps the run strictly serial.
	Concurrency int
	RateLimiter ratelimit.RateLimiter
	// Observer receives the events of every run.
	Observer ProgressObserver
}

// Coordinator drives each record of a batch through upload, metadata and
// ledger submission and collects the outcomes into a BatchReport.
type Coordinator struct {
	uploader    contentstore.Uploader
	submitter   ledger.Submitter
	rateLimiter ratelimit.RateLimiter
	observer    ProgressObserver
	concurrency int
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	newID       func() string
}

func NewCoordinator(
	uploader contentstore.Uploader,
	submitter ledger.Submitter,
	opts CoordinatorOptions,
	logger *zap.Logger,
) (*Coordinator, error) {
	if uploader == nil {
		return nil, fmt.Errorf("content uploader is required")
	}
	if submitter == nil {
		return nil, fmt.Errorf("ledger submitter is required")
	}

	concurrency := opts.Concurrency
	if concurrency < minCoordinatorConcurrency {
		concurrency = minCoordinatorConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		uploader:    uploader,
		submitter:   submitter,
		rateLimiter: opts.RateLimiter,
		observer:    opts.Observer,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

func (c *Coordinator) SetMetrics(metrics *observability.Metrics) {
	if c == nil {
		return
	}
	c.metrics = metrics
}

// Run processes records under a freshly generated batch ID.
func (c *Coordinator) Run(ctx context.Context, records []domain.IssuanceRecord) domain.BatchReport {
	return c.RunBatch(ctx, c.newID(), records, nil)
}

// RunBatch processes records in extraction order and always returns one
// outcome per record. observer, if set, receives this run's events in
// addition to the coordinator's own observer.
func (c *Coordinator) RunBatch(
	ctx context.Context,
	batchID string,
	records []domain.IssuanceRecord,
	observer ProgressObserver,
) domain.BatchReport {
	if ctx == nil {
		ctx = context.Background()
	}

	run := &batchRun{
		coordinator: c,
		batchID:     batchID,
		total:       len(records),
		observer:    Observers{c.observer, observer},
		locks:       newKeyedMutex(),
	}

	logger := observability.WithContextLogger(c.logger, ctx)
	logger.Info("batch run started",
		zap.String("batchId", batchID),
		zap.Int("records", len(records)),
		zap.Int("concurrency", c.concurrency),
	)

	outcomes := make([]domain.IssuanceOutcome, len(records))
	if c.concurrency == minCoordinatorConcurrency {
		for i, record := range records {
			if err := ctx.Err(); err != nil {
				outcomes[i] = run.abandon(ctx, i, record, err)
				continue
			}
			outcomes[i] = run.process(ctx, i, record)
		}
	} else {
		run.processConcurrently(ctx, records, outcomes)
	}

	report := domain.BatchReport{Outcomes: make([]domain.IssuanceOutcome, 0, len(outcomes))}
	for _, outcome := range outcomes {
		report.Add(outcome)
	}

	logger.Info("batch run finished",
		zap.String("batchId", batchID),
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)

	return report
}

func (c *Coordinator) wait(ctx context.Context, key string) error {
	if c.rateLimiter == nil {
		return nil
	}
	if err := c.rateLimiter.Wait(ctx, key); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return nil
}

// batchRun is the state owned by a single RunBatch call.
type batchRun struct {
	coordinator *Coordinator
	batchID     string
	total       int
	observer    ProgressObserver
	notifyMu    sync.Mutex
	locks       *keyedMutex
}

func (r *batchRun) processConcurrently(ctx context.Context, records []domain.IssuanceRecord, outcomes []domain.IssuanceOutcome) {
	// A plain group: one record's failure must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(r.coordinator.concurrency)

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			outcomes[i] = r.abandon(ctx, i, record, err)
			continue
		}

		g.Go(func() error {
			unlock := r.locks.Lock(subjectKey(record))
			defer unlock()

			if err := ctx.Err(); err != nil {
				outcomes[i] = r.abandon(ctx, i, record, err)
				return nil
			}
			outcomes[i] = r.process(ctx, i, record)
			return nil
		})
	}

	_ = g.Wait()
}

func subjectKey(record domain.IssuanceRecord) string {
	return strings.ToLower(strings.TrimSpace(record.SubjectAddress))
}

func (r *batchRun) emit(ctx context.Context, index int, stage domain.Stage, outcome *domain.IssuanceOutcome) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	// Observers must still see terminal events after the run's context ends.
	r.observer.Notify(context.WithoutCancel(ctx), domain.ProgressEvent{
		BatchID: r.batchID,
		Index:   index,
		Total:   r.total,
		Stage:   stage,
		Outcome: outcome,
	})
}

func (r *batchRun) process(ctx context.Context, index int, record domain.IssuanceRecord) domain.IssuanceOutcome {
	c := r.coordinator
	p := &recordPipeline{
		run:    r,
		index:  index,
		record: record,
		logger: observability.WithRecordLogger(observability.WithContextLogger(c.logger, ctx), r.batchID, index, record.Row),
	}
	return p.execute(ctx)
}

// abandon reports a record that was never started because ctx ended.
func (r *batchRun) abandon(ctx context.Context, index int, record domain.IssuanceRecord, cause error) domain.IssuanceOutcome {
	outcome := domain.IssuanceOutcome{
		Record: record,
		Stage:  domain.StagePending,
		Error:  fmt.Sprintf("not started: %v", cause),
	}
	r.coordinator.metrics.IncRecordFailed(domain.StagePending.String())
	r.emit(ctx, index, domain.StageFailed, &outcome)
	return outcome
}

// recordPipeline walks one record through the issuance state machine.
type recordPipeline struct {
	run         *batchRun
	index       int
	record      domain.IssuanceRecord
	logger      *zap.Logger
	stage       domain.Stage
	stageStart  time.Time
	metadataURI string
	txHash      string
}

func (p *recordPipeline) execute(ctx context.Context) domain.IssuanceOutcome {
	c := p.run.coordinator

	p.enter(ctx, domain.StagePending)
	if err := p.record.Eligible(); err != nil {
		return p.fail(ctx, err.Error())
	}

	contentLink := strings.TrimSpace(p.record.ContentLink)
	if p.record.HasAsset() {
		p.enter(ctx, domain.StageUploadingAsset)
		ref, err := p.upload(ctx, p.record.Asset.Data, p.record.Asset.Name)
		if err != nil {
			return p.fail(ctx, "asset: "+err.Error())
		}
		contentLink = ref.LocationURI
	}

	p.enter(ctx, domain.StageBuildingMetadata)
	payload, err := metadata.Marshal(metadata.Build(p.record, contentLink))
	if err != nil {
		return p.fail(ctx, fmt.Sprintf("build metadata: %v", err))
	}

	p.enter(ctx, domain.StageUploadingMetadata)
	metaRef, err := p.upload(ctx, payload, metadata.FileName(p.index))
	if err != nil {
		return p.fail(ctx, "metadata: "+err.Error())
	}
	p.metadataURI = metaRef.LocationURI

	p.enter(ctx, domain.StageSubmitting)
	if err := c.wait(ctx, ratelimit.KeyLedger); err != nil {
		return p.fail(ctx, err.Error())
	}
	receipt, err := c.submitter.Submit(ctx, p.record, contentLink, metaRef.LocationURI)
	if err != nil {
		var submissionErr *ledger.SubmissionError
		if errors.As(err, &submissionErr) {
			p.txHash = submissionErr.TxHash
		}
		return p.fail(ctx, err.Error())
	}

	return p.succeed(ctx, receipt)
}

func (p *recordPipeline) upload(ctx context.Context, data []byte, name string) (domain.ContentReference, error) {
	c := p.run.coordinator
	if err := c.wait(ctx, ratelimit.KeyContentStore); err != nil {
		return domain.ContentReference{}, err
	}

	ref := c.uploader.Upload(ctx, data, name)
	if ref.Failed() {
		reason := strings.TrimSpace(ref.Reason)
		if reason == "" {
			reason = "upload failed"
		}
		return ref, errors.New(reason)
	}
	return ref, nil
}

func (p *recordPipeline) enter(ctx context.Context, stage domain.Stage) {
	p.observeStage()
	p.stage = stage
	p.stageStart = p.run.coordinator.now()
	p.logger.Debug("record stage entered", zap.String("stage", stage.String()))
	p.run.emit(ctx, p.index, stage, nil)
}

func (p *recordPipeline) observeStage() {
	if p.stage == "" {
		return
	}
	c := p.run.coordinator
	c.metrics.ObserveStageDuration(p.stage.String(), c.now().Sub(p.stageStart))
}

func (p *recordPipeline) fail(ctx context.Context, message string) domain.IssuanceOutcome {
	p.observeStage()

	outcome := domain.IssuanceOutcome{
		Record:      p.record,
		Stage:       p.stage,
		Error:       message,
		MetadataURI: p.metadataURI,
		TxHash:      p.txHash,
	}

	p.run.coordinator.metrics.IncRecordFailed(p.stage.String())
	p.logger.Warn("record issuance failed",
		zap.String("stage", p.stage.String()),
		zap.String("error", message),
	)
	p.run.emit(ctx, p.index, domain.StageFailed, &outcome)
	return outcome
}

func (p *recordPipeline) succeed(ctx context.Context, receipt *ledger.Receipt) domain.IssuanceOutcome {
	p.observeStage()

	outcome := domain.IssuanceOutcome{
		Record:      p.record,
		Succeeded:   true,
		Stage:       domain.StageSucceeded,
		MetadataURI: p.metadataURI,
	}
	if receipt != nil {
		outcome.TxHash = receipt.TxHash
		outcome.TokenID = receipt.TokenID
	}

	p.run.coordinator.metrics.IncRecordSucceeded()
	p.logger.Info("record issued",
		zap.String("txHash", outcome.TxHash),
		zap.String("tokenId", outcome.TokenID),
	)
	p.run.emit(ctx, p.index, domain.StageSucceeded, &outcome)
	return outcome
}
