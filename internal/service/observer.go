package service

import (
	"context"

	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/repository"
	"go.uber.org/zap"
)

// ProgressObserver receives every record transition of a running batch.
type ProgressObserver interface {
	Notify(ctx context.Context, event domain.ProgressEvent)
}

// ObserverFunc adapts a function to ProgressObserver.
type ObserverFunc func(ctx context.Context, event domain.ProgressEvent)

func (f ObserverFunc) Notify(ctx context.Context, event domain.ProgressEvent) {
	f(ctx, event)
}

// Observers fans an event out to each non-nil observer in order.
type Observers []ProgressObserver

func (o Observers) Notify(ctx context.Context, event domain.ProgressEvent) {
	for _, observer := range o {
		if observer != nil {
			observer.Notify(ctx, event)
		}
	}
}

// OutcomeRecorder persists terminal outcomes as they happen so a crashed
// worker leaves a trail of what was already minted.
type OutcomeRecorder struct {
	records repository.BatchRecordRepository
	logger  *zap.Logger
}

func NewOutcomeRecorder(records repository.BatchRecordRepository, logger *zap.Logger) *OutcomeRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutcomeRecorder{records: records, logger: logger}
}

func (r *OutcomeRecorder) Notify(ctx context.Context, event domain.ProgressEvent) {
	if !event.Stage.IsTerminal() || event.Outcome == nil {
		return
	}

	if err := r.records.SaveOutcome(ctx, event.BatchID, event.Index, *event.Outcome); err != nil {
		r.logger.Error("failed to persist record outcome",
			zap.String("batchId", event.BatchID),
			zap.Int("recordIndex", event.Index),
			zap.Error(err),
		)
	}
}
