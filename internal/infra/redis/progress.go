package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kursadbilgin/certmint/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultProgressTTL = 24 * time.Hour

const (
	fieldIndex     = "index"
	fieldTotal     = "total"
	fieldStage     = "stage"
	fieldError     = "error"
	fieldSucceeded = "succeeded"
	fieldFailed    = "failed"
	fieldUpdatedAt = "updatedAt"
)

// ProgressStore keeps the latest progress event of every running batch in a Redis hash.
type ProgressStore struct {
	client *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewProgressStore(client *goredis.Client, ttl time.Duration, logger *zap.Logger) (*ProgressStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultProgressTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProgressStore{
		client: client,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}, nil
}

func progressKey(batchID string) string {
	return "certmint:progress:" + batchID
}

// Save records event as the batch's latest progress. Terminal events also
// bump the batch's succeeded/failed tallies.
func (s *ProgressStore) Save(ctx context.Context, event domain.ProgressEvent) error {
	batchID := strings.TrimSpace(event.BatchID)
	if batchID == "" {
		return fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	errText := ""
	if event.Outcome != nil {
		errText = event.Outcome.Error
	}

	key := progressKey(batchID)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldIndex, event.Index,
			fieldTotal, event.Total,
			fieldStage, event.Stage.String(),
			fieldError, errText,
			fieldUpdatedAt, s.now().UTC().Format(time.RFC3339Nano),
		)
		switch event.Stage {
		case domain.StageSucceeded:
			pipe.HIncrBy(ctx, key, fieldSucceeded, 1)
		case domain.StageFailed:
			pipe.HIncrBy(ctx, key, fieldFailed, 1)
		}
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// Notify stores the event and only logs failures; progress is best effort.
func (s *ProgressStore) Notify(ctx context.Context, event domain.ProgressEvent) {
	if err := s.Save(ctx, event); err != nil {
		s.logger.Warn("failed to store batch progress",
			zap.String("batchId", event.BatchID),
			zap.Int("recordIndex", event.Index),
			zap.Error(err),
		)
	}
}

// Get returns the latest progress of a batch or domain.ErrNotFound.
func (s *ProgressStore) Get(ctx context.Context, batchID string) (*domain.BatchProgress, error) {
	values, err := s.client.HGetAll(ctx, progressKey(batchID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read progress: %w", err)
	}
	if len(values) == 0 {
		return nil, domain.ErrNotFound
	}

	progress := &domain.BatchProgress{
		BatchID:   batchID,
		Index:     atoi(values[fieldIndex]),
		Total:     atoi(values[fieldTotal]),
		Stage:     domain.Stage(values[fieldStage]),
		Error:     values[fieldError],
		Succeeded: atoi(values[fieldSucceeded]),
		Failed:    atoi(values[fieldFailed]),
	}
	if raw := values[fieldUpdatedAt]; raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			progress.UpdatedAt = ts
		}
	}

	return progress, nil
}

func atoi(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}
