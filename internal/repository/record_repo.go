package repository

import (
	"context"

	"github.com/kursadbilgin/certmint/internal/domain"
	"gorm.io/gorm"
)

type BatchRecordRepository interface {
	ListByBatch(ctx context.Context, batchID string) ([]domain.BatchRecord, error)
	SaveOutcome(ctx context.Context, batchID string, index int, outcome domain.IssuanceOutcome) error
}

type GormBatchRecordRepo struct {
	db *gorm.DB
}

func NewGormBatchRecordRepo(db *gorm.DB) *GormBatchRecordRepo {
	return &GormBatchRecordRepo{db: db}
}

// ListByBatch returns the records of a batch in extraction order.
func (r *GormBatchRecordRepo) ListByBatch(ctx context.Context, batchID string) ([]domain.BatchRecord, error) {
	var models []BatchRecordModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("record_index ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.BatchRecord, 0, len(models))
	for i := range models {
		records = append(records, *batchRecordModelToDomain(&models[i]))
	}
	return records, nil
}

func (r *GormBatchRecordRepo) SaveOutcome(ctx context.Context, batchID string, index int, outcome domain.IssuanceOutcome) error {
	result := r.db.WithContext(ctx).
		Model(&BatchRecordModel{}).
		Where("batch_id = ? AND record_index = ?", batchID, index).
		Updates(map[string]any{
			"processed":    true,
			"stage":        outcome.Stage,
			"error":        optionalString(outcome.Error),
			"metadata_uri": optionalString(outcome.MetadataURI),
			"tx_hash":      optionalString(outcome.TxHash),
			"token_id":     optionalString(outcome.TokenID),
			"asset_data":   nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
