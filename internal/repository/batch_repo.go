package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/certmint/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BatchRepository interface {
	Create(ctx context.Context, b *domain.Batch, records []*domain.BatchRecord) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	MarkProcessing(ctx context.Context, id string) (*domain.Batch, error)
	Complete(ctx context.Context, id string, report domain.BatchReport) error
	UpdateStatus(ctx context.Context, id string, status domain.BatchStatus) error
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

// Create stores the batch and its records in one transaction.
func (r *GormBatchRepo) Create(ctx context.Context, b *domain.Batch, records []*domain.BatchRecord) error {
	model := batchModelFromDomain(b)
	if model == nil {
		return errors.New("batch is required")
	}

	recordModels := make([]BatchRecordModel, 0, len(records))
	for _, rec := range records {
		if m := batchRecordModelFromDomain(rec); m != nil {
			recordModels = append(recordModels, *m)
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(recordModels) == 0 {
			return nil
		}
		return tx.CreateInBatches(&recordModels, 100).Error
	})
	if err != nil {
		return err
	}

	*b = *batchModelToDomain(model)
	return nil
}

func (r *GormBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

// MarkProcessing claims a pending batch. A nil batch means another worker
// already claimed it or it is finished.
func (r *GormBatchRepo) MarkProcessing(ctx context.Context, id string) (*domain.Batch, error) {
	var claimed *domain.Batch
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model BatchModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		if model.Status != domain.BatchStatusPending {
			return nil
		}

		model.Status = domain.BatchStatusProcessing
		if err := tx.Model(&model).Update("status", domain.BatchStatusProcessing).Error; err != nil {
			return err
		}
		claimed = batchModelToDomain(&model)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Complete stores the final tallies and status derived from report.
func (r *GormBatchRepo) Complete(ctx context.Context, id string, report domain.BatchReport) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          domain.StatusForReport(report),
			"succeeded_count": report.Succeeded,
			"failed_count":    report.Failed,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormBatchRepo) UpdateStatus(ctx context.Context, id string, status domain.BatchStatus) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
