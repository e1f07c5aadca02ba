package repository

import (
	"time"

	"github.com/kursadbilgin/certmint/internal/domain"
)

// BatchModel is the persistence model for the batches table.
type BatchModel struct {
	ID             string             `gorm:"type:uuid;primaryKey"`
	CorrelationID  string             `gorm:"type:varchar(36);not null"`
	FileName       string             `gorm:"type:text;not null"`
	TotalCount     int                `gorm:"not null"`
	SucceededCount int                `gorm:"not null;default:0"`
	FailedCount    int                `gorm:"not null;default:0"`
	Status         domain.BatchStatus `gorm:"type:varchar(20);not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (BatchModel) TableName() string {
	return "batches"
}

// BatchRecordModel is the persistence model for batch_records.
// Cells copied from the batch file are unbounded text so that an oversized
// value fails its own record instead of the batch insert.
type BatchRecordModel struct {
	ID              string       `gorm:"type:uuid;primaryKey"`
	BatchID         string       `gorm:"type:uuid;not null"`
	RecordIndex     int          `gorm:"not null"`
	Row             int          `gorm:"column:source_row;not null"`
	SubjectAddress  string       `gorm:"type:text;not null"`
	SubjectName     string       `gorm:"type:text;not null"`
	CredentialTitle string       `gorm:"type:text;not null"`
	IssueDate       string       `gorm:"type:text;not null"`
	ContentLink     string       `gorm:"type:text;not null"`
	ExtraData       string       `gorm:"type:text;not null"`
	AssetName       *string      `gorm:"type:text"`
	AssetData       []byte       `gorm:"type:bytea"`
	Processed       bool         `gorm:"not null;default:false"`
	Stage           domain.Stage `gorm:"type:varchar(32);not null"`
	Error           *string      `gorm:"type:text"`
	MetadataURI     *string      `gorm:"type:text"`
	TxHash          *string      `gorm:"type:varchar(66)"`
	TokenID         *string      `gorm:"type:varchar(78)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (BatchRecordModel) TableName() string {
	return "batch_records"
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:             b.ID,
		CorrelationID:  b.CorrelationID,
		FileName:       b.FileName,
		TotalCount:     b.TotalCount,
		SucceededCount: b.SucceededCount,
		FailedCount:    b.FailedCount,
		Status:         b.Status,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func batchModelToDomain(m *BatchModel) *domain.Batch {
	if m == nil {
		return nil
	}

	return &domain.Batch{
		ID:             m.ID,
		CorrelationID:  m.CorrelationID,
		FileName:       m.FileName,
		TotalCount:     m.TotalCount,
		SucceededCount: m.SucceededCount,
		FailedCount:    m.FailedCount,
		Status:         m.Status,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func batchRecordModelFromDomain(r *domain.BatchRecord) *BatchRecordModel {
	if r == nil {
		return nil
	}

	model := &BatchRecordModel{
		ID:              r.ID,
		BatchID:         r.BatchID,
		RecordIndex:     r.Index,
		Row:             r.Record.Row,
		SubjectAddress:  r.Record.SubjectAddress,
		SubjectName:     r.Record.SubjectName,
		CredentialTitle: r.Record.CredentialTitle,
		IssueDate:       r.Record.IssueDate,
		ContentLink:     r.Record.ContentLink,
		ExtraData:       r.Record.ExtraData,
		Processed:       r.Processed,
		Stage:           r.Stage,
		Error:           r.Error,
		MetadataURI:     r.MetadataURI,
		TxHash:          r.TxHash,
		TokenID:         r.TokenID,
		UpdatedAt:       r.UpdatedAt,
	}
	if model.Stage == "" {
		model.Stage = domain.StagePending
	}
	if asset := r.Record.Asset; asset != nil {
		name := asset.Name
		model.AssetName = &name
		model.AssetData = asset.Data
	}
	return model
}

func batchRecordModelToDomain(m *BatchRecordModel) *domain.BatchRecord {
	if m == nil {
		return nil
	}

	record := domain.IssuanceRecord{
		Row:             m.Row,
		SubjectAddress:  m.SubjectAddress,
		SubjectName:     m.SubjectName,
		CredentialTitle: m.CredentialTitle,
		IssueDate:       m.IssueDate,
		ContentLink:     m.ContentLink,
		ExtraData:       m.ExtraData,
	}
	if m.AssetName != nil && len(m.AssetData) > 0 {
		record.Asset = &domain.Asset{Name: *m.AssetName, Data: m.AssetData}
	}

	stage, err := domain.ParseStageFromString(string(m.Stage))
	if err != nil {
		stage = domain.StagePending
	}

	return &domain.BatchRecord{
		ID:          m.ID,
		BatchID:     m.BatchID,
		Index:       m.RecordIndex,
		Record:      record,
		Processed:   m.Processed,
		Stage:       stage,
		Error:       m.Error,
		MetadataURI: m.MetadataURI,
		TxHash:      m.TxHash,
		TokenID:     m.TokenID,
		UpdatedAt:   m.UpdatedAt,
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
