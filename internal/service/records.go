package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/sheet"
	"go.uber.org/zap"
)

const maxBatchSize = 1000

// PrepareRecords parses a batch file and attaches the raw assets its rows
// reference. A header-only file yields no records and no error. Rows naming
// an asset that was not supplied keep their link and fail eligibility later.
func PrepareRecords(fileName string, data []byte, assets []domain.Asset) ([]domain.IssuanceRecord, error) {
	format, err := sheet.FormatFromFileName(fileName)
	if err != nil {
		return nil, err
	}

	records, err := sheet.ExtractRecords(data, format)
	if err != nil {
		return nil, err
	}
	if len(records) > maxBatchSize {
		return nil, fmt.Errorf("%w: batch size exceeds %d", domain.ErrValidation, maxBatchSize)
	}

	return attachAssets(records, assets), nil
}

func attachAssets(records []domain.IssuanceRecord, assets []domain.Asset) []domain.IssuanceRecord {
	byName := make(map[string]*domain.Asset, len(assets))
	for i := range assets {
		byName[assets[i].Name] = &assets[i]
	}

	for i, record := range records {
		name, ok := record.AssetReference()
		if !ok {
			continue
		}
		asset, found := byName[name]
		if !found || len(asset.Data) == 0 {
			continue
		}

		record.ContentLink = ""
		records[i] = record.WithAsset(asset)
	}

	return records
}

// NameResolver looks up a subject in the student directory by address.
type NameResolver interface {
	ResolveByAddress(ctx context.Context, address string) (domain.Student, error)
}

// ResolveNames fills in missing subject names from the directory. Records
// that cannot be resolved are returned unchanged and fail eligibility later.
func ResolveNames(ctx context.Context, resolver NameResolver, records []domain.IssuanceRecord, logger *zap.Logger) []domain.IssuanceRecord {
	if resolver == nil {
		return records
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	resolved := make([]domain.IssuanceRecord, len(records))
	for i, record := range records {
		resolved[i] = record
		if strings.TrimSpace(record.SubjectName) != "" || strings.TrimSpace(record.SubjectAddress) == "" {
			continue
		}

		student, err := resolver.ResolveByAddress(ctx, record.SubjectAddress)
		if err != nil {
			logger.Warn("failed to resolve subject name",
				zap.Int("row", record.Row),
				zap.String("address", record.SubjectAddress),
				zap.Error(err),
			)
			continue
		}
		resolved[i] = record.WithSubjectName(student.Name)
	}

	return resolved
}
