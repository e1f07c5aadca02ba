package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/certmint/internal/contentstore"
	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/ratelimit"
	"github.com/kursadbilgin/certmint/internal/sheet"
	"go.uber.org/zap"
)

const maxAssetsPerUpload = 500

// AssetService uploads raw credential files ahead of a batch and exports their links.
type AssetService struct {
	uploader    contentstore.Uploader
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
}

func NewAssetService(uploader contentstore.Uploader, rateLimiter ratelimit.RateLimiter, logger *zap.Logger) (*AssetService, error) {
	if uploader == nil {
		return nil, fmt.Errorf("content uploader is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AssetService{
		uploader:    uploader,
		rateLimiter: rateLimiter,
		logger:      logger,
	}, nil
}

// Upload stores every asset in order. A failed upload yields a failed
// reference in its slot and never stops the remaining uploads.
func (s *AssetService) Upload(ctx context.Context, assets []domain.Asset) ([]domain.ContentReference, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: at least one file is required", domain.ErrValidation)
	}
	if len(assets) > maxAssetsPerUpload {
		return nil, fmt.Errorf("%w: at most %d files per upload", domain.ErrValidation, maxAssetsPerUpload)
	}

	refs := make([]domain.ContentReference, 0, len(assets))
	failed := 0
	for _, asset := range assets {
		if s.rateLimiter != nil {
			if err := s.rateLimiter.Wait(ctx, ratelimit.KeyContentStore); err != nil {
				return nil, fmt.Errorf("rate limiter wait failed: %w", err)
			}
		}

		ref := s.uploader.Upload(ctx, asset.Data, asset.Name)
		if ref.Failed() {
			failed++
		}
		refs = append(refs, ref)
	}

	s.logger.Info("assets uploaded",
		zap.Int("total", len(refs)),
		zap.Int("failed", failed),
	)

	return refs, nil
}

// Export renders refs as a FileName/IPFSLink sheet and returns it with its file name.
func (s *AssetService) Export(refs []domain.ContentReference, format sheet.Format) ([]byte, string, error) {
	data, err := sheet.Links(refs, format)
	if err != nil {
		return nil, "", err
	}
	return data, sheet.LinksFileName(format), nil
}
