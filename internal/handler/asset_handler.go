package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/sheet"
)

const assetFilesField = "files"

type AssetService interface {
	Upload(ctx context.Context, assets []domain.Asset) ([]domain.ContentReference, error)
	Export(refs []domain.ContentReference, format sheet.Format) ([]byte, string, error)
}

type AssetHandler struct {
	service AssetService
}

func NewAssetHandler(service AssetService) (*AssetHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("asset service is required")
	}
	return &AssetHandler{service: service}, nil
}

func RegisterAssetRoutes(router fiber.Router, service AssetService) error {
	h, err := NewAssetHandler(service)
	if err != nil {
		return err
	}

	router.Group("/v1").Post("/assets", h.UploadAssets)
	return nil
}

type uploadAssetsResponse struct {
	Total  int                       `json:"total"`
	Failed int                       `json:"failed"`
	Files  []domain.ContentReference `json:"files"`
}

// UploadAssets stores every file in "files". With ?format=csv|xlsx the links
// come back as a downloadable sheet instead of JSON.
func (h *AssetHandler) UploadAssets(c *fiber.Ctx) error {
	var exportFormat sheet.Format
	if raw := strings.TrimSpace(c.Query("format")); raw != "" {
		format, err := sheet.ParseFormat(raw)
		if err != nil {
			return toHTTPError(err)
		}
		exportFormat = format
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form is required")
	}

	assets, err := readAssets(form.File[assetFilesField])
	if err != nil {
		return toHTTPError(err)
	}

	refs, err := h.service.Upload(requestContext(c), assets)
	if err != nil {
		return toHTTPError(err)
	}

	if exportFormat != "" {
		data, fileName, err := h.service.Export(refs, exportFormat)
		if err != nil {
			return err
		}
		return sendFile(c, fileName, exportFormat, data)
	}

	failed := 0
	for _, ref := range refs {
		if ref.Failed() {
			failed++
		}
	}

	return c.Status(fiber.StatusOK).JSON(uploadAssetsResponse{
		Total:  len(refs),
		Failed: failed,
		Files:  refs,
	})
}
