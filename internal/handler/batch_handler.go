package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/service"
	"github.com/kursadbilgin/certmint/internal/sheet"
)

const (
	batchFileField  = "file"
	batchAssetField = "assets"
)

type IssuanceService interface {
	CreateBatch(ctx context.Context, fileName string, data []byte, assets []domain.Asset) (*domain.Batch, error)
	GetBatch(ctx context.Context, batchID string) (*service.BatchDetail, error)
	GetProgress(ctx context.Context, batchID string) (*domain.BatchProgress, error)
}

type BatchHandler struct {
	service IssuanceService
}

func NewBatchHandler(service IssuanceService) (*BatchHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("issuance service is required")
	}
	return &BatchHandler{service: service}, nil
}

func RegisterBatchRoutes(router fiber.Router, service IssuanceService) error {
	h, err := NewBatchHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/batches", h.CreateBatch)
	v1.Get("/batches/template", h.GetTemplate)
	v1.Get("/batches/:batchId", h.GetBatch)
	v1.Get("/batches/:batchId/progress", h.GetProgress)

	return nil
}

type batchResponse struct {
	BatchID        string           `json:"batchId"`
	CorrelationID  string           `json:"correlationId,omitempty"`
	FileName       string           `json:"fileName"`
	Status         string           `json:"status"`
	TotalCount     int              `json:"totalCount"`
	SucceededCount int              `json:"succeededCount"`
	FailedCount    int              `json:"failedCount"`
	Summary        string           `json:"summary,omitempty"`
	CreatedAt      time.Time        `json:"createdAt,omitempty"`
	UpdatedAt      time.Time        `json:"updatedAt,omitempty"`
	Records        []recordResponse `json:"records,omitempty"`
}

type recordResponse struct {
	Index           int     `json:"index"`
	Row             int     `json:"row"`
	SubjectAddress  string  `json:"subjectAddress"`
	SubjectName     string  `json:"subjectName"`
	CredentialTitle string  `json:"credentialTitle"`
	IssueDate       string  `json:"issueDate"`
	Processed       bool    `json:"processed"`
	Stage           string  `json:"stage"`
	Error           *string `json:"error,omitempty"`
	MetadataURI     *string `json:"metadataUri,omitempty"`
	TxHash          *string `json:"txHash,omitempty"`
	TokenID         *string `json:"tokenId,omitempty"`
}

type progressResponse struct {
	BatchID   string    `json:"batchId"`
	Index     int       `json:"index"`
	Total     int       `json:"total"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error,omitempty"`
	Completed int       `json:"completed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateBatch accepts a multipart form with the batch sheet in "file" and
// optional raw credential files in "assets".
func (h *BatchHandler) CreateBatch(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form is required")
	}

	files := form.File[batchFileField]
	if len(files) == 0 {
		return toHTTPError(fmt.Errorf("%w: %s is required", domain.ErrValidation, batchFileField))
	}
	data, err := readFormFile(files[0])
	if err != nil {
		return toHTTPError(err)
	}

	assets, err := readAssets(form.File[batchAssetField])
	if err != nil {
		return toHTTPError(err)
	}

	batch, err := h.service.CreateBatch(requestContext(c), files[0].Filename, data, assets)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toBatchResponse(batch, nil))
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))
	detail, err := h.service.GetBatch(requestContext(c), batchID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(detail.Batch, detail.Records))
}

func (h *BatchHandler) GetProgress(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))
	progress, err := h.service.GetProgress(requestContext(c), batchID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(progressResponse{
		BatchID:   progress.BatchID,
		Index:     progress.Index,
		Total:     progress.Total,
		Stage:     progress.Stage.String(),
		Error:     progress.Error,
		Completed: progress.Completed(),
		Succeeded: progress.Succeeded,
		Failed:    progress.Failed,
		UpdatedAt: progress.UpdatedAt,
	})
}

// GetTemplate downloads an example batch sheet, csv unless ?format=xlsx.
func (h *BatchHandler) GetTemplate(c *fiber.Ctx) error {
	format, err := sheet.ParseFormat(c.Query("format", sheet.FormatCSV.String()))
	if err != nil {
		return toHTTPError(err)
	}

	data, err := sheet.Template(format)
	if err != nil {
		return err
	}

	return sendFile(c, sheet.TemplateFileName(format), format, data)
}

func sendFile(c *fiber.Ctx, fileName string, format sheet.Format, data []byte) error {
	c.Attachment(fileName)
	c.Set(fiber.HeaderContentType, format.ContentType())
	return c.Status(fiber.StatusOK).Send(data)
}

func toBatchResponse(b *domain.Batch, records []domain.BatchRecord) batchResponse {
	if b == nil {
		return batchResponse{}
	}

	resp := batchResponse{
		BatchID:        b.ID,
		CorrelationID:  b.CorrelationID,
		FileName:       b.FileName,
		Status:         b.Status.String(),
		TotalCount:     b.TotalCount,
		SucceededCount: b.SucceededCount,
		FailedCount:    b.FailedCount,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
	switch b.Status {
	case domain.BatchStatusCompleted, domain.BatchStatusPartialFailure, domain.BatchStatusFailed:
		resp.Summary = domain.BatchReport{Succeeded: b.SucceededCount, Failed: b.FailedCount}.Summary()
	}

	if len(records) > 0 {
		resp.Records = make([]recordResponse, 0, len(records))
		for _, r := range records {
			resp.Records = append(resp.Records, recordResponse{
				Index:           r.Index,
				Row:             r.Record.Row,
				SubjectAddress:  r.Record.SubjectAddress,
				SubjectName:     r.Record.SubjectName,
				CredentialTitle: r.Record.CredentialTitle,
				IssueDate:       r.Record.IssueDate,
				Processed:       r.Processed,
				Stage:           r.Stage.String(),
				Error:           r.Error,
				MetadataURI:     r.MetadataURI,
				TxHash:          r.TxHash,
				TokenID:         r.TokenID,
			})
		}
	}

	return resp
}
