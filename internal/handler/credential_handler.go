package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/certmint/internal/ledger"
)

type CredentialService interface {
	Revoke(ctx context.Context, tokenID string) (*ledger.Receipt, error)
}

type CredentialHandler struct {
	service CredentialService
}

func NewCredentialHandler(service CredentialService) (*CredentialHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("credential service is required")
	}
	return &CredentialHandler{service: service}, nil
}

func RegisterCredentialRoutes(router fiber.Router, service CredentialService) error {
	h, err := NewCredentialHandler(service)
	if err != nil {
		return err
	}

	router.Group("/v1").Post("/credentials/:tokenId/revoke", h.Revoke)
	return nil
}

type revokeResponse struct {
	TokenID     string `json:"tokenId"`
	Status      string `json:"status"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

func (h *CredentialHandler) Revoke(c *fiber.Ctx) error {
	tokenID := strings.TrimSpace(c.Params("tokenId"))
	receipt, err := h.service.Revoke(requestContext(c), tokenID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(revokeResponse{
		TokenID:     tokenID,
		Status:      "REVOKED",
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
	})
}
