package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/ledger"
	"go.uber.org/zap"
)

// CredentialService acts on credentials that were already minted.
type CredentialService struct {
	revoker ledger.Revoker
	logger  *zap.Logger
}

func NewCredentialService(revoker ledger.Revoker, logger *zap.Logger) (*CredentialService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialService{revoker: revoker, logger: logger}, nil
}

// Revoke invalidates the credential with the given decimal or 0x-prefixed token id.
func (s *CredentialService) Revoke(ctx context.Context, tokenID string) (*ledger.Receipt, error) {
	id, err := ParseTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	if s.revoker == nil {
		return nil, fmt.Errorf("%w: ledger is not configured", domain.ErrUnavailable)
	}

	receipt, err := s.revoker.Revoke(ctx, id)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		receipt = &ledger.Receipt{}
	}

	s.logger.Info("credential revoked",
		zap.String("tokenId", id.String()),
		zap.String("txHash", receipt.TxHash),
	)
	return receipt, nil
}

func ParseTokenID(raw string) (*big.Int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, fmt.Errorf("%w: token id is required", domain.ErrValidation)
	}

	id, ok := new(big.Int).SetString(value, 0)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid token id %q", domain.ErrValidation, raw)
	}
	return id, nil
}
