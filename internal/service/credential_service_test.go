package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/ledger"
	"go.uber.org/zap"
)

func TestParseTokenID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    int64
		wantErr bool
	}{
		{name: "decimal", raw: "42", want: 42},
		{name: "hex", raw: "0x2a", want: 42},
		{name: "trimmed", raw: " 7 ", want: 7},
		{name: "empty", raw: "", wantErr: true},
		{name: "negative", raw: "-1", wantErr: true},
		{name: "garbage", raw: "abc", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTokenID(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("ParseTokenID(%q) error = %v, want ErrValidation", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTokenID(%q) error = %v", tt.raw, err)
			}
			if got.Int64() != tt.want {
				t.Fatalf("ParseTokenID(%q) = %s, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCredentialServiceRevoke(t *testing.T) {
	t.Parallel()

	var gotID *big.Int
	revoker := &fakeRevoker{
		revokeFn: func(ctx context.Context, tokenID *big.Int) (*ledger.Receipt, error) {
			gotID = tokenID
			return &ledger.Receipt{TxHash: "0xrevoke"}, nil
		},
	}
	svc, err := NewCredentialService(revoker, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCredentialService() error = %v", err)
	}

	receipt, err := svc.Revoke(context.Background(), "12")
	if err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if receipt.TxHash != "0xrevoke" || gotID.Int64() != 12 {
		t.Fatalf("receipt = %+v, tokenID = %v", receipt, gotID)
	}
}

func TestCredentialServiceRevokeWithoutLedger(t *testing.T) {
	t.Parallel()

	svc, err := NewCredentialService(nil, nil)
	if err != nil {
		t.Fatalf("NewCredentialService() error = %v", err)
	}

	if _, err := svc.Revoke(context.Background(), "1"); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("Revoke() error = %v, want ErrUnavailable", err)
	}
	if _, err := svc.Revoke(context.Background(), "x"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Revoke(invalid) error = %v, want ErrValidation", err)
	}
}

type fakeRevoker struct {
	revokeFn func(ctx context.Context, tokenID *big.Int) (*ledger.Receipt, error)
}

func (f *fakeRevoker) Revoke(ctx context.Context, tokenID *big.Int) (*ledger.Receipt, error) {
	if f.revokeFn != nil {
		return f.revokeFn(ctx, tokenID)
	}
	return &ledger.Receipt{}, nil
}

var _ ledger.Revoker = (*fakeRevoker)(nil)
