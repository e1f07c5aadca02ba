package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/observability"
	"github.com/kursadbilgin/certmint/internal/retry"
)

const (
	mintMethod   = "mintCertificate"
	revokeMethod = "revokeCertificate"

	defaultConfirmTimeout = 2 * time.Minute

	reasonReverted = "transaction reverted"
)

var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Receipt describes a confirmed ledger transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	TokenID     string
}

// Submitter mints one credential per call.
type Submitter interface {
	Submit(ctx context.Context, record domain.IssuanceRecord, contentLink string, metadataLocation string) (*Receipt, error)
}

// Revoker invalidates a previously minted credential.
type Revoker interface {
	Revoke(ctx context.Context, tokenID *big.Int) (*Receipt, error)
}

type Config struct {
	RPCURL          string
	ContractAddress string
	ArtifactPath    string
	ChainID         int64
	PrivateKey      string
	ConfirmTimeout  time.Duration
	SubmitRetries   int
}

type transactor interface {
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

type waitFunc func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

type nonceFunc func(ctx context.Context) (uint64, error)

// EthereumLedger submits credential transactions to an EVM contract.
// Sends share one signer and are serialized so nonces never collide;
// confirmation waits run concurrently. Every attempt of one submission
// reuses the same nonce, so a retried send can replace but never duplicate.
type EthereumLedger struct {
	contract       transactor
	opts           *bind.TransactOpts
	wait           waitFunc
	nonceAt        nonceFunc
	policy         retry.Policy
	confirmTimeout time.Duration
	logger         *zap.Logger
	metrics        *observability.Metrics
	closeFn        func()

	sendMu sync.Mutex
}

func NewEthereumLedger(ctx context.Context, cfg Config, logger *zap.Logger) (*EthereumLedger, error) {
	artifact, err := LoadArtifact(cfg.ArtifactPath)
	if err != nil {
		return nil, err
	}
	parsed, err := artifact.parseABI()
	if err != nil {
		return nil, err
	}

	address := strings.TrimSpace(cfg.ContractAddress)
	if address == "" {
		address = strings.TrimSpace(artifact.Address)
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}

	key, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	if cfg.ChainID <= 0 {
		return nil, fmt.Errorf("chain id must be positive")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}

	client, err := ethclient.DialContext(ctx, strings.TrimSpace(cfg.RPCURL))
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}

	contract := bind.NewBoundContract(common.HexToAddress(address), parsed, client, client, client)
	wait := func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		return bind.WaitMined(ctx, client, tx)
	}

	l := newEthereumLedger(contract, opts, wait, cfg, logger)
	l.nonceAt = func(ctx context.Context) (uint64, error) {
		return client.PendingNonceAt(ctx, opts.From)
	}
	l.closeFn = client.Close

	l.logger.Info("ledger connected",
		zap.String("contract", common.HexToAddress(address).Hex()),
		zap.String("issuer", opts.From.Hex()),
		zap.Int64("chainId", cfg.ChainID),
	)

	return l, nil
}

func newEthereumLedger(contract transactor, opts *bind.TransactOpts, wait waitFunc, cfg Config, logger *zap.Logger) *EthereumLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}

	return &EthereumLedger{
		contract:       contract,
		opts:           opts,
		wait:           wait,
		policy:         retry.NewPolicy(cfg.SubmitRetries),
		confirmTimeout: confirmTimeout,
		logger:         logger,
	}
}

func parsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("issuer private key is required")
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer private key: %w", err)
	}
	return key, nil
}

func (l *EthereumLedger) SetMetrics(metrics *observability.Metrics) {
	if l == nil {
		return
	}
	l.metrics = metrics
}

func (l *EthereumLedger) Close() {
	if l == nil || l.closeFn == nil {
		return
	}
	l.closeFn()
}

// Submit mints the credential described by record and waits for the receipt.
func (l *EthereumLedger) Submit(
	ctx context.Context,
	record domain.IssuanceRecord,
	contentLink string,
	metadataLocation string,
) (*Receipt, error) {
	if l == nil || l.contract == nil {
		return nil, &SubmissionError{Reason: "ledger is not initialized"}
	}

	address := strings.TrimSpace(record.SubjectAddress)
	if !common.IsHexAddress(address) {
		return nil, &SubmissionError{Reason: fmt.Sprintf("invalid subject address %q", address)}
	}

	receipt, err := l.execute(ctx, mintMethod,
		common.HexToAddress(address),
		record.SubjectName,
		record.CredentialTitle,
		record.IssueDate,
		contentLink,
		record.ExtraData,
		metadataLocation,
	)
	l.recordResult(mintMethod, err)
	return receipt, err
}

// Revoke invalidates the credential with the given token id.
func (l *EthereumLedger) Revoke(ctx context.Context, tokenID *big.Int) (*Receipt, error) {
	if l == nil || l.contract == nil {
		return nil, &SubmissionError{Reason: "ledger is not initialized"}
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, &SubmissionError{Reason: "token id must be a non-negative integer"}
	}

	receipt, err := l.execute(ctx, revokeMethod, tokenID)
	l.recordResult(revokeMethod, err)
	return receipt, err
}

func (l *EthereumLedger) execute(ctx context.Context, method string, params ...interface{}) (*Receipt, error) {
	tx, err := l.broadcast(ctx, method, params...)
	if err != nil {
		return nil, err
	}

	txHash := tx.Hash().Hex()
	waitCtx, cancel := context.WithTimeout(ctx, l.confirmTimeout)
	defer cancel()

	receipt, err := l.wait(waitCtx, tx)
	if err != nil {
		return nil, &SubmissionError{
			Reason: "transaction not confirmed",
			TxHash: txHash,
			Cause:  err,
		}
	}
	if receipt == nil {
		return nil, &SubmissionError{Reason: "transaction not confirmed", TxHash: txHash}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &SubmissionError{Reason: reasonReverted, TxHash: txHash}
	}

	return toReceipt(txHash, receipt), nil
}

// broadcast holds the send lock for every attempt of one submission and
// pins the nonce read before the first attempt.
func (l *EthereumLedger) broadcast(ctx context.Context, method string, params ...interface{}) (*types.Transaction, error) {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &SubmissionError{Reason: "submission cancelled", Cause: err}
	}

	opts := *l.opts
	if l.nonceAt != nil {
		nonce, err := l.nonceAt(ctx)
		if err != nil {
			return nil, &SubmissionError{
				Reason:    "read issuer nonce",
				Transient: retry.IsTransient(err),
				Cause:     err,
			}
		}
		opts.Nonce = new(big.Int).SetUint64(nonce)
	}

	var tx *types.Transaction
	err := l.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		sent, err := l.send(ctx, opts, method, params...)
		if err != nil {
			observability.WithContextLogger(l.logger, ctx).Debug("ledger send attempt failed",
				zap.String("method", method),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		tx = sent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (l *EthereumLedger) send(ctx context.Context, opts bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SubmissionError{Reason: "submission cancelled", Cause: err}
	}

	opts.Context = ctx
	if opts.Nonce != nil {
		opts.Nonce = new(big.Int).Set(opts.Nonce)
	}

	tx, err := l.contract.Transact(&opts, method, params...)
	if err != nil {
		return nil, &SubmissionError{
			Reason:    "transaction rejected",
			Transient: retry.IsTransient(err),
			Cause:     err,
		}
	}
	if tx == nil {
		return nil, &SubmissionError{Reason: "transaction rejected: no transaction returned"}
	}
	return tx, nil
}

func (l *EthereumLedger) recordResult(method string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
		var submissionErr *SubmissionError
		if errors.As(err, &submissionErr) && submissionErr.Reason == reasonReverted {
			result = "reverted"
		}
	}
	l.metrics.IncLedgerSubmission(method, result)
}

func toReceipt(txHash string, receipt *types.Receipt) *Receipt {
	out := &Receipt{
		TxHash:  txHash,
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	for _, log := range receipt.Logs {
		if log == nil || len(log.Topics) != 4 || log.Topics[0] != transferTopic {
			continue
		}
		out.TokenID = new(big.Int).SetBytes(log.Topics[3].Bytes()).String()
		break
	}
	return out
}
