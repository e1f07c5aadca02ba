package contentstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/observability"
	"github.com/kursadbilgin/certmint/internal/retry"
)

const (
	defaultUploadTimeout = 30 * time.Second
	addPath              = "/api/v0/add"
	defaultFileName      = "file"
)

var hashPattern = regexp.MustCompile(`"Hash"\s*:\s*"([^"]+)"`)

// Uploader stores a file and reports where it can be fetched from.
// Failures are reported through the returned reference, never as an error.
type Uploader interface {
	Upload(ctx context.Context, data []byte, displayName string) domain.ContentReference
}

// IPFSUploader adds files through the IPFS HTTP API and links them via a gateway.
type IPFSUploader struct {
	client     *resty.Client
	addURL     string
	gatewayURL string
	policy     retry.Policy
	logger     *zap.Logger
	metrics    *observability.Metrics
}

type IPFSOption func(*IPFSUploader)

// WithRetries enables bounded retry of transient failures.
func WithRetries(maxRetries int) IPFSOption {
	return func(u *IPFSUploader) {
		u.policy = retry.NewPolicy(maxRetries)
	}
}

func WithRetryPolicy(policy retry.Policy) IPFSOption {
	return func(u *IPFSUploader) {
		u.policy = policy
	}
}

func WithLogger(logger *zap.Logger) IPFSOption {
	return func(u *IPFSUploader) {
		if logger != nil {
			u.logger = logger
		}
	}
}

func WithTimeout(timeout time.Duration) IPFSOption {
	return func(u *IPFSUploader) {
		if timeout > 0 {
			u.client.SetTimeout(timeout)
		}
	}
}

func NewIPFSUploader(apiURL string, gatewayURL string, opts ...IPFSOption) (*IPFSUploader, error) {
	client := resty.New()
	client.SetTimeout(defaultUploadTimeout)
	client.SetRetryCount(0)

	return NewIPFSUploaderWithClient(apiURL, gatewayURL, client, opts...)
}

func NewIPFSUploaderWithClient(apiURL string, gatewayURL string, client *resty.Client, opts ...IPFSOption) (*IPFSUploader, error) {
	api, err := normalizeBaseURL("ipfs api", apiURL)
	if err != nil {
		return nil, err
	}
	gateway, err := normalizeBaseURL("ipfs gateway", gatewayURL)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultUploadTimeout)
	}
	// Multipart bodies are rebuilt per attempt by the retry policy.
	client.SetRetryCount(0)

	u := &IPFSUploader{
		client:     client,
		addURL:     api + addPath,
		gatewayURL: gateway,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}

	return u, nil
}

func (u *IPFSUploader) SetMetrics(metrics *observability.Metrics) {
	if u == nil {
		return
	}
	u.metrics = metrics
}

// Upload adds data to IPFS. On failure the reference carries domain.UploadFailed.
func (u *IPFSUploader) Upload(ctx context.Context, data []byte, displayName string) domain.ContentReference {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = defaultFileName
	}
	ref := domain.ContentReference{OriginalName: name}

	if u == nil || u.client == nil {
		ref.LocationURI = domain.UploadFailed
		ref.Reason = "uploader is not initialized"
		return ref
	}

	var hash string
	err := u.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		h, err := u.add(ctx, data, name)
		if err != nil {
			u.logger.Debug("ipfs add attempt failed",
				zap.String("file", name),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		hash = h
		return nil
	})
	if err != nil {
		observability.WithContextLogger(u.logger, ctx).Warn("ipfs upload failed",
			zap.String("file", name),
			zap.Error(err),
		)
		u.metrics.IncUpload("failure")
		ref.LocationURI = domain.UploadFailed
		ref.Reason = err.Error()
		return ref
	}

	u.metrics.IncUpload("success")
	ref.LocationURI = u.gatewayURL + "/ipfs/" + hash
	return ref
}

func (u *IPFSUploader) add(ctx context.Context, data []byte, name string) (string, error) {
	response, err := u.client.R().
		SetContext(ctx).
		SetFileReader("file", name, bytes.NewReader(data)).
		Post(u.addURL)
	if err != nil {
		return "", &UploadFailure{
			Message:   "ipfs request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return "", &UploadFailure{
			Message:   "ipfs returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	body := strings.TrimSpace(response.String())
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return "", &UploadFailure{
			StatusCode: statusCode,
			Message:    statusMessage(statusCode, body),
			Transient:  retry.TransientHTTPStatus(statusCode),
		}
	}

	return parseAddResponse(body)
}

// parseAddResponse extracts the content hash from an /api/v0/add response body.
// Only the Hash field is inspected; everything else is ignored.
func parseAddResponse(body string) (string, error) {
	match := hashPattern.FindStringSubmatch(body)
	if len(match) < 2 || strings.TrimSpace(match[1]) == "" {
		return "", &UploadFailure{Message: "no hash in ipfs response"}
	}

	hash := strings.TrimSpace(match[1])
	if _, err := cid.Decode(hash); err != nil {
		return "", &UploadFailure{Message: fmt.Sprintf("invalid hash %q", hash), Cause: err}
	}

	return hash, nil
}

func statusMessage(statusCode int, body string) string {
	base := fmt.Sprintf("ipfs returned status %d", statusCode)
	if body == "" {
		return base
	}
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func normalizeBaseURL(label string, raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return "", fmt.Errorf("%s url is required", label)
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return "", fmt.Errorf("invalid %s url: %w", label, err)
	}
	return trimmed, nil
}
