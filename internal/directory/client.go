package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kursadbilgin/certmint/internal/domain"
	"github.com/kursadbilgin/certmint/internal/retry"
)

const (
	defaultTimeout = 10 * time.Second
	minSearchLen   = 2
)

// RequestError classifies a failed directory call.
type RequestError struct {
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := []string{"directory request failed"}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *RequestError) IsTransient() bool {
	return e != nil && e.Transient
}

type addStudentRequest struct {
	StudentName    string `json:"studentName"`
	StudentAddress string `json:"studentAddress"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client talks to the student directory HTTP service.
type Client struct {
	client  *resty.Client
	baseURL string
}

func NewClient(baseURL string) (*Client, error) {
	client := resty.New()
	client.SetTimeout(defaultTimeout)
	client.SetRetryCount(0)

	return NewClientWithResty(baseURL, client)
}

func NewClientWithResty(baseURL string, client *resty.Client) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("directory url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid directory url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultTimeout)
	}

	return &Client{client: client, baseURL: trimmed}, nil
}

// Search lists students whose name or address contains term. Terms shorter
// than two characters list everybody.
func (c *Client) Search(ctx context.Context, term string) ([]domain.Student, error) {
	var students []domain.Student

	req := c.client.R().
		SetContext(ctx).
		SetResult(&students).
		SetError(&errorResponse{})
	if term = strings.TrimSpace(term); len([]rune(term)) >= minSearchLen {
		req.SetQueryParam("search", term)
	}

	response, err := req.Get(c.baseURL + "/students")
	if err := classify(response, err); err != nil {
		return nil, err
	}

	return students, nil
}

// Add registers a student.
func (c *Client) Add(ctx context.Context, student domain.Student) error {
	if strings.TrimSpace(student.Name) == "" || strings.TrimSpace(student.Address) == "" {
		return fmt.Errorf("%w: name and address required", domain.ErrValidation)
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(addStudentRequest{
			StudentName:    strings.TrimSpace(student.Name),
			StudentAddress: strings.TrimSpace(student.Address),
			Email:          strings.TrimSpace(student.Email),
			Phone:          strings.TrimSpace(student.Phone),
		}).
		SetError(&errorResponse{}).
		Post(c.baseURL + "/students")

	return classify(response, err)
}

// ResolveByAddress finds the student registered under address, matching
// case-insensitively.
func (c *Client) ResolveByAddress(ctx context.Context, address string) (domain.Student, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Student{}, fmt.Errorf("%w: address is required", domain.ErrValidation)
	}

	students, err := c.Search(ctx, address)
	if err != nil {
		return domain.Student{}, err
	}
	for _, s := range students {
		if s.MatchesAddress(address) {
			return s, nil
		}
	}
	return domain.Student{}, fmt.Errorf("%w: no student with address %s", domain.ErrNotFound, address)
}

func classify(response *resty.Response, err error) error {
	if err != nil {
		return &RequestError{
			Message:   "request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return &RequestError{Message: "empty response", Transient: true}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	message := strings.TrimSpace(response.String())
	if body, ok := response.Error().(*errorResponse); ok && body != nil && body.Error != "" {
		message = body.Error
	}

	requestErr := &RequestError{
		StatusCode: statusCode,
		Message:    message,
		Transient:  retry.TransientHTTPStatus(statusCode),
	}
	if statusCode == http.StatusBadRequest {
		requestErr.Cause = domain.ErrValidation
	}
	return requestErr
}
