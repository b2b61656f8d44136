package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/grievance-api/internal/models"
)

var (
	// ErrUnavailable marks transport failures, timeouts and non-2xx replies.
	ErrUnavailable = errors.New("classifier service unavailable")
	// ErrInvalidResponse marks replies that do not decode to known values.
	ErrInvalidResponse = errors.New("classifier service returned an invalid response")
)

const maxResponseBytes = 64 << 10

// RemoteClient talks to an external AI classification and moderation service
// over JSON/HTTP.
type RemoteClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewRemoteClient builds a client. The timeout bounds every call.
func NewRemoteClient(endpoint, apiKey string, timeout time.Duration) *RemoteClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type classifyResponse struct {
	Category string `json:"category"`
	Priority string `json:"priority"`
}

type moderateRequest struct {
	Text string `json:"text"`
}

type moderateResponse struct {
	Safe   *bool  `json:"safe"`
	Reason string `json:"reason"`
}

// Classify asks the service for a category and priority.
func (c *RemoteClient) Classify(ctx context.Context, title, description string) (models.Classification, error) {
	var out classifyResponse
	if err := c.post(ctx, "/classify", classifyRequest{Title: title, Description: description}, &out); err != nil {
		return models.Classification{}, err
	}
	category := models.GrievanceCategory(strings.ToLower(strings.TrimSpace(out.Category)))
	priority := models.GrievancePriority(strings.ToLower(strings.TrimSpace(out.Priority)))
	if !category.Valid() || !priority.Valid() {
		return models.Classification{}, fmt.Errorf("%w: category=%q priority=%q", ErrInvalidResponse, out.Category, out.Priority)
	}
	return models.Classification{Category: category, Priority: priority, Source: models.ClassifiedByAI}, nil
}

// CheckSafety asks the service whether text is acceptable.
func (c *RemoteClient) CheckSafety(ctx context.Context, text string) (models.SafetyVerdict, error) {
	var out moderateResponse
	if err := c.post(ctx, "/moderate", moderateRequest{Text: text}, &out); err != nil {
		return models.SafetyVerdict{}, err
	}
	if out.Safe == nil {
		return models.SafetyVerdict{}, fmt.Errorf("%w: missing safe flag", ErrInvalidResponse)
	}
	return models.SafetyVerdict{Safe: *out.Safe, Reason: out.Reason}, nil
}

func (c *RemoteClient) post(ctx context.Context, path string, body, dest interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode classifier request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
