package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hostforge/internal/domain"
	"hostforge/internal/infra"
)

// Dispatch is the payload handed to the worker to start a job.
type Dispatch struct {
	JobID     string         `json:"job_id"`
	ProjectID string         `json:"project_id"`
	Type      domain.JobType `json:"type"`
}

// Options configures the worker dispatch client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
	// Attempts and Backoff shape the delivery retry. Zero values get the
	// defaults of 3 attempts with linear 1s backoff.
	Attempts int
	Backoff  time.Duration
}

// Client hands accepted jobs to the worker over HTTP. Delivery is
// at-least-once: the worker acks before executing, and jobs are idempotent
// at the step level.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	attempts   int
	backoff    time.Duration
}

// NewClient constructs a dispatch client with sane defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		attempts:   attempts,
		backoff:    backoff,
	}
}

// Enqueue delivers a job to the worker, retrying transient failures with
// linear backoff. The returned error is the last attempt's.
func (c *Client) Enqueue(ctx context.Context, dispatch Dispatch) error {
	payload, err := json.Marshal(dispatch)
	if err != nil {
		return fmt.Errorf("queue: encode dispatch: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		lastErr = c.post(ctx, payload)
		if lastErr == nil {
			return nil
		}
		c.logger.Warn().Err(lastErr).Str("job_id", dispatch.JobID).Int("attempt", attempt).
			Msg("queue: dispatch failed")
		if attempt < c.attempts {
			timer := time.NewTimer(c.backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("queue: dispatch job %s: %w", dispatch.JobID, lastErr)
}

func (c *Client) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs/dispatch", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("worker responded %d", resp.StatusCode)
	}
	return nil
}
