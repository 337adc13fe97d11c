// Package client is a polling SDK for the job progress HTTP API. Workers use
// Report and UpdateCompleted; pollers use Get or Wait.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/job-progress-tracker/internal/id/uuid"
)

// Job statuses reported by the server.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

var (
	// ErrNotFound is returned when the server has no live record for the job.
	ErrNotFound = errors.New("job not found")
	// ErrBadRequest is returned when the server rejects the request.
	ErrBadRequest = errors.New("bad request")
)

// Progress mirrors the server's progress view.
type Progress struct {
	JobID       string `json:"jobId"`
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
	Status      string `json:"status"`
	Percentage  int    `json:"percentage"`
	ElapsedTime int64  `json:"elapsedTime"`
	Error       string `json:"error,omitempty"`
}

// Terminal reports whether the job has finished.
func (p Progress) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusError
}

// Elapsed converts ElapsedTime to a duration.
func (p Progress) Elapsed() time.Duration {
	return time.Duration(p.ElapsedTime) * time.Millisecond
}

// Report is a partial update; nil fields are omitted.
type Report struct {
	JobID  string  `json:"jobId"`
	Total  *int    `json:"total,omitempty"`
	Status *string `json:"status,omitempty"`
	Error  *string `json:"error,omitempty"`
}

// APIError carries a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("progress api: %d %s", e.StatusCode, e.Message)
}

// Unwrap maps status codes onto the package sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		return nil
	}
}

// Config controls the underlying HTTP client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// Client talks to the progress API.
type Client struct {
	http  *resty.Client
	idGen *uuid.Generator
}

// New creates a Client. Server errors (5xx) and 429 are retried.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return false
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.APIKey != "" {
		httpClient.SetHeader("X-API-Key", cfg.APIKey)
	}
	return &Client{http: httpClient, idGen: uuid.New("")}
}

// NewJobID returns a fresh time-ordered job ID for callers that do not have
// one of their own.
func (c *Client) NewJobID() (string, error) {
	id, err := c.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("new job id: %w", err)
	}
	return id, nil
}

// Get reads the current progress of jobID.
func (c *Client) Get(ctx context.Context, jobID string) (Progress, error) {
	var out Progress
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("jobId", jobID).
		SetResult(&out).
		Get("/api/progress")
	if err := checkResponse(resp, err); err != nil {
		return Progress{}, err
	}
	return out, nil
}

// Report creates or partially updates a job.
func (c *Client) Report(ctx context.Context, r Report) (Progress, error) {
	return c.send(ctx, http.MethodPost, r)
}

// UpdateCompleted sets the completed count of an existing job.
func (c *Client) UpdateCompleted(ctx context.Context, jobID string, completed int) (Progress, error) {
	body := struct {
		JobID     string `json:"jobId"`
		Completed int    `json:"completed"`
	}{JobID: jobID, Completed: completed}
	return c.send(ctx, http.MethodPut, body)
}

// Wait polls jobID every interval until it reaches a terminal status, the job
// disappears, or ctx is done. onPoll, when non-nil, sees every snapshot.
func (c *Client) Wait(ctx context.Context, jobID string, interval time.Duration, onPoll func(Progress)) (Progress, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p, err := c.Get(ctx, jobID)
		if err != nil {
			return Progress{}, err
		}
		if onPoll != nil {
			onPoll(p)
		}
		if p.Terminal() {
			return p, nil
		}
		select {
		case <-ctx.Done():
			return p, fmt.Errorf("wait for job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) send(ctx context.Context, method string, body any) (Progress, error) {
	var out struct {
		Success  bool     `json:"success"`
		Progress Progress `json:"progress"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Execute(method, "/api/progress")
	if err := checkResponse(resp, err); err != nil {
		return Progress{}, err
	}
	return out.Progress, nil
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("progress api request: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(resp.String())
	if jsonErr := json.Unmarshal(resp.Body(), &body); jsonErr == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: msg}
}
