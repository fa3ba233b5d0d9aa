// Package videohost is the HTTP client of the external video hosting API.
//
// The host works with upload tickets: a ticket reserves a video id and an
// upload URL, the file is PUT to that URL, the host transcodes it
// asynchronously, and once the status reads "available" the video is
// finalized to obtain its player URL.
package videohost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds regular API calls.
	DefaultTimeout = 30 * time.Second
	// DefaultUploadTimeout bounds a single file upload.
	DefaultUploadTimeout = 30 * time.Minute
)

// Status is the processing state reported by the host.
type Status string

const (
	StatusUploading   Status = "uploading"
	StatusTranscoding Status = "transcoding"
	StatusAvailable   Status = "available"
	StatusError       Status = "error"
)

// Terminal reports whether no further status change is expected.
func (s Status) Terminal() bool {
	return s == StatusAvailable || s == StatusError
}

// ErrNotConfigured is returned when no base URL was configured.
var ErrNotConfigured = errors.New("video host is not configured")

// Config holds configuration for the video host client
type Config struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	UploadTimeout time.Duration
	RetryConfig   *RetryConfig
}

// RetryConfig holds retry configuration for failed requests
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig retries twice, starting at 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// Client talks to the video host.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	uploadClient *http.Client
	retryConfig  RetryConfig
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewClient creates a video host client.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.UploadTimeout == 0 {
		config.UploadTimeout = DefaultUploadTimeout
	}
	retryConfig := DefaultRetryConfig()
	if config.RetryConfig != nil {
		retryConfig = *config.RetryConfig
	}
	return &Client{
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		token:        config.Token,
		httpClient:   &http.Client{Timeout: config.Timeout},
		uploadClient: &http.Client{Timeout: config.UploadTimeout},
		retryConfig:  retryConfig,
		sleep:        sleepContext,
	}
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool { return c != nil && c.baseURL != "" }

// UploadTicket is the reservation returned by CreateUploadTicket.
type UploadTicket struct {
	VideoID   string `json:"video_id"`
	UploadURL string `json:"upload_url"`
}

// VideoStatus is the state of a hosted video.
type VideoStatus struct {
	VideoID         string `json:"video_id"`
	Status          Status `json:"status"`
	DurationSeconds int    `json:"duration_seconds"`
	Error           string `json:"error,omitempty"`
}

// FinalizeRequest carries the metadata published with a video.
type FinalizeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// FinalizeResult is returned once a video is published.
type FinalizeResult struct {
	VideoID   string `json:"video_id"`
	PlayerURL string `json:"player_url"`
}

// CreateUploadTicket reserves a video id and an upload URL.
func (c *Client) CreateUploadTicket(ctx context.Context, name string, size int64) (*UploadTicket, error) {
	body := map[string]interface{}{"title": name, "size_bytes": size}
	var ticket UploadTicket
	if err := c.doRequest(ctx, http.MethodPost, "/videos", body, &ticket); err != nil {
		return nil, fmt.Errorf("create upload ticket: %w", err)
	}
	if ticket.VideoID == "" || ticket.UploadURL == "" {
		return nil, fmt.Errorf("create upload ticket: incomplete ticket %+v", ticket)
	}
	return &ticket, nil
}

// Upload streams content to the ticket's upload URL. The body cannot be
// replayed, so uploads are not retried.
func (c *Client) Upload(ctx context.Context, uploadURL string, content io.Reader, size int64) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	target, err := c.resolve(uploadURL)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, content)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// CheckStatus returns the processing state of a video.
func (c *Client) CheckStatus(ctx context.Context, videoID string) (*VideoStatus, error) {
	var status VideoStatus
	if err := c.doRequest(ctx, http.MethodGet, "/videos/"+url.PathEscape(videoID), nil, &status); err != nil {
		return nil, fmt.Errorf("check status of %s: %w", videoID, err)
	}
	return &status, nil
}

// Finalize publishes an available video and returns its player URL.
func (c *Client) Finalize(ctx context.Context, videoID string, meta FinalizeRequest) (*FinalizeResult, error) {
	var result FinalizeResult
	if err := c.doRequest(ctx, http.MethodPost, "/videos/"+url.PathEscape(videoID)+"/finalize", meta, &result); err != nil {
		return nil, fmt.Errorf("finalize %s: %w", videoID, err)
	}
	return &result, nil
}

// Delete removes a hosted video. A video the host no longer knows is not an error.
func (c *Client) Delete(ctx context.Context, videoID string) error {
	err := c.doRequest(ctx, http.MethodDelete, "/videos/"+url.PathEscape(videoID), nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) resolve(target string) (string, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target, nil
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return c.baseURL + target, nil
}

// doRequest performs a JSON request, retrying retryable failures with
// exponential backoff.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, result interface{}) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := CalculateBackoff(attempt-1, c.retryConfig)
			var apiErr *APIError
			if errors.As(lastErr, &apiErr) && apiErr.RetryAfter > wait {
				wait = apiErr.RetryAfter
			}
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
		}

		retry, err := c.once(ctx, method, endpoint, payload, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, endpoint string, payload []byte, result interface{}) (bool, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return IsRetryableStatusCode(resp.StatusCode), apiError(resp)
	}

	if result == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return false, nil
}

// APIError is a non-2xx answer of the host.
type APIError struct {
	StatusCode int           `json:"-"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("video host error (status %d): %s", e.StatusCode, e.Message)
}

func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &APIError{StatusCode: resp.StatusCode, RetryAfter: ParseRetryAfter(resp)}
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

// IsRetryableStatusCode reports whether a status should be retried:
// 408, 429 and 5xx.
func IsRetryableStatusCode(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout || statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// CalculateBackoff returns initialBackoff * 2^attempt capped at maxBackoff.
func CalculateBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := config.InitialBackoff * time.Duration(1<<uint(attempt))
	if backoff > config.MaxBackoff || backoff <= 0 {
		return config.MaxBackoff
	}
	return backoff
}

// ParseRetryAfter reads the Retry-After header as seconds or an HTTP date.
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
