package falai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Queue statuses reported by the status endpoint.
const (
	StatusInQueue    = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

type Client struct {
	queueURL     string
	storageURL   string
	apiKey       string
	pollInterval time.Duration
	httpClient   *http.Client
}

// EditInput is the request body for image edit models.
type EditInput struct {
	Prompt       string   `json:"prompt"`
	ImageURLs    []string `json:"image_urls"`
	NumImages    int      `json:"num_images"`
	AspectRatio  string   `json:"aspect_ratio,omitempty"`
	OutputFormat string   `json:"output_format,omitempty"`
	Resolution   string   `json:"resolution,omitempty"`
}

type QueueSubmitResponse struct {
	RequestID   string `json:"request_id"`
	ResponseURL string `json:"response_url"`
	StatusURL   string `json:"status_url"`
	CancelURL   string `json:"cancel_url"`
}

type LogEntry struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type QueueStatus struct {
	Status        string     `json:"status"`
	RequestID     string     `json:"request_id,omitempty"`
	QueuePosition *int       `json:"queue_position,omitempty"`
	ResponseURL   string     `json:"response_url,omitempty"`
	Logs          []LogEntry `json:"logs,omitempty"`
}

type Image struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

type EditOutput struct {
	Images      []Image `json:"images"`
	Description string  `json:"description,omitempty"`
}

type initiateUploadRequest struct {
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
}

type initiateUploadResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
}

func NewClient(queueURL, storageURL, apiKey string, pollInterval time.Duration) *Client {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Client{
		queueURL:     strings.TrimSuffix(queueURL, "/"),
		storageURL:   strings.TrimSuffix(storageURL, "/"),
		apiKey:       apiKey,
		pollInterval: pollInterval,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Upload stores data on the provider CDN and returns a URL the models can
// fetch.
func (c *Client) Upload(ctx context.Context, data []byte, contentType, fileName string) (string, error) {
	jsonData, err := json.Marshal(initiateUploadRequest{ContentType: contentType, FileName: fileName})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	initURL := c.storageURL + "/storage/upload/initiate?storage_type=fal-cdn-v3"
	var initiated initiateUploadResponse
	if err := c.doJSON(ctx, http.MethodPost, initURL, jsonData, &initiated); err != nil {
		return "", fmt.Errorf("failed to initiate upload: %w", err)
	}
	if initiated.UploadURL == "" || initiated.FileURL == "" {
		return "", fmt.Errorf("upload initiation returned no urls")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, initiated.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to upload file: status %d, body: %s", resp.StatusCode, string(body))
	}

	return initiated.FileURL, nil
}

// Submit enqueues a request for model and returns the queue handles.
func (c *Client) Submit(ctx context.Context, model string, input any) (*QueueSubmitResponse, error) {
	jsonData, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result QueueSubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, c.queueURL+"/"+strings.TrimPrefix(model, "/"), jsonData, &result); err != nil {
		return nil, fmt.Errorf("failed to submit request: %w", err)
	}
	if result.RequestID == "" {
		return nil, fmt.Errorf("request_id is empty in submit response")
	}
	return &result, nil
}

// Status polls the queue status of a submitted request, including logs.
func (c *Client) Status(ctx context.Context, statusURL string) (*QueueStatus, error) {
	u, err := url.Parse(statusURL)
	if err != nil {
		return nil, fmt.Errorf("invalid status url: %w", err)
	}
	q := u.Query()
	q.Set("logs", "1")
	u.RawQuery = q.Encode()

	var status QueueStatus
	if err := c.doJSON(ctx, http.MethodGet, u.String(), nil, &status); err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return &status, nil
}

// Result fetches the completed output of a request into out.
func (c *Client) Result(ctx context.Context, responseURL string, out any) error {
	if err := c.doJSON(ctx, http.MethodGet, responseURL, nil, out); err != nil {
		return fmt.Errorf("failed to get result: %w", err)
	}
	return nil
}

// Subscribe submits input, polls until the request completes and decodes the
// result into out. onUpdate, if set, sees every status poll.
func (c *Client) Subscribe(ctx context.Context, model string, input any, onUpdate func(QueueStatus), out any) (string, error) {
	submitted, err := c.Submit(ctx, model, input)
	if err != nil {
		return "", err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.Status(ctx, submitted.StatusURL)
		if err != nil {
			return submitted.RequestID, err
		}
		if onUpdate != nil {
			onUpdate(*status)
		}
		if status.Status == StatusCompleted {
			break
		}

		select {
		case <-ctx.Done():
			return submitted.RequestID, ctx.Err()
		case <-ticker.C:
		}
	}

	responseURL := submitted.ResponseURL
	if responseURL == "" {
		responseURL = c.queueURL + "/" + strings.TrimPrefix(model, "/") + "/requests/" + submitted.RequestID
	}
	if err := c.Result(ctx, responseURL, out); err != nil {
		return submitted.RequestID, err
	}
	return submitted.RequestID, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return nil
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d, body: %s", e.StatusCode, e.Body)
}
