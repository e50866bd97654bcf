package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to a thirdweb Engine compatible transaction relay.
type Client struct {
	baseURL       string
	accessToken   string
	backendWallet string
	chain         string
	httpClient    *http.Client
	maxRetries    int
	baseDelay     time.Duration
}

// Options configures a relay Client.
type Options struct {
	BaseURL       string
	AccessToken   string
	BackendWallet string
	Chain         string
	MaxRetries    int
	BaseDelay     time.Duration
	Timeout       time.Duration
}

// NewClient creates a new relay client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := max(opts.MaxRetries, 0)
	return &Client{
		baseURL:       opts.BaseURL,
		accessToken:   opts.AccessToken,
		backendWallet: opts.BackendWallet,
		chain:         opts.Chain,
		httpClient:    &http.Client{Timeout: timeout},
		maxRetries:    maxRetries,
		baseDelay:     opts.BaseDelay,
	}
}

// APIError is a non-2xx reply from the relay. Message carries the relay's own text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay HTTP %d: %s", e.StatusCode, e.Message)
}

// do sends one request and returns the body of a 2xx reply.
func (c *Client) do(ctx context.Context, method, path string, account string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	if c.backendWallet != "" {
		req.Header.Set("x-backend-wallet-address", c.backendWallet)
	}
	if account != "" {
		req.Header.Set("x-account-address", account)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("executing request: %w", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}
	return respBody, resp.StatusCode, nil
}

// getWithRetry performs a GET, retrying on 429 with exponential backoff.
func (c *Client) getWithRetry(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		body, code, err := c.do(ctx, http.MethodGet, path, "", nil)
		if err == nil {
			return body, nil
		}
		if code != http.StatusTooManyRequests {
			return nil, err
		}

		lastErr = fmt.Errorf("relay rate limited at %s (attempt %d/%d): %w", path, attempt+1, c.maxRetries+1, err)
		if attempt < c.maxRetries {
			delay := c.baseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, lastErr
}

// errorMessage extracts {"error":{"message":...}} or {"message":...}, falling back to the raw body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != nil && envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return string(bytes.TrimSpace(body))
}

func escape(s string) string {
	return url.PathEscape(s)
}
