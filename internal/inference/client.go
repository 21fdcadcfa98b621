package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL    = "https://api.anthropic.com"
	defaultTimeout    = 120 * time.Second
	apiVersion        = "2023-06-01"
	maxErrorBodyBytes = 2048
)

// Kind classifies a failed exchange.
type Kind string

const (
	// KindRequest means the request could not be built; nothing was sent.
	KindRequest   Kind = "request"
	KindTransport Kind = "transport"
	KindStatus    Kind = "status"
	KindDecode    Kind = "decode"
)

// Error is returned for every failed CreateMessage call.
type Error struct {
	Kind   Kind
	Status int    // set for KindStatus
	Body   string // truncated upstream body, set for KindStatus
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("inference: unexpected status %d: %s", e.Status, e.Body)
	default:
		return fmt.Sprintf("inference: %s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Client talks to the Anthropic Messages API. Each call is attempted exactly once.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the public API endpoint.
func NewClient(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, baseURL string, timeout time.Duration) *Client {
	c := NewClient(apiKey, timeout)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// CreateMessage performs one request/response exchange and returns the decoded
// response. Any failure is an *Error.
func (c *Client) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindRequest, Err: fmt.Errorf("creating request: %w", err)}
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &Error{Kind: KindStatus, Status: resp.StatusCode, Body: string(respBody)}
	}

	var out MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &Error{Kind: KindDecode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return &out, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
}
