package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kalambet/shopper/internal/config"
	"github.com/kalambet/shopper/internal/shopping"
)

type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// Searches run for up to the inference timeout plus one lookup per product.
	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is shopper running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// statusError is returned by decodeJSON for error responses.
type statusError struct {
	Code    int
	Message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := string(bytes.TrimSpace(body))
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
			msg = envelope.Error.Message
		}
		return &statusError{Code: resp.StatusCode, Message: msg}
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// sessionTurn mirrors the JSON form of a conversation turn.
type sessionTurn struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// sessionIdle is the snapshot state once no submission is in flight.
const sessionIdle = "idle"

type sessionSnapshot struct {
	ID    string        `json:"id"`
	State string        `json:"state"`
	Turns []sessionTurn `json:"turns"`
}

// resultAfter returns the first assistant result at or after index from.
func (s sessionSnapshot) resultAfter(from int) (shopping.SearchResult, bool) {
	for i := max(from, 0); i < len(s.Turns); i++ {
		if s.Turns[i].Role != "assistant" {
			continue
		}
		var r shopping.SearchResult
		if err := json.Unmarshal(s.Turns[i].Content, &r); err != nil {
			return shopping.SearchResult{}, false
		}
		return r, true
	}
	return shopping.SearchResult{}, false
}

func (c *apiClient) search(ctx context.Context, query string) (shopping.SearchResult, error) {
	resp, err := c.post(ctx, "/api/search", map[string]string{"query": query})
	if err != nil {
		return shopping.SearchResult{}, err
	}
	var result shopping.SearchResult
	if err := decodeJSON(resp, &result); err != nil {
		return shopping.SearchResult{}, err
	}
	return result, nil
}

func (c *apiClient) createSession(ctx context.Context) (sessionSnapshot, error) {
	var snap sessionSnapshot
	resp, err := c.post(ctx, "/api/sessions", nil)
	if err != nil {
		return snap, err
	}
	err = decodeJSON(resp, &snap)
	return snap, err
}

// sendMessage submits text and returns the snapshot taken right after the
// user turn was appended.
func (c *apiClient) sendMessage(ctx context.Context, sessionID, text string) (sessionSnapshot, error) {
	var snap sessionSnapshot
	resp, err := c.post(ctx, "/api/sessions/"+sessionID+"/messages", map[string]string{"text": text})
	if err != nil {
		return snap, err
	}
	err = decodeJSON(resp, &snap)
	return snap, err
}

func (c *apiClient) waitSession(ctx context.Context, sessionID string) (sessionSnapshot, error) {
	var snap sessionSnapshot
	resp, err := c.get(ctx, "/api/sessions/"+sessionID+"?wait=true")
	if err != nil {
		return snap, err
	}
	err = decodeJSON(resp, &snap)
	return snap, err
}
