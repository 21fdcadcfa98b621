package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/shopper/internal/conversation"
	"github.com/kalambet/shopper/internal/metrics"
	"github.com/kalambet/shopper/internal/shopping"
)

// --- mocks ---

type mockSearcher struct {
	mu      sync.Mutex
	queries []string
	result  shopping.SearchResult
	gate    chan struct{} // when non-nil, Search blocks until closed
}

func (m *mockSearcher) Search(ctx context.Context, query string) shopping.SearchResult {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return m.result
}

func (m *mockSearcher) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// --- helpers ---

func sampleResult() shopping.SearchResult {
	return shopping.SearchResult{
		Summary: "Two good options",
		Products: []shopping.Product{
			{Name: "MX Master 3S", Price: "$99.99", OriginalPrice: "$119.99", Rating: "4.7", Reviews: "12,345", Seller: "Amazon",
				URL: "https://shop.example/mx", Image: "https://img.example/mx.jpg", Highlights: shopping.TextList{"Quiet clicks", "8K DPI", "USB-C"}},
			{Name: "MX Anywhere 3", Price: "$79.99", Seller: "Best Buy"},
		},
		Recommendation: "Go with the MX Master 3S",
	}
}

func newTestHandler(t *testing.T, s *mockSearcher) (http.Handler, *conversation.Registry) {
	t.Helper()
	reg := conversation.NewRegistry(s, time.Hour, nil)
	t.Cleanup(reg.Close)
	return NewHandler(Deps{Searcher: s, Sessions: reg, Metrics: metrics.New()}), reg
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	h.ServeHTTP(rr, req)
	return rr
}

type snapshotJSON struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Turns []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"turns"`
}

func decodeSnapshot(t *testing.T, rr *httptest.ResponseRecorder) snapshotJSON {
	t.Helper()
	var snap snapshotJSON
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	return snap
}

// --- tests ---

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, &mockSearcher{})

	rr := do(h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, &mockSearcher{})

	rr := do(h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "shopper_submissions_in_flight") {
		t.Error("metrics output missing shopper gauge")
	}
}

func TestSearch(t *testing.T) {
	s := &mockSearcher{result: sampleResult()}
	h, _ := newTestHandler(t, s)

	rr := do(h, http.MethodPost, "/api/search", `{"query":"  wireless mouse "}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var got shopping.SearchResult
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Products) != 2 || got.Products[0].OriginalPrice != "$119.99" {
		t.Errorf("unexpected result: %+v", got)
	}
	if q := s.seen(); len(q) != 1 || q[0] != "wireless mouse" {
		t.Errorf("queries = %v, want [wireless mouse]", q)
	}
}

func TestSearchRejectsBlankQuery(t *testing.T) {
	s := &mockSearcher{}
	h, _ := newTestHandler(t, s)

	for _, body := range []string{`{"query":"   "}`, `{}`, `not json`} {
		rr := do(h, http.MethodPost, "/api/search", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rr.Code)
		}
		var envelope map[string]map[string]string
		json.NewDecoder(rr.Body).Decode(&envelope)
		if envelope["error"]["type"] != "invalid_request_error" {
			t.Errorf("body %q: error envelope = %v", body, envelope)
		}
	}
	if len(s.seen()) != 0 {
		t.Errorf("searcher called for blank queries")
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := &mockSearcher{result: sampleResult()}
	h, _ := newTestHandler(t, s)

	rr := do(h, http.MethodPost, "/api/sessions", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}
	created := decodeSnapshot(t, rr)
	if created.ID == "" || created.State != "idle" || len(created.Turns) != 0 {
		t.Fatalf("unexpected new session: %+v", created)
	}

	rr = do(h, http.MethodPost, "/api/sessions/"+created.ID+"/messages", `{"text":"wireless mouse"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("post status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = do(h, http.MethodGet, "/api/sessions/"+created.ID+"?wait=true", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	snap := decodeSnapshot(t, rr)
	if snap.State != "idle" {
		t.Errorf("state = %q, want idle", snap.State)
	}
	if len(snap.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(snap.Turns))
	}
	if snap.Turns[0].Role != "user" || string(snap.Turns[0].Content) != `"wireless mouse"` {
		t.Errorf("user turn = %s %s", snap.Turns[0].Role, snap.Turns[0].Content)
	}
	if snap.Turns[1].Role != "assistant" || !strings.Contains(string(snap.Turns[1].Content), `"summary":"Two good options"`) {
		t.Errorf("assistant turn = %s", snap.Turns[1].Content)
	}
}

func TestPostMessageErrors(t *testing.T) {
	s := &mockSearcher{result: sampleResult(), gate: make(chan struct{})}
	h, reg := newTestHandler(t, s)
	defer close(s.gate)

	if rr := do(h, http.MethodPost, "/api/sessions/nope/messages", `{"text":"x"}`); rr.Code != http.StatusNotFound {
		t.Errorf("unknown session: status = %d, want 404", rr.Code)
	}
	if rr := do(h, http.MethodGet, "/api/sessions/nope", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown session GET: status = %d, want 404", rr.Code)
	}

	sess := reg.Create()
	path := "/api/sessions/" + sess.ID() + "/messages"

	if rr := do(h, http.MethodPost, path, `{"text":"  "}`); rr.Code != http.StatusBadRequest {
		t.Errorf("blank text: status = %d, want 400", rr.Code)
	}
	if rr := do(h, http.MethodPost, path, `{"text":"first"}`); rr.Code != http.StatusAccepted {
		t.Fatalf("first: status = %d", rr.Code)
	}
	rr := do(h, http.MethodPost, path, `{"text":"second"}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("busy: status = %d, want 409", rr.Code)
	}
	if n := len(sess.Snapshot().Turns); n != 1 {
		t.Errorf("turns = %d, want 1", n)
	}
}
