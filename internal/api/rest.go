package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/shopper/internal/conversation"
	"github.com/kalambet/shopper/internal/metrics"
	"github.com/kalambet/shopper/internal/shopping"
)

const maxRequestBodySize = 1 << 20 // 1MB

// maxWait bounds GET /api/sessions/{id}?wait=true.
const maxWait = 5 * time.Minute

// Searcher runs one product search and always returns a displayable result.
type Searcher interface {
	Search(ctx context.Context, query string) shopping.SearchResult
}

// Deps holds what the HTTP surface needs.
type Deps struct {
	Searcher Searcher
	Sessions *conversation.Registry
	Metrics  *metrics.Metrics
}

// NewHandler returns the router serving the conversation page, the JSON API,
// health and metrics.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Get("/", handleIndex(deps.Sessions))
	r.Post("/submit", handleSubmit(deps.Sessions))

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", handleSearch(deps.Searcher))
		r.Post("/sessions", handleCreateSession(deps.Sessions))
		r.Get("/sessions/{id}", handleGetSession(deps.Sessions))
		r.Post("/sessions/{id}/messages", handlePostMessage(deps.Sessions))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type searchRequest struct {
	Query string `json:"query"`
}

func handleSearch(s Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		query, err := shopping.NormalizeQuery(req.Query)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required and must not be blank")
			return
		}

		writeJSON(w, http.StatusOK, s.Search(r.Context(), query))
	}
}

func handleCreateSession(sessions *conversation.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessions.Create()
		writeJSON(w, http.StatusCreated, sess.Snapshot())
	}
}

func handleGetSession(sessions *conversation.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found_error", "session not found")
			return
		}

		if r.URL.Query().Get("wait") == "true" {
			ctx, cancel := context.WithTimeout(r.Context(), maxWait)
			defer cancel()
			if err := sess.Wait(ctx); err != nil && r.Context().Err() != nil {
				return
			}
		}

		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

type messageRequest struct {
	Text string `json:"text"`
}

func handlePostMessage(sessions *conversation.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		sess, ok := sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found_error", "session not found")
			return
		}

		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		switch err := sess.Submit(r.Context(), req.Text); {
		case err == nil:
			writeJSON(w, http.StatusAccepted, sess.Snapshot())
		case errors.Is(err, conversation.ErrEmptyInput):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required and must not be blank")
		case errors.Is(err, conversation.ErrBusy):
			httpError(w, http.StatusConflict, "conflict_error", "%v", err)
		case errors.Is(err, conversation.ErrClosed):
			httpError(w, http.StatusNotFound, "not_found_error", "session not found")
		default:
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
