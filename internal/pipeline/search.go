package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/shopper/internal/inference"
	"github.com/kalambet/shopper/internal/metrics"
	"github.com/kalambet/shopper/internal/shopping"
)

// Messenger sends one Messages API request.
type Messenger interface {
	CreateMessage(ctx context.Context, req inference.MessageRequest) (*inference.MessageResponse, error)
}

// ImageEnricher attaches images to products without changing order or length.
type ImageEnricher interface {
	Enrich(ctx context.Context, products []shopping.Product) []shopping.Product
}

// Searcher runs one product search: prompt, model call, extraction and image
// enrichment.
type Searcher struct {
	client    Messenger
	enricher  ImageEnricher
	model     string
	maxTokens int
	metrics   *metrics.Metrics
}

// NewSearcher creates a Searcher. enricher may be nil to skip image lookups.
// maxTokens defaults to 4000.
func NewSearcher(client Messenger, enricher ImageEnricher, model string, maxTokens int, m *metrics.Metrics) *Searcher {
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	return &Searcher{
		client:    client,
		enricher:  enricher,
		model:     model,
		maxTokens: maxTokens,
		metrics:   m,
	}
}

// Search always returns a displayable result. A failed model call yields
// shopping.SearchErrorResult; unparseable output yields a fallback result;
// image enrichment only runs on parsed results.
func (s *Searcher) Search(ctx context.Context, query string) shopping.SearchResult {
	start := time.Now()
	resp, err := s.client.CreateMessage(ctx, inference.UserRequest(s.model, s.maxTokens, shopping.BuildSearchPrompt(query)))
	s.metrics.ObserveInference("search", time.Since(start))
	if err != nil {
		slog.Error("product search failed", "query", query, "error", err)
		s.metrics.Search(metrics.SearchError)
		return shopping.SearchErrorResult()
	}

	result, parsed := shopping.Extract(resp.Text())
	if !parsed {
		slog.Warn("product search returned unstructured output", "query", query, "stop_reason", resp.StopReason)
		s.metrics.Search(metrics.SearchFallback)
		return result
	}
	s.metrics.Search(metrics.SearchParsed)

	if s.enricher != nil && len(result.Products) > 0 {
		result = result.WithProducts(s.enricher.Enrich(ctx, result.Products))
	}

	slog.Debug("product search complete",
		"query", query,
		"products", len(result.Products),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result
}
