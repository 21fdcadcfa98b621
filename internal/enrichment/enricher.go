package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/shopper/internal/inference"
	"github.com/kalambet/shopper/internal/metrics"
	"github.com/kalambet/shopper/internal/shopping"
	"github.com/kalambet/shopper/internal/storage"
)

// Messenger sends one Messages API request.
type Messenger interface {
	CreateMessage(ctx context.Context, req inference.MessageRequest) (*inference.MessageResponse, error)
}

// ImageCache remembers image lookups across searches. storage.Store satisfies it.
type ImageCache interface {
	GetImage(query string, maxAge time.Duration) (storage.ImageEntry, error)
	PutImage(entry storage.ImageEntry) error
}

// Options configures an Enricher.
type Options struct {
	Model     string
	MaxTokens int
	// Concurrency bounds parallel image lookups. Values below 1 mean sequential.
	Concurrency int
	Cache       ImageCache
	CacheTTL    time.Duration
	Metrics     *metrics.Metrics
}

// Enricher attaches an image URL to each product by asking the model to
// search for one. Every product is looked up independently; a failed lookup
// leaves that product unchanged.
type Enricher struct {
	client      Messenger
	model       string
	maxTokens   int
	concurrency int
	cache       ImageCache
	cacheTTL    time.Duration
	metrics     *metrics.Metrics
}

// NewEnricher creates an Enricher. MaxTokens defaults to 1000.
func NewEnricher(client Messenger, opts Options) *Enricher {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Enricher{
		client:      client,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		concurrency: opts.Concurrency,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		metrics:     opts.Metrics,
	}
}

// Enrich returns a new slice of the same length and order as products. The
// input slice and its elements are never modified.
func (e *Enricher) Enrich(ctx context.Context, products []shopping.Product) []shopping.Product {
	out := make([]shopping.Product, len(products))
	copy(out, products)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, p := range products {
		g.Go(func() error {
			if img, ok := e.lookup(gctx, p.ImageQuery()); ok {
				out[i] = p.WithImage(img)
			}
			return nil
		})
	}
	g.Wait()
	return out
}

func (e *Enricher) lookup(ctx context.Context, query string) (string, bool) {
	if query == "" {
		return "", false
	}

	if e.cache != nil {
		entry, err := e.cache.GetImage(query, e.cacheTTL)
		if err == nil && validImageURL(entry.ImageURL) {
			e.metrics.ImageLookup(metrics.ImageCached)
			return entry.ImageURL, true
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			slog.Debug("image cache read failed", "query", query, "error", err)
		}
	}

	start := time.Now()
	resp, err := e.client.CreateMessage(ctx, inference.UserRequest(e.model, e.maxTokens, shopping.BuildImagePrompt(query)))
	e.metrics.ObserveInference("image", time.Since(start))
	if err != nil {
		slog.Warn("image lookup failed", "query", query, "error", err)
		e.metrics.ImageLookup(metrics.ImageFailed)
		return "", false
	}

	candidate := strings.TrimSpace(resp.FirstText())
	if !validImageURL(candidate) {
		slog.Debug("image lookup returned no usable URL", "query", query)
		e.metrics.ImageLookup(metrics.ImageRejected)
		return "", false
	}
	e.metrics.ImageLookup(metrics.ImageAttached)

	if e.cache != nil {
		if err := e.cache.PutImage(storage.ImageEntry{Query: query, ImageURL: candidate, FetchedAt: time.Now()}); err != nil {
			slog.Debug("image cache write failed", "query", query, "error", err)
		}
	}
	return candidate, true
}

// validImageURL accepts absolute http(s) URLs only.
func validImageURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Host != "" && !strings.ContainsAny(s, " \t\n")
}
