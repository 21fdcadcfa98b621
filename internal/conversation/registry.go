package conversation

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/kalambet/shopper/internal/metrics"
)

// Registry holds live sessions in memory and closes them after idleTimeout
// without access. A non-positive idleTimeout keeps sessions forever.
type Registry struct {
	cache    *cache.Cache
	searcher Searcher
	metrics  *metrics.Metrics
}

func NewRegistry(searcher Searcher, idleTimeout time.Duration, m *metrics.Metrics) *Registry {
	expiration, cleanup := idleTimeout, idleTimeout/4
	if idleTimeout <= 0 {
		expiration, cleanup = cache.NoExpiration, 0
	} else if cleanup < time.Minute {
		cleanup = time.Minute
	}

	c := cache.New(expiration, cleanup)
	c.OnEvicted(func(id string, v interface{}) {
		if sess, ok := v.(*Session); ok {
			slog.Debug("session expired", "session", id)
			sess.Close()
		}
	})
	return &Registry{cache: c, searcher: searcher, metrics: m}
}

// Create registers a new session with a random ID.
func (r *Registry) Create() *Session {
	sess := NewSession(uuid.NewString(), r.searcher, r.metrics)
	r.cache.Set(sess.ID(), sess, cache.DefaultExpiration)
	return sess
}

// Get returns the session and extends its expiration. A session closed by a
// concurrent eviction counts as missing.
func (r *Registry) Get(id string) (*Session, bool) {
	x, found := r.cache.Get(id)
	if !found {
		return nil, false
	}
	sess := x.(*Session)
	r.cache.Set(id, sess, cache.DefaultExpiration)
	if sess.Closed() {
		r.cache.Delete(id)
		return nil, false
	}
	return sess, true
}

// GetOrCreate returns the session for id, creating a fresh one when id is
// unknown or expired. created reports whether a new session was made.
func (r *Registry) GetOrCreate(id string) (sess *Session, created bool) {
	if id != "" {
		if existing, ok := r.Get(id); ok {
			return existing, false
		}
	}
	return r.Create(), true
}

// Delete closes and removes a session.
func (r *Registry) Delete(id string) {
	r.cache.Delete(id)
}

func (r *Registry) Len() int { return r.cache.ItemCount() }

// Close closes every session and empties the registry.
func (r *Registry) Close() {
	for _, item := range r.cache.Items() {
		if sess, ok := item.Object.(*Session); ok {
			sess.Close()
		}
	}
	r.cache.Flush()
}
