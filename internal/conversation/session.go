package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kalambet/shopper/internal/metrics"
	"github.com/kalambet/shopper/internal/shopping"
)

var (
	ErrEmptyInput = errors.New("input is empty")
	ErrBusy       = errors.New("a submission is already in progress")
	ErrClosed     = errors.New("session is closed")
)

// State is the submission state of a session.
type State string

const (
	StateIdle     State = "idle"
	StateAwaiting State = "awaiting-response"
)

// Searcher turns a query into a displayable result. It must not fail;
// failures are expressed as result content.
type Searcher interface {
	Search(ctx context.Context, query string) shopping.SearchResult
}

// Session owns one conversation and serializes submissions against it.
type Session struct {
	id       string
	searcher Searcher
	metrics  *metrics.Metrics

	mu     sync.Mutex
	conv   Conversation
	state  State
	done   chan struct{}
	closed bool
}

// NewSession creates an idle session with an empty conversation.
func NewSession(id string, searcher Searcher, m *metrics.Metrics) *Session {
	return &Session{id: id, searcher: searcher, metrics: m, state: StateIdle}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit appends the trimmed text as a user turn and starts a search for it in
// the background. Blank text returns ErrEmptyInput and a submission while one
// is in flight returns ErrBusy; neither changes the conversation. The search
// outlives ctx cancellation.
func (s *Session) Submit(ctx context.Context, text string) error {
	query, err := shopping.NormalizeQuery(text)
	if err != nil {
		return ErrEmptyInput
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == StateAwaiting {
		s.mu.Unlock()
		return ErrBusy
	}
	s.conv.Append(UserTurn(query))
	s.state = StateAwaiting
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	s.metrics.SubmissionStarted()
	go s.run(context.WithoutCancel(ctx), query, done)
	return nil
}

func (s *Session) run(ctx context.Context, query string, done chan struct{}) {
	result := shopping.GenericErrorResult()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("submission panicked", "session", s.id, "panic", r)
			result = shopping.GenericErrorResult()
		}
		s.settle(result, done)
	}()
	result = s.searcher.Search(ctx, query)
}

func (s *Session) settle(result shopping.SearchResult, done chan struct{}) {
	s.mu.Lock()
	if s.closed {
		slog.Debug("dropping result for closed session", "session", s.id)
	} else {
		s.conv.Append(AssistantTurn(result))
	}
	s.state = StateIdle
	s.done = nil
	s.mu.Unlock()

	close(done)
	s.metrics.SubmissionSettled()
}

// Wait blocks until no submission is in flight or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disposes the session. A search still in flight finishes but its
// result is discarded.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether the session has been disposed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Snapshot is a consistent copy of a session's state and turns.
type Snapshot struct {
	ID    string `json:"id"`
	State State  `json:"state"`
	Turns []Turn `json:"turns"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.conv.Turns()
	if turns == nil {
		turns = []Turn{}
	}
	return Snapshot{ID: s.id, State: s.state, Turns: turns}
}
