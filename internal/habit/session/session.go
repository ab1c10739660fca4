// Package session wraps one fetch-then-suggest cycle in a small state
// machine with an explicit dismiss action. A session owns exactly one
// in-flight history fetch; dismissal is terminal, and a dismissed user
// gets no further suggestions until a new session is created.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/runger/bocado/internal/habit/suggest"
	"github.com/runger/bocado/internal/journal"
)

var errNoFetcher = errors.New("session has no fetcher")

// Phase is the session's lifecycle state.
type Phase int

const (
	PhaseLoading   Phase = iota // Fetch in progress
	PhaseHasResult              // Pipeline produced a suggestion
	PhaseNoResult               // No suggestion, empty history, or fetch failure
	PhaseDismissed              // User dismissed; terminal for this session
)

// String returns the snake_case phase name.
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseHasResult:
		return "has_result"
	case PhaseNoResult:
		return "no_result"
	case PhaseDismissed:
		return "dismissed"
	default:
		return "unknown"
	}
}

// Fetcher loads a user's recent meal logs. journal.Store satisfies it.
type Fetcher interface {
	RecentLogs(ctx context.Context, userID string, limit int) ([]journal.LogRecord, error)
}

// Options configures a session. Zero-value fields fall back to the
// defaults.
type Options struct {
	Engine *suggest.Engine
	Limit  int
	Logger *slog.Logger

	// Now overrides the clock. Tests use this.
	Now func() time.Time
}

// Session runs fetch then score/aggregate/select, exposing the outcome
// through Phase and Result. All methods are safe for concurrent use.
type Session struct {
	mu     sync.Mutex
	phase  Phase
	result *suggest.PredictionResult

	fetcher Fetcher
	userID  string
	engine  *suggest.Engine
	limit   int
	logger  *slog.Logger
	now     func() time.Time

	// generation identifies the current fetch cycle. Resolutions from
	// superseded cycles are discarded.
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
	resolved   bool
	closed     bool
}

// New creates a session in the Loading phase. Call Start to begin the
// fetch.
func New(fetcher Fetcher, userID string, opts Options) *Session {
	if opts.Engine == nil {
		opts.Engine = suggest.NewEngine(suggest.DefaultConfig())
	}
	if opts.Limit <= 0 {
		opts.Limit = journal.DefaultFetchLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		phase:   PhaseLoading,
		fetcher: fetcher,
		userID:  userID,
		engine:  opts.Engine,
		limit:   opts.Limit,
		logger:  opts.Logger,
		now:     opts.Now,
		done:    make(chan struct{}),
	}
}

// Start launches the first fetch cycle. Calling it again is a no-op;
// use Refresh to re-run.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.generation > 0 {
		return
	}
	s.beginCycleLocked(ctx)
}

// Refresh re-runs the fetch cycle, superseding any in-flight fetch.
// Refreshes are suppressed while dismissed.
func (s *Session) Refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase == PhaseDismissed {
		return
	}
	s.beginCycleLocked(ctx)
}

// Dismiss moves the session to Dismissed and cancels any in-flight
// fetch. Idempotent.
func (s *Session) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase == PhaseDismissed {
		return
	}
	s.cancelLocked()
	s.phase = PhaseDismissed
	s.completeLocked()
}

// Close tears the session down. A fetch resolving after Close mutates
// nothing.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancelLocked()
	s.completeLocked()
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Result returns a copy of the suggestion, or nil outside HasResult.
func (s *Session) Result() *suggest.PredictionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseHasResult || s.result == nil {
		return nil
	}
	res := *s.result
	return &res
}

// Done returns a channel closed when the current cycle resolves, the
// session is dismissed, or it is closed.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// beginCycleLocked supersedes any running fetch and starts a new one.
func (s *Session) beginCycleLocked(ctx context.Context) {
	s.cancelLocked()
	s.completeLocked()

	s.generation++
	s.phase = PhaseLoading
	s.result = nil
	s.done = make(chan struct{})
	s.resolved = false

	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.fetch(fetchCtx, s.generation)
}

func (s *Session) fetch(ctx context.Context, gen uint64) {
	if s.fetcher == nil {
		s.resolve(gen, nil, errNoFetcher)
		return
	}
	recs, err := s.fetcher.RecentLogs(ctx, s.userID, s.limit)
	s.resolve(gen, recs, err)
}

// resolve applies a fetch outcome. Stale generations, dismissed
// sessions, and closed sessions discard the outcome unseen.
func (s *Session) resolve(gen uint64, recs []journal.LogRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.generation || s.phase == PhaseDismissed {
		return
	}

	if err != nil {
		// Fetch failures degrade to "no suggestion". Never surfaced.
		s.logger.Warn("history fetch failed", "user_id", s.userID, "error", err)
		s.phase = PhaseNoResult
		s.result = nil
		s.completeLocked()
		return
	}

	if res := s.engine.Suggest(recs, s.now()); res != nil {
		s.phase = PhaseHasResult
		s.result = res
	} else {
		s.phase = PhaseNoResult
		s.result = nil
	}
	s.completeLocked()
}

func (s *Session) cancelLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) completeLocked() {
	if !s.resolved {
		s.resolved = true
		close(s.done)
	}
}
