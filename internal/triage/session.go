// Package triage composes the error store, result cache and analysis client
// behind one owner goroutine.
package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dotcommander/errfix/internal/actions"
	"github.com/dotcommander/errfix/internal/cache"
	"github.com/dotcommander/errfix/internal/capture"
	"github.com/dotcommander/errfix/internal/models"
	"github.com/dotcommander/errfix/internal/patch"
	"github.com/dotcommander/errfix/internal/source"
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("triage session closed")
	// ErrNotFound means the error id is not (or no longer) in the store.
	ErrNotFound = errors.New("error not found")
	// ErrAnalysisPending means a request for the same error is still in flight.
	ErrAnalysisPending = errors.New("analysis already in progress for this error")
	// ErrNotAnalyzed means the error has no result yet.
	ErrNotAnalyzed = errors.New("error has not been analyzed")
)

// Config wires a Session. Store is required; the rest may be nil, which
// disables the matching feature.
type Config struct {
	Store   *capture.ErrorStore
	Cache   *cache.Cache
	Client  actions.Analyzer
	Reader  *source.Reader
	Patcher *patch.Patcher
	Console capture.ConsoleSource
}

// Completion reports the end of one asynchronous analysis.
type Completion struct {
	RequestID string
	ErrorID   string
	Message   string
	Result    *models.AnalysisResult
	Err       error
	// Orphaned is set when the error left the store while the request ran.
	Orphaned bool
}

// Ticket describes how an Analyze call was served.
type Ticket struct {
	RequestID string                 `json:"request_id,omitempty"`
	ErrorID   string                 `json:"error_id"`
	Cached    bool                   `json:"cached"`
	Result    *models.AnalysisResult `json:"result,omitempty"`
}

// Session serializes all store and cache mutation onto one goroutine. Remote
// calls run on their own goroutines and post their completion back.
//
// Do and Post must not be called from inside a task.
type Session struct {
	cfg Config

	tasks       chan func()
	completions chan Completion
	done        chan struct{}
	loopDone    chan struct{}
	closeOnce   sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	calls  sync.WaitGroup

	// owner-only
	pending map[string]string
}

// New starts a session. Close releases it.
func New(cfg Config) *Session {
	if cfg.Store == nil {
		cfg.Store = capture.NewErrorStore(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:         cfg,
		tasks:       make(chan func(), 64),
		completions: make(chan Completion, 16),
		done:        make(chan struct{}),
		loopDone:    make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		pending:     make(map[string]string),
	}
	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.loopDone)
	for {
		select {
		case fn := <-s.tasks:
			fn()
		case <-s.done:
			return
		}
	}
}

// Do runs fn on the owner goroutine and waits for it.
func (s *Session) Do(fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	if s.closed() {
		return ErrClosed
	}
	select {
	case s.tasks <- task:
	case <-s.done:
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Post queues fn on the owner goroutine without waiting. It returns false
// if the session is closed.
func (s *Session) Post(fn func()) bool {
	if s.closed() {
		return false
	}
	select {
	case s.tasks <- fn:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close cancels outstanding requests and stops the owner goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.done)
		<-s.loopDone
		s.calls.Wait()
	})
}

// Store exposes the underlying store for subscriptions.
func (s *Session) Store() *capture.ErrorStore {
	return s.cfg.Store
}

// Completions delivers analysis completions. Completions are dropped when
// nobody drains the channel.
func (s *Session) Completions() <-chan Completion {
	return s.completions
}

// Ingest records one log-stream event on the owner goroutine.
func (s *Session) Ingest(ev capture.Event) bool {
	return s.Post(func() {
		s.cfg.Store.Ingest(ev.Message, ev.StackTrace, ev.Severity)
	})
}

// Reconcile takes a console snapshot and reconciles the store against it.
func (s *Session) Reconcile() error {
	return s.Do(func() {
		s.cfg.Store.Reconcile(capture.Snapshot(s.cfg.Console))
	})
}

// Clear drops every captured error. Requests in flight complete as orphans.
func (s *Session) Clear() error {
	return s.Do(func() {
		s.cfg.Store.Clear()
	})
}

// List returns snapshots of all errors, oldest first.
func (s *Session) List() ([]*models.CapturedError, error) {
	var out []*models.CapturedError
	err := s.Do(func() {
		out = s.cfg.Store.List()
	})
	return out, err
}

// At returns the error at 1-based position n of List.
func (s *Session) At(n int) (*models.CapturedError, error) {
	list, err := s.List()
	if err != nil {
		return nil, err
	}
	if n < 1 || n > len(list) {
		return nil, fmt.Errorf("%w: #%d (have %d)", ErrNotFound, n, len(list))
	}
	return list[n-1], nil
}

// InFlight reports whether any analysis is outstanding.
func (s *Session) InFlight() bool {
	var busy bool
	if err := s.Do(func() { busy = len(s.pending) > 0 }); err != nil {
		return false
	}
	return busy
}

// Analyze serves a cached diagnosis immediately, or starts a remote request
// and returns its ticket; the result arrives on Completions. force skips the
// cache lookup.
func (s *Session) Analyze(id string, force bool) (*Ticket, error) {
	var (
		ticket *Ticket
		opErr  error
	)
	err := s.Do(func() {
		ticket, opErr = s.startAnalysis(id, force)
	})
	if err != nil {
		return nil, err
	}
	return ticket, opErr
}

func (s *Session) startAnalysis(id string, force bool) (*Ticket, error) {
	e, ok := s.cfg.Store.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if _, busy := s.pending[id]; busy {
		return nil, ErrAnalysisPending
	}

	if !force {
		if r, ok := actions.LookupCached(s.cfg.Cache, e); ok {
			s.cfg.Store.MarkAnalyzed(id, r)
			return &Ticket{ErrorID: id, Cached: true, Result: r}, nil
		}
	}
	if s.cfg.Client == nil {
		return nil, errors.New("analysis client is not configured")
	}

	src := actions.SourceFor(s.cfg.Reader, e)
	reqID := uuid.NewString()
	s.pending[id] = reqID

	slog.Info("analysis started", "request_id", reqID, "error_id", id, "source_included", src != "")

	s.calls.Add(1)
	go func() {
		defer s.calls.Done()
		result, err := s.cfg.Client.Analyze(s.ctx, e, src)
		s.Post(func() { s.finish(reqID, e, result, err) })
	}()

	return &Ticket{RequestID: reqID, ErrorID: id}, nil
}

// finish runs on the owner goroutine.
func (s *Session) finish(reqID string, e *models.CapturedError, result *models.AnalysisResult, err error) {
	if s.pending[e.ID] != reqID {
		slog.Debug("stale analysis completion ignored", "request_id", reqID)
		return
	}
	delete(s.pending, e.ID)

	c := Completion{RequestID: reqID, ErrorID: e.ID, Message: e.Message, Result: result, Err: err}
	if err != nil {
		slog.Warn("analysis failed", "request_id", reqID, "error", err)
	} else {
		actions.RecordResult(s.cfg.Cache, e, result)
		if !s.cfg.Store.MarkAnalyzed(e.ID, result) {
			c.Orphaned = true
			slog.Info("analysis finished for an error no longer captured", "request_id", reqID)
		}
	}

	select {
	case s.completions <- c:
	default:
		slog.Debug("completion dropped", "request_id", reqID)
	}
}

// Preview returns the fix preview for an analyzed error.
func (s *Session) Preview(id string, startLine int) (*actions.FixPreview, error) {
	var (
		fp    *actions.FixPreview
		opErr error
	)
	err := s.Do(func() {
		var e *models.CapturedError
		if e, opErr = s.analyzed(id); opErr != nil {
			return
		}
		fp, opErr = actions.PreviewFix(s.cfg.Patcher, e.Result, startLine)
	})
	if err != nil {
		return nil, err
	}
	return fp, opErr
}

// Apply applies the patch of an analyzed error.
func (s *Session) Apply(id string) (models.PatchOutcome, error) {
	var (
		out   models.PatchOutcome
		opErr error
	)
	err := s.Do(func() {
		var e *models.CapturedError
		if e, opErr = s.analyzed(id); opErr != nil {
			return
		}
		out = actions.ApplyFix(s.cfg.Patcher, e.Result)
	})
	if err != nil {
		return out, err
	}
	return out, opErr
}

func (s *Session) analyzed(id string) (*models.CapturedError, error) {
	e, ok := s.cfg.Store.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if !e.Analyzed || e.Result == nil {
		return nil, ErrNotAnalyzed
	}
	return e, nil
}
