package triage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/errfix/internal/cache"
	"github.com/dotcommander/errfix/internal/capture"
	"github.com/dotcommander/errfix/internal/models"
	"github.com/dotcommander/errfix/internal/patch"
	"github.com/dotcommander/errfix/internal/source"
	"github.com/dotcommander/errfix/pkg/memory"
)

// gatedAnalyzer blocks every call until release is closed.
type gatedAnalyzer struct {
	mu      sync.Mutex
	calls   int
	started chan string
	release chan struct{}
	result  *models.AnalysisResult
	err     error
}

func newGated(result *models.AnalysisResult) *gatedAnalyzer {
	return &gatedAnalyzer{
		started: make(chan string, 8),
		release: make(chan struct{}),
		result:  result,
	}
}

func (g *gatedAnalyzer) Analyze(ctx context.Context, e *models.CapturedError, _ string) (*models.AnalysisResult, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.started <- e.ID
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.result, g.err
}

func (g *gatedAnalyzer) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type staticConsole map[string]struct{}

func (c staticConsole) ReadErrors() (map[string]struct{}, error) { return c, nil }

func newSession(t *testing.T, client *gatedAnalyzer) (*Session, *cache.Cache) {
	t.Helper()
	c := cache.New(memory.New(), 10)
	cfg := Config{Store: capture.NewErrorStore(10), Cache: c}
	if client != nil {
		cfg.Client = client
	}
	s := New(cfg)
	t.Cleanup(s.Close)
	return s, c
}

func waitCompletion(t *testing.T, s *Session) Completion {
	t.Helper()
	select {
	case c := <-s.Completions():
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no completion")
		return Completion{}
	}
}

func ingest(t *testing.T, s *Session, msg string) *models.CapturedError {
	t.Helper()
	require.True(t, s.Ingest(capture.Event{Message: msg, Severity: models.SeverityError}))
	list, err := s.List()
	require.NoError(t, err)
	for _, e := range list {
		if e.Message == msg {
			return e
		}
	}
	t.Fatalf("%q not ingested", msg)
	return nil
}

func TestAnalyze_AsyncCompletionUpdatesStoreAndCache(t *testing.T) {
	g := newGated(&models.AnalysisResult{Confidence: models.ConfidenceLow, Diagnosis: "d"})
	s, c := newSession(t, g)
	e := ingest(t, s, "boom")

	ticket, err := s.Analyze(e.ID, false)
	require.NoError(t, err)
	assert.False(t, ticket.Cached)
	assert.NotEmpty(t, ticket.RequestID)

	<-g.started
	assert.True(t, s.InFlight())
	close(g.release)

	done := waitCompletion(t, s)
	require.NoError(t, done.Err)
	assert.Equal(t, ticket.RequestID, done.RequestID)
	assert.False(t, done.Orphaned)
	assert.False(t, s.InFlight())

	got, err := s.At(1)
	require.NoError(t, err)
	assert.True(t, got.Analyzed)
	assert.Equal(t, "d", got.Result.Diagnosis)
	assert.Equal(t, 1, c.Count())

	// Second request is served from cache without a remote call.
	ticket, err = s.Analyze(e.ID, false)
	require.NoError(t, err)
	assert.True(t, ticket.Cached)
	assert.Equal(t, 1, g.callCount())
}

func TestAnalyze_RejectsDuplicateInFlight(t *testing.T) {
	g := newGated(&models.AnalysisResult{Confidence: models.ConfidenceLow})
	s, _ := newSession(t, g)
	a := ingest(t, s, "a")
	b := ingest(t, s, "b")

	_, err := s.Analyze(a.ID, false)
	require.NoError(t, err)
	_, err = s.Analyze(a.ID, false)
	assert.ErrorIs(t, err, ErrAnalysisPending)

	// A different error may run concurrently.
	_, err = s.Analyze(b.ID, false)
	require.NoError(t, err)

	close(g.release)
	waitCompletion(t, s)
	waitCompletion(t, s)
	assert.Equal(t, 2, g.callCount())
}

func TestAnalyze_OrphanedCompletionIsIgnored(t *testing.T) {
	g := newGated(&models.AnalysisResult{Confidence: models.ConfidenceLow, Diagnosis: "late"})
	s, c := newSession(t, g)
	e := ingest(t, s, "boom")

	_, err := s.Analyze(e.ID, false)
	require.NoError(t, err)
	<-g.started
	require.NoError(t, s.Clear())
	close(g.release)

	done := waitCompletion(t, s)
	assert.True(t, done.Orphaned)
	list, _ := s.List()
	assert.Empty(t, list)

	// The diagnosis is still cached for the next occurrence.
	_, ok := c.Get("boom")
	assert.True(t, ok)
}

func TestAnalyze_FailureReported(t *testing.T) {
	g := newGated(nil)
	g.err = errors.New("rate limited")
	s, c := newSession(t, g)
	e := ingest(t, s, "boom")

	_, err := s.Analyze(e.ID, false)
	require.NoError(t, err)
	close(g.release)

	done := waitCompletion(t, s)
	assert.Error(t, done.Err)
	assert.Equal(t, 0, c.Count())
	got, _ := s.At(1)
	assert.False(t, got.Analyzed)
}

func TestAnalyze_UnknownID(t *testing.T) {
	s, _ := newSession(t, newGated(nil))
	_, err := s.Analyze("missing", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReconcile_UsesConsole(t *testing.T) {
	const compileA = "Assets/A.cs(1,1): error CS0001: a"
	const compileB = "Assets/B.cs(1,1): error CS0002: b"

	s := New(Config{Store: capture.NewErrorStore(10), Console: staticConsole{compileA: {}}})
	t.Cleanup(s.Close)
	ingest(t, s, compileA)
	ingest(t, s, compileB)

	require.NoError(t, s.Reconcile())
	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, compileA, list[0].Message)
}

func TestReconcile_NilConsoleRetiresCompileErrors(t *testing.T) {
	s := New(Config{Store: capture.NewErrorStore(10)})
	t.Cleanup(s.Close)
	ingest(t, s, "Assets/A.cs(1,1): error CS0001: a")
	ingest(t, s, "NullReferenceException: x")

	require.NoError(t, s.Reconcile())
	list, _ := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "NullReferenceException: x", list[0].Message)
}

func TestPreviewAndApply(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("a\nb\n"), 0o644))

	c := cache.New(memory.New(), 10)
	result := &models.AnalysisResult{Fixable: true, Confidence: models.ConfidenceHigh, File: "a.go", Line: 2, Patch: &models.Patch{Original: "b", Fixed: "x"}}
	c.Put("boom", result)

	s := New(Config{Store: capture.NewErrorStore(10), Cache: c, Patcher: patch.NewPatcher(source.NewResolver(root))})
	t.Cleanup(s.Close)
	e := ingest(t, s, "boom")

	_, err := s.Preview(e.ID, 0)
	assert.ErrorIs(t, err, ErrNotAnalyzed)

	ticket, err := s.Analyze(e.ID, false)
	require.NoError(t, err)
	require.True(t, ticket.Cached)

	fp, err := s.Preview(e.ID, 0)
	require.NoError(t, err)
	assert.True(t, fp.Applicable)

	out, err := s.Apply(e.ID)
	require.NoError(t, err)
	assert.True(t, out.Success, out.Message)

	got, _ := os.ReadFile(filepath.Join(root, "a.go"))
	assert.Equal(t, "a\nx\n", string(got))
}

func TestClose_CancelsInFlight(t *testing.T) {
	g := newGated(nil)
	s, _ := newSession(t, g)
	e := ingest(t, s, "boom")

	_, err := s.Analyze(e.ID, false)
	require.NoError(t, err)
	<-g.started

	s.Close()
	_, err = s.List()
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, s.Ingest(capture.Event{Message: "late"}))
}
