package repl

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/errfix/internal/analysis"
	"github.com/dotcommander/errfix/internal/cache"
	"github.com/dotcommander/errfix/internal/capture"
	"github.com/dotcommander/errfix/internal/models"
	"github.com/dotcommander/errfix/internal/patch"
	"github.com/dotcommander/errfix/internal/source"
	"github.com/dotcommander/errfix/internal/triage"
	"github.com/dotcommander/errfix/pkg/memory"
)

type harness struct {
	repl    *REPL
	out     *bytes.Buffer
	session *triage.Session
	cache   *cache.Cache
	root    string
	answer  bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	root := t.TempDir()
	c := cache.New(memory.New(), 10)
	s := triage.New(triage.Config{
		Store:   capture.NewErrorStore(10),
		Cache:   c,
		Patcher: patch.NewPatcher(source.NewResolver(root)),
	})
	t.Cleanup(s.Close)

	h := &harness{out: &bytes.Buffer{}, session: s, cache: c, root: root}
	r, err := New(Config{
		Session: s,
		Cache:   c,
		Out:     h.out,
		Confirm: func(string) (bool, error) { return h.answer, nil },
	})
	require.NoError(t, err)
	h.repl = r
	return h
}

func (h *harness) ingest(t *testing.T, msg string) {
	t.Helper()
	require.True(t, h.session.Ingest(capture.Event{Message: msg, Severity: models.SeverityError}))
	_, err := h.session.List()
	require.NoError(t, err)
}

func TestNew_RequiresSession(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestProcessInput_ListAndShow(t *testing.T) {
	h := newHarness(t)
	h.ingest(t, "Assets/A.cs(3,1): error CS1002: ; expected")

	require.NoError(t, h.repl.ProcessInput("list"))
	assert.Contains(t, h.out.String(), "  1 ○ CMP")

	h.out.Reset()
	require.NoError(t, h.repl.ProcessInput("show 1"))
	assert.Contains(t, h.out.String(), "code:     CS1002")
	assert.Contains(t, h.out.String(), "not analyzed yet")
}

func TestProcessInput_Errors(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.repl.ProcessInput("bogus"))
	assert.Error(t, h.repl.ProcessInput("show"))
	assert.Error(t, h.repl.ProcessInput("show x"))
	assert.ErrorIs(t, h.repl.ProcessInput("show 1"), triage.ErrNotFound)
	assert.ErrorIs(t, h.repl.ProcessInput("exit"), errExit)
	assert.NoError(t, h.repl.ProcessInput("   "))
}

func TestProcessInput_AnalyzeCachedDiffApply(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "a.go"), []byte("a\nb\n"), 0o644))
	h.cache.Put("boom", &models.AnalysisResult{
		Fixable: true, Confidence: models.ConfidenceHigh, Diagnosis: "typo",
		File: "a.go", Line: 2, Patch: &models.Patch{Original: "b", Fixed: "x"},
	})
	h.ingest(t, "boom")

	require.NoError(t, h.repl.ProcessInput("analyze 1"))
	assert.Contains(t, h.out.String(), "(cached)")
	assert.Contains(t, h.out.String(), "typo")

	h.out.Reset()
	require.NoError(t, h.repl.ProcessInput("diff 1"))
	assert.Contains(t, h.out.String(), "   2 - b")
	assert.Contains(t, h.out.String(), "1 removed, 1 added")

	h.out.Reset()
	h.answer = false
	require.NoError(t, h.repl.ProcessInput("apply 1"))
	assert.Contains(t, h.out.String(), "skipped")
	got, _ := os.ReadFile(filepath.Join(h.root, "a.go"))
	assert.Equal(t, "a\nb\n", string(got))

	h.out.Reset()
	h.answer = true
	require.NoError(t, h.repl.ProcessInput("apply 1"))
	assert.Contains(t, h.out.String(), "✓ patch applied: a.go")
	got, _ = os.ReadFile(filepath.Join(h.root, "a.go"))
	assert.Equal(t, "a\nx\n", string(got))

	// The block is gone now.
	assert.Error(t, h.repl.ProcessInput("apply 1 -y"))
}

func TestProcessInput_AnalyzeWithoutClient(t *testing.T) {
	h := newHarness(t)
	h.ingest(t, "boom")
	assert.Error(t, h.repl.ProcessInput("analyze 1"))
}

func TestProcessInput_ClearScanCache(t *testing.T) {
	h := newHarness(t)
	h.ingest(t, "Assets/A.cs(3,1): error CS1002: ; expected")
	h.cache.Put("x", &models.AnalysisResult{Confidence: models.ConfidenceLow})

	require.NoError(t, h.repl.ProcessInput("cache"))
	assert.Contains(t, h.out.String(), "1 / 10 cached diagnoses")

	h.out.Reset()
	require.NoError(t, h.repl.ProcessInput("scan"))
	assert.Contains(t, h.out.String(), "no errors captured")

	h.ingest(t, "again")
	require.NoError(t, h.repl.ProcessInput("clear"))
	list, _ := h.session.List()
	assert.Empty(t, list)

	require.NoError(t, h.repl.ProcessInput("cache clear"))
	assert.Equal(t, 0, h.cache.Count())
}

func TestHandleCompletion(t *testing.T) {
	h := newHarness(t)

	h.repl.HandleCompletion(triage.Completion{Message: "boom", Result: &models.AnalysisResult{Confidence: models.ConfidenceLow, Diagnosis: "why"}})
	assert.Contains(t, h.out.String(), "analysis ready: boom")
	assert.Contains(t, h.out.String(), "why")

	h.out.Reset()
	h.repl.HandleCompletion(triage.Completion{Message: "boom", Err: &analysis.Error{Kind: analysis.KindRateLimited, Message: "API rate limit exceeded."}})
	assert.Contains(t, h.out.String(), "analysis failed: API rate limit exceeded.")
	assert.Contains(t, h.out.String(), "hint:")

	h.out.Reset()
	h.repl.HandleCompletion(triage.Completion{Message: "gone", Orphaned: true})
	assert.Contains(t, h.out.String(), "cleared error")

	h.out.Reset()
	h.repl.HandleCompletion(triage.Completion{Err: errors.New("plain")})
	assert.NotContains(t, h.out.String(), "hint:")
}

func TestHelpListsCommands(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.repl.ProcessInput("help"))
	for _, name := range []string{"list", "show N", "analyze N", "diff N", "apply N", "scan", "clear", "cache", "exit"} {
		assert.Contains(t, h.out.String(), name)
	}
}
