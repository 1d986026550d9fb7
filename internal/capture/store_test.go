package capture

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/errfix/internal/models"
)

const (
	compileA = "Assets/Scripts/A.cs(10,3): error CS1002: ; expected"
	compileB = "Assets/Scripts/B.cs(20,5): error CS0103: The name 'foo' does not exist"
	runtimeC = "NullReferenceException: Object reference not set to an instance of an object"
)

func set(msgs ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		out[m] = struct{}{}
	}
	return out
}

func TestIngest_Dedup(t *testing.T) {
	s := NewErrorStore(10)

	first, added := s.Ingest("boom", "trace", models.SeverityError)
	require.True(t, added)
	second, added := s.Ingest("boom", "trace", models.SeverityException)
	assert.False(t, added)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, s.Len())

	_, added = s.Ingest("boom", "other trace", models.SeverityError)
	assert.True(t, added)
	assert.Equal(t, 2, s.Len())
}

func TestIngest_ParsesLocation(t *testing.T) {
	s := NewErrorStore(10)
	e, _ := s.Ingest(compileA, "", models.SeverityError)

	assert.Equal(t, "Assets/Scripts/A.cs", e.File)
	assert.Equal(t, 10, e.Line)
	assert.Equal(t, "CS1002", e.Code)
	assert.True(t, e.IsCompile)
	assert.False(t, e.CapturedAt.IsZero())
}

func TestIngest_CapacityEvictsOldestAndFreesKey(t *testing.T) {
	s := NewErrorStore(3)
	for i := range 4 {
		s.Ingest(fmt.Sprintf("err-%d", i), "", models.SeverityError)
	}

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, "err-1", list[0].Message)
	assert.Equal(t, "err-3", list[2].Message)

	// The evicted key is free again.
	_, added := s.Ingest("err-0", "", models.SeverityError)
	assert.True(t, added)
	assert.Equal(t, "err-2", s.List()[0].Message)
}

func TestReconcile_RetiresOnlyCompileErrors(t *testing.T) {
	s := NewErrorStore(10)
	s.Ingest(compileA, "", models.SeverityError)
	s.Ingest(compileB, "", models.SeverityError)
	s.Ingest(runtimeC, "at Player.Update () (at Assets/Player.cs:42)", models.SeverityException)

	s.Reconcile(set(compileA))

	var msgs []string
	for _, e := range s.List() {
		msgs = append(msgs, e.Message)
	}
	assert.ElementsMatch(t, []string{compileA, runtimeC}, msgs)

	// B's key was freed.
	_, added := s.Ingest(compileB, "", models.SeverityError)
	assert.True(t, added)
}

func TestReconcile_IngestsNewMessages(t *testing.T) {
	s := NewErrorStore(10)
	s.Ingest(compileA, "", models.SeverityError)

	s.Reconcile(set(compileA, compileB))

	require.Equal(t, 2, s.Len())
	list := s.List()
	assert.Equal(t, compileB, list[1].Message)
	assert.Equal(t, models.SeverityError, list[1].Severity)
	assert.Empty(t, list[1].StackTrace)
}

func TestReconcile_NotifiesListChangedOnce(t *testing.T) {
	s := NewErrorStore(10)
	s.Ingest(compileA, "", models.SeverityError)

	var kinds []models.EventKind
	unsub := s.Subscribe(func(ev models.StoreEvent) { kinds = append(kinds, ev.Kind) })
	defer unsub()

	s.Reconcile(set(compileB, "Assets/C.cs(1,1): error CS0001: x"))

	listChanged := 0
	captured := 0
	for _, k := range kinds {
		switch k {
		case models.EventListChanged:
			listChanged++
		case models.EventErrorCaptured:
			captured++
		}
	}
	assert.Equal(t, 1, listChanged)
	assert.Equal(t, 2, captured)
	assert.Equal(t, models.EventListChanged, kinds[len(kinds)-1])

	kinds = nil
	s.Reconcile(set(compileB, "Assets/C.cs(1,1): error CS0001: x"))
	assert.Equal(t, []models.EventKind{models.EventListChanged}, kinds)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s := NewErrorStore(10)
	calls := 0
	unsub := s.Subscribe(func(models.StoreEvent) { calls++ })

	s.Ingest("a", "", models.SeverityError)
	s.Ingest("a", "", models.SeverityError)
	assert.Equal(t, 1, calls)

	unsub()
	unsub()
	s.Ingest("b", "", models.SeverityError)
	assert.Equal(t, 1, calls)
}

func TestSubscribe_ObserverMayReenter(t *testing.T) {
	s := NewErrorStore(10)
	var seen int
	s.Subscribe(func(ev models.StoreEvent) {
		if ev.Kind == models.EventErrorCaptured {
			seen = s.Len()
		}
	})
	s.Ingest("a", "", models.SeverityError)
	assert.Equal(t, 1, seen)
}

func TestClear(t *testing.T) {
	s := NewErrorStore(10)
	calls := 0
	s.Subscribe(func(models.StoreEvent) { calls++ })
	s.Ingest("a", "", models.SeverityError)
	calls = 0

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, calls)

	_, added := s.Ingest("a", "", models.SeverityError)
	assert.True(t, added)
}

func TestMarkAnalyzed(t *testing.T) {
	s := NewErrorStore(10)
	e, _ := s.Ingest("a", "", models.SeverityError)

	result := &models.AnalysisResult{Fixable: false, Confidence: models.ConfidenceLow, Diagnosis: "d"}
	require.True(t, s.MarkAnalyzed(e.ID, result))

	got, ok := s.Get(e.ID)
	require.True(t, ok)
	assert.True(t, got.Analyzed)
	assert.Equal(t, "d", got.Result.Diagnosis)

	s.Clear()
	assert.False(t, s.MarkAnalyzed(e.ID, result))
}

func TestList_ReturnsSnapshots(t *testing.T) {
	s := NewErrorStore(10)
	s.Ingest("a", "", models.SeverityError)

	list := s.List()
	list[0].Message = "mutated"
	assert.Equal(t, "a", s.List()[0].Message)
}
