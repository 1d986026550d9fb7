// Package capture holds the deduplicating error store and the host adapters
// that feed it.
package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/dotcommander/errfix/internal/models"
	"github.com/dotcommander/errfix/internal/parser"
)

// DefaultCapacity is the number of errors retained before the oldest is evicted.
const DefaultCapacity = 100

// Observer receives store events. It is invoked without the store lock held,
// so it may call back into the store.
type Observer func(models.StoreEvent)

type subscription struct {
	id int
	fn Observer
}

// ErrorStore is a bounded, insertion-ordered list of captured errors,
// deduplicated by a hash of message and stack trace.
type ErrorStore struct {
	mu        sync.Mutex
	capacity  int
	entries   []*models.CapturedError
	keys      map[string]struct{}
	observers []subscription
	nextSubID int

	now func() time.Time
}

// NewErrorStore returns an empty store. capacity <= 0 uses DefaultCapacity.
func NewErrorStore(capacity int) *ErrorStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ErrorStore{
		capacity: capacity,
		keys:     make(map[string]struct{}),
		now:      time.Now,
	}
}

// DedupeKey identifies an occurrence by message and trace together.
func DedupeKey(message, stackTrace string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(message+stackTrace))
}

// Ingest records a new error unless an identical (message, trace) pair is
// already live. It returns a snapshot of the stored entry and whether it was new.
func (s *ErrorStore) Ingest(message, stackTrace string, severity models.Severity) (*models.CapturedError, bool) {
	s.mu.Lock()
	e, added := s.ingestLocked(message, stackTrace, severity)
	var snap *models.CapturedError
	if e != nil {
		snap = cloneError(e)
	}
	s.mu.Unlock()

	if added {
		s.notify(models.StoreEvent{Kind: models.EventErrorCaptured, Error: cloneError(snap)})
	}
	return snap, added
}

func (s *ErrorStore) ingestLocked(message, stackTrace string, severity models.Severity) (*models.CapturedError, bool) {
	key := DedupeKey(message, stackTrace)
	if _, exists := s.keys[key]; exists {
		for _, e := range s.entries {
			if e.ID == key {
				return e, false
			}
		}
		return nil, false
	}

	loc := parser.Parse(message, stackTrace)
	e := &models.CapturedError{
		ID:         key,
		Message:    message,
		StackTrace: stackTrace,
		Severity:   severity,
		CapturedAt: s.now(),
		File:       loc.File,
		Line:       loc.Line,
		Code:       loc.Code,
		IsCompile:  loc.IsCompile,
	}
	s.entries = append(s.entries, e)
	s.keys[key] = struct{}{}

	for len(s.entries) > s.capacity {
		oldest := s.entries[0]
		s.entries[0] = nil
		s.entries = s.entries[1:]
		delete(s.keys, oldest.ID)
	}
	return e, true
}

// Reconcile retires compile errors whose message is absent from current, then
// ingests every message in current not already represented. One
// EventListChanged is emitted at the end regardless of how much changed.
//
// Runtime errors are never retired by reconciliation.
func (s *ErrorStore) Reconcile(current map[string]struct{}) {
	var captured []*models.CapturedError

	s.mu.Lock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.IsCompile {
			if _, ok := current[e.Message]; !ok {
				delete(s.keys, e.ID)
				continue
			}
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = kept

	represented := make(map[string]struct{}, len(s.entries))
	for _, e := range s.entries {
		represented[e.Message] = struct{}{}
	}
	for msg := range current {
		if msg == "" {
			continue
		}
		if _, ok := represented[msg]; ok {
			continue
		}
		if e, added := s.ingestLocked(msg, "", models.SeverityError); added {
			captured = append(captured, cloneError(e))
		}
		represented[msg] = struct{}{}
	}
	s.mu.Unlock()

	for _, e := range captured {
		s.notify(models.StoreEvent{Kind: models.EventErrorCaptured, Error: e})
	}
	s.notify(models.StoreEvent{Kind: models.EventListChanged})
}

// Clear drops every entry. No event is emitted.
func (s *ErrorStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.keys = make(map[string]struct{})
}

// List returns snapshots of all entries, oldest first.
func (s *ErrorStore) List() []*models.CapturedError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.CapturedError, len(s.entries))
	for i, e := range s.entries {
		out[i] = cloneError(e)
	}
	return out
}

// Get returns a snapshot of the entry with id.
func (s *ErrorStore) Get(id string) (*models.CapturedError, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.findLocked(id); e != nil {
		return cloneError(e), true
	}
	return nil, false
}

// Len returns the number of live entries.
func (s *ErrorStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// MarkAnalyzed attaches result to the entry with id. It returns false when the
// entry has since been evicted, cleared or reconciled away.
func (s *ErrorStore) MarkAnalyzed(id string, result *models.AnalysisResult) bool {
	s.mu.Lock()
	e := s.findLocked(id)
	if e == nil {
		s.mu.Unlock()
		return false
	}
	e.Analyzed = true
	e.Result = result.Clone()
	snap := cloneError(e)
	s.mu.Unlock()

	s.notify(models.StoreEvent{Kind: models.EventErrorAnalyzed, Error: snap})
	return true
}

// Subscribe registers fn for store events and returns its unsubscribe func.
func (s *ErrorStore) Subscribe(fn Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.observers = append(s.observers, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.observers {
				if sub.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *ErrorStore) notify(ev models.StoreEvent) {
	s.mu.Lock()
	subs := make([]subscription, len(s.observers))
	copy(subs, s.observers)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}

func (s *ErrorStore) findLocked(id string) *models.CapturedError {
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func cloneError(e *models.CapturedError) *models.CapturedError {
	if e == nil {
		return nil
	}
	c := *e
	c.Result = e.Result.Clone()
	return &c
}
