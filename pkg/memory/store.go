// Package memory provides a process-local flat string store with the same
// surface as the SQLite-backed preferences store.
package memory

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Store is a concurrency-safe map of string keys to string values.
// The zero value is not usable; call New.
type Store struct {
	mu   sync.Mutex
	data map[string]string

	// failSet, when non-nil, is returned by Set. Used to simulate a broken backend.
	failSet error
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

// Get returns the value for key and whether it exists.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *Store) Set(key, value string) error {
	if key == "" {
		return errors.New("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet != nil {
		return s.failSet
	}
	s.data[key] = value
	return nil
}

// Delete removes key. Missing keys are ignored.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys lists keys starting with prefix in lexical order.
func (s *Store) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// DeletePrefix removes every key starting with prefix.
func (s *Store) DeletePrefix(prefix string) (int64, error) {
	if strings.TrimSpace(prefix) == "" {
		return 0, errors.New("refusing to delete with empty prefix")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// FailWrites makes every subsequent Set return err; nil restores normal behavior.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	s.failSet = err
	s.mu.Unlock()
}
