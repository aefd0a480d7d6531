package storefake

import (
	"context"
	"maps"
	"sync"

	"github.com/cagkantasci/smartop/securestore"
)

var _ securestore.Store = (*FakeStore)(nil)

type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpDelete Op = "delete"
)

type failKey struct {
	op  Op
	key string
}

// FakeStore is an in-memory securestore.Store with failure injection.
type FakeStore struct {
	values map[string]string
	fails  map[failKey]error
	lock   sync.RWMutex
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		values: make(map[string]string),
		fails:  make(map[failKey]error),
	}
}

// FailOn makes every op on key return err until cleared with a nil err.
func (s *FakeStore) FailOn(op Op, key string, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err == nil {
		delete(s.fails, failKey{op, key})
		return
	}
	s.fails[failKey{op, key}] = err
}

func (s *FakeStore) Get(_ context.Context, key string) (string, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if err := s.fails[failKey{OpGet, key}]; err != nil {
		return "", false, err
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *FakeStore) Set(_ context.Context, key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.fails[failKey{OpSet, key}]; err != nil {
		return err
	}
	s.values[key] = value
	return nil
}

func (s *FakeStore) Delete(_ context.Context, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.fails[failKey{OpDelete, key}]; err != nil {
		return err
	}
	delete(s.values, key)
	return nil
}

// Has reports whether key is present, bypassing failure injection.
func (s *FakeStore) Has(key string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Snapshot returns a copy of the stored values.
func (s *FakeStore) Snapshot() map[string]string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return maps.Clone(s.values)
}
