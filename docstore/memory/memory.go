// Package memorystore provides an in-memory document store. It is only safe
// for single-process deployments and is the default for tests and dev mode.
package memorystore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/kehilla-app/accounts/docstore"
)

type Store struct {
	mu   sync.Mutex
	cols map[string]map[string][]byte
}

func New() *Store {
	return &Store{cols: make(map[string]map[string][]byte)}
}

func (s *Store) Get(ctx context.Context, collection, id string) ([]byte, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.cols[collection][id]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), doc...), true, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, doc []byte) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, id, doc)
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fn docstore.UpdateFunc) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	current, found := s.cols[collection][id]
	next, err := fn(current, found)
	if errors.Is(err, docstore.ErrUnchanged) {
		return nil
	}
	if err != nil {
		return err
	}
	if next == nil {
		delete(s.cols[collection], id)
		return nil
	}
	s.put(collection, id, next)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cols[collection], id)
	return nil
}

func (s *Store) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.cols[collection]
	out := make([]docstore.Document, 0, len(col))
	for id, doc := range col {
		out = append(out, docstore.Document{ID: id, Data: append([]byte(nil), doc...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cols[collection]), nil
}

func (s *Store) put(collection, id string, doc []byte) {
	col, ok := s.cols[collection]
	if !ok {
		col = make(map[string][]byte)
		s.cols[collection] = col
	}
	col[id] = append([]byte(nil), doc...)
}
