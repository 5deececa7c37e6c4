package store

import (
	"context"
	"sync"
)

// InMemory is a map-backed EvaluationStore for tests.
type InMemory struct {
	mu     sync.Mutex
	nextID int64
	evals  map[int64]*Evaluation
}

// NewInMemory returns an empty InMemory store.
func NewInMemory() *InMemory {
	return &InMemory{nextID: 1, evals: make(map[int64]*Evaluation)}
}

// Load implements EvaluationStore.Load.
func (s *InMemory) Load(ctx context.Context, id int64) (*Evaluation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.evals[id]
	if !ok || e.Deleted {
		return nil, false, nil
	}
	cp := *e
	return &cp, true, nil
}

// Save implements EvaluationStore.Save.
func (s *InMemory) Save(ctx context.Context, e *Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.nextID
		s.nextID++
	}
	cp := *e
	s.evals[e.ID] = &cp
	return nil
}

// Delete implements EvaluationStore.Delete.
func (s *InMemory) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.evals[id]; ok {
		e.Deleted = true
	}
	return nil
}

// All implements EvaluationStore.All.
func (s *InMemory) All(ctx context.Context) ([]*Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Evaluation
	for _, e := range s.evals {
		if e.Deleted {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}
