package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryScheduler is a map-backed Source for tests and single-node use.
type InMemoryScheduler struct {
	mu   sync.Mutex
	byID map[string]Invocation
}

// NewInMemoryScheduler returns an empty InMemoryScheduler.
func NewInMemoryScheduler() *InMemoryScheduler {
	return &InMemoryScheduler{byID: make(map[string]Invocation)}
}

// CreateInvocation implements Scheduler.CreateInvocation.
func (s *InMemoryScheduler) CreateInvocation(ctx context.Context, componentID, opaqueKey string, runAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.byID[id] = Invocation{ID: id, ComponentID: componentID, OpaqueKey: opaqueKey, RunAt: runAt}
	return id, nil
}

// FindInvocations implements Scheduler.FindInvocations.
func (s *InMemoryScheduler) FindInvocations(ctx context.Context, componentID, opaqueKey string) ([]Invocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Invocation
	for _, inv := range s.byID {
		if inv.ComponentID == componentID && inv.OpaqueKey == opaqueKey {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out, nil
}

// DeleteInvocation implements Scheduler.DeleteInvocation.
func (s *InMemoryScheduler) DeleteInvocation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

// DueInvocations implements Source.DueInvocations.
func (s *InMemoryScheduler) DueInvocations(ctx context.Context, componentID string, now time.Time, limit int) ([]Invocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Invocation
	for _, inv := range s.byID {
		if inv.ComponentID == componentID && !inv.RunAt.After(now) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count reports the number of pending invocations, for tests.
func (s *InMemoryScheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
