package lock

import (
	"context"
	"sync"
	"time"

	"github.com/sakaicontrib/evaluation-sub013/v1/lifecycle"
	"github.com/sakaicontrib/evaluation-sub013/v1/metrics"
)

type memoryRow struct {
	holder       string
	lastModified time.Time
}

// InMemory implements Locker with process-local state. It is meant for
// tests and single-node deployments.
type InMemory struct {
	mu    sync.Mutex
	rows  map[string]memoryRow
	clock lifecycle.Clock
}

// NewInMemory returns a new in-memory locker. A nil clock defaults to the
// wall clock.
func NewInMemory(clock lifecycle.Clock) *InMemory {
	if clock == nil {
		clock = lifecycle.System
	}
	return &InMemory{rows: make(map[string]memoryRow), clock: clock}
}

// Obtain implements Locker.Obtain.
func (l *InMemory) Obtain(ctx context.Context, name, holder string, lease time.Duration) (Status, error) {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	row, ok := l.rows[name]
	switch {
	case !ok:
	case row.holder == holder:
		// re-entrant renewal, regardless of lease age
	case now.Sub(row.lastModified) > lease:
		metrics.LockStolenCounter.Inc()
	default:
		metrics.LockDeniedCounter.Inc()
		return StatusDenied, nil
	}
	l.rows[name] = memoryRow{holder: holder, lastModified: now}
	metrics.LockAcquiredCounter.Inc()
	return StatusAcquired, nil
}

// Release implements Locker.Release.
func (l *InMemory) Release(ctx context.Context, name, holder string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.rows[name]
	if !ok || row.holder != holder {
		return false, nil
	}
	delete(l.rows, name)
	return true, nil
}
