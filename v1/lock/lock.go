package lock

import (
	"context"
	"fmt"
	"time"

	uuid "github.com/hashicorp/go-uuid"
)

// Status is the outcome of an Obtain attempt.
type Status int

const (
	// StatusAcquired means the caller now holds the lock.
	StatusAcquired Status = iota
	// StatusDenied means a still-valid other holder has the lock. This is
	// a normal outcome, not an error.
	StatusDenied
	// StatusError means an unexpected storage fault occurred. The lock row
	// has been defensively removed so the system self-heals.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusAcquired:
		return "acquired"
	case StatusDenied:
		return "denied"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Locker is the lease-based distributed lock primitive.
type Locker interface {
	// Obtain attempts to take or renew the named lock. It returns
	// immediately. Re-obtaining by the current holder always succeeds and
	// refreshes the lease; a lease unrenewed for longer than lease may be
	// stolen by another holder.
	Obtain(ctx context.Context, name, holder string, lease time.Duration) (Status, error)
	// Release deletes the lock row. It returns true only when a row
	// existed and its holder matched; a mismatching or absent row is left
	// untouched and reported as false.
	Release(ctx context.Context, name, holder string) (bool, error)
}

// DefaultLease is the lease used by RunExclusive.
const DefaultLease = time.Minute

// NewHolderID mints a holder identity for this process, typically
// "<node>-<uuid>".
func NewHolderID(prefix string) string {
	id, err := uuid.GenerateUUID()
	if err != nil {
		id = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// RunExclusive obtains the named lock for holder, runs fn while holding it
// and releases on every exit path, including a panicking fn. On Denied or
// Error fn is never run; the status tells the caller which it was.
func RunExclusive(ctx context.Context, l Locker, name, holder string, fn func(ctx context.Context) error) (Status, error) {
	st, err := l.Obtain(ctx, name, holder, DefaultLease)
	if st != StatusAcquired {
		return st, err
	}
	defer func() {
		_, _ = l.Release(ctx, name, holder)
	}()
	return StatusAcquired, fn(ctx)
}
