package schedule

import (
	"context"
	"time"
)

// ComponentID identifies this subsystem to the external scheduler.
const ComponentID = "evaluation.lifecycle"

// Invocation is one pending wake-up owned by the external scheduler and
// referenced here by its opaque id.
type Invocation struct {
	ID          string
	ComponentID string
	OpaqueKey   string
	RunAt       time.Time
}

// Scheduler is the external scheduler collaborator. Implementations must
// treat DeleteInvocation of an unknown id as a no-op.
type Scheduler interface {
	CreateInvocation(ctx context.Context, componentID, opaqueKey string, runAt time.Time) (string, error)
	FindInvocations(ctx context.Context, componentID, opaqueKey string) ([]Invocation, error)
	DeleteInvocation(ctx context.Context, id string) error
}

// Source extends a scheduler with the polling side the Pump drives.
type Source interface {
	Scheduler
	// DueInvocations returns up to limit invocations whose run time is at
	// or before now, earliest first.
	DueInvocations(ctx context.Context, componentID string, now time.Time, limit int) ([]Invocation, error)
}

// Identity resolves the current actor and the control capability for
// user-initiated actions.
type Identity interface {
	CurrentActorID(ctx context.Context) (string, error)
	CanControl(ctx context.Context, actorID string, evalID int64) (bool, error)
}
