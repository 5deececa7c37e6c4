package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	evalerrors "github.com/sakaicontrib/evaluation-sub013/v1/errors"
	"github.com/sakaicontrib/evaluation-sub013/v1/lifecycle"
	"github.com/sakaicontrib/evaluation-sub013/v1/metrics"
	"github.com/sakaicontrib/evaluation-sub013/v1/store"
)

const (
	// createdDelay postpones the creation announcement so the creator can
	// still cancel a just-made evaluation.
	createdDelay = 5 * time.Minute
	// reminderLead is the closest a reminder may be scheduled to now.
	reminderLead = 15 * time.Minute
)

// Transitions creates, reconciles and cancels the pending invocations of
// evaluations as their data changes.
type Transitions struct {
	sched    Scheduler
	clock    lifecycle.Clock
	identity Identity
	log      zerolog.Logger
}

// TransitionsOption configures a Transitions.
type TransitionsOption func(*Transitions)

// WithClock pins the clock, mainly for tests.
func WithClock(c lifecycle.Clock) TransitionsOption {
	return func(t *Transitions) { t.clock = c }
}

// WithIdentity wires the authorization collaborator used by CancelByUser.
func WithIdentity(id Identity) TransitionsOption {
	return func(t *Transitions) { t.identity = id }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) TransitionsOption {
	return func(t *Transitions) { t.log = log }
}

// NewTransitions returns a Transitions over the given scheduler.
func NewTransitions(sched Scheduler, opts ...TransitionsOption) *Transitions {
	t := &Transitions{sched: sched, clock: lifecycle.System, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnCreate schedules the initial invocations of a freshly created
// evaluation: the creation announcement after the grace delay (unless the
// evaluation is mandatory with fixed items) and the activation at the
// start date.
func (t *Transitions) OnCreate(ctx context.Context, e *store.Evaluation) error {
	if e.ID == 0 || e.StartDate == nil {
		return fmt.Errorf("schedule create for evaluation %d: %w", e.ID, evalerrors.ErrConfiguration)
	}
	if e.InstructorsCanAddItems || !e.Mandatory {
		if err := t.Schedule(ctx, Key{e.ID, JobCreated}, t.clock.Now().Add(createdDelay)); err != nil {
			return err
		}
	}
	return t.Schedule(ctx, Key{e.ID, JobActive}, *e.StartDate)
}

// OnDelete best-effort cancels every pending invocation of an evaluation.
// It is idempotent; absent entries are silently skipped. The caller must
// run this before any other delete effect.
func (t *Transitions) OnDelete(ctx context.Context, evalID int64) error {
	var errs []error
	for _, job := range AllJobs() {
		if err := t.Cancel(ctx, Key{evalID, job}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OnUpdate reconciles the pending invocations of an evaluation against its
// current dates, branching on the freshly resolved state.
func (t *Transitions) OnUpdate(ctx context.Context, e *store.Evaluation) error {
	now := t.clock.Now()
	state := lifecycle.Resolve(now, e.Dates(), e.Partial, e.Deleted)

	switch state {
	case lifecycle.StateUnknown:
		t.log.Error().Int64("evaluation", e.ID).Msg("cannot resolve state, nothing scheduled")
		return fmt.Errorf("evaluation %d has no start date: %w", e.ID, evalerrors.ErrStateInconsistent)

	case lifecycle.StateInQueue:
		_, err := t.reconcile(ctx, Key{e.ID, JobActive}, *e.StartDate)
		return err

	case lifecycle.StateActive:
		if err := t.Cancel(ctx, Key{e.ID, JobReminder}); err != nil {
			return err
		}
		if e.ReminderDays > 0 {
			if err := t.ScheduleReminder(ctx, e); err != nil {
				return err
			}
		}
		// A cleared due date leaves the evaluation open indefinitely; any
		// pending due invocation is now stale and must go.
		if e.DueDate == nil {
			return t.Cancel(ctx, Key{e.ID, JobDue})
		}
		changed, err := t.reconcile(ctx, Key{e.ID, JobDue}, *e.DueDate)
		if err != nil {
			return err
		}
		if changed {
			return t.dropStaleReminder(ctx, e)
		}
		return nil

	case lifecycle.StateDue:
		_, err := t.reconcile(ctx, Key{e.ID, JobClosed}, *e.Dates().EffectiveStop())
		return err

	case lifecycle.StateClosed:
		if _, err := t.reconcile(ctx, Key{e.ID, JobViewable}, *e.Dates().EffectiveView()); err != nil {
			return err
		}
		if e.ResultsSharing != store.SharingPrivate {
			if e.InstructorsViewDate != nil {
				if _, err := t.reconcile(ctx, Key{e.ID, JobViewableInstructors}, *e.InstructorsViewDate); err != nil {
					return err
				}
			}
			if e.StudentsViewDate != nil {
				if _, err := t.reconcile(ctx, Key{e.ID, JobViewableStudents}, *e.StudentsViewDate); err != nil {
					return err
				}
			}
		}
		return nil
	}

	// Partial, Viewable and Deleted have no pending transitions to keep.
	return nil
}

// Schedule creates an invocation for key at the given time.
func (t *Transitions) Schedule(ctx context.Context, key Key, at time.Time) error {
	if _, err := t.sched.CreateInvocation(ctx, ComponentID, key.String(), at); err != nil {
		return err
	}
	t.log.Debug().Stringer("key", key).Time("at", at).Msg("scheduled invocation")
	return nil
}

// Cancel removes every invocation for key. Absent entries are a no-op.
func (t *Transitions) Cancel(ctx context.Context, key Key) error {
	invs, err := t.sched.FindInvocations(ctx, ComponentID, key.String())
	if err != nil {
		return err
	}
	for _, inv := range invs {
		if err := t.sched.DeleteInvocation(ctx, inv.ID); err != nil {
			return err
		}
	}
	return nil
}

// ScheduleReminder computes and schedules the next reminder. No reminder
// is scheduled when the interval is zero or the due date leaves no room
// for one.
func (t *Transitions) ScheduleReminder(ctx context.Context, e *store.Evaluation) error {
	if e.ReminderDays <= 0 || e.StartDate == nil {
		return nil
	}
	now := t.clock.Now()
	interval := time.Duration(e.ReminderDays) * 24 * time.Hour
	if e.DueDate != nil && e.DueDate.Sub(now) <= interval {
		return nil
	}
	candidate := e.StartDate.Add(interval)
	for candidate.Before(now.Add(reminderLead)) {
		candidate = candidate.Add(interval)
	}
	return t.Schedule(ctx, Key{e.ID, JobReminder}, candidate)
}

// CancelByUser removes the invocations for key on behalf of the current
// actor, after checking the control capability. Authorization failures
// surface to the caller instead of being swallowed.
func (t *Transitions) CancelByUser(ctx context.Context, key Key) error {
	if t.identity == nil {
		return fmt.Errorf("cancel %s: no identity collaborator: %w", key, evalerrors.ErrNotAuthorized)
	}
	actor, err := t.identity.CurrentActorID(ctx)
	if err != nil {
		return err
	}
	ok, err := t.identity.CanControl(ctx, actor, key.EvalID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("actor %s cannot control evaluation %d: %w", actor, key.EvalID, evalerrors.ErrNotAuthorized)
	}
	return t.Cancel(ctx, key)
}

// reconcile fetches the single pending invocation for key and, when its
// time differs from at, replaces it (cancel-then-create). Surplus entries
// beyond the first are removed to restore the at-most-one invariant.
func (t *Transitions) reconcile(ctx context.Context, key Key, at time.Time) (bool, error) {
	invs, err := t.sched.FindInvocations(ctx, ComponentID, key.String())
	if err != nil {
		return false, err
	}
	for _, extra := range invs[min(len(invs), 1):] {
		if err := t.sched.DeleteInvocation(ctx, extra.ID); err != nil {
			return false, err
		}
	}
	if len(invs) > 0 && invs[0].RunAt.Equal(at) {
		return false, nil
	}
	if len(invs) > 0 {
		if err := t.sched.DeleteInvocation(ctx, invs[0].ID); err != nil {
			return false, err
		}
	}
	if err := t.Schedule(ctx, key, at); err != nil {
		return false, err
	}
	metrics.RescheduleCounter.Inc()
	return true, nil
}

// dropStaleReminder cancels a pending reminder made moot by a due-date
// change. The check compares the reminder time to the new due date only,
// not to the current clock.
func (t *Transitions) dropStaleReminder(ctx context.Context, e *store.Evaluation) error {
	key := Key{e.ID, JobReminder}
	invs, err := t.sched.FindInvocations(ctx, ComponentID, key.String())
	if err != nil || len(invs) == 0 {
		return err
	}
	if e.ReminderDays == 0 || (e.DueDate != nil && !invs[0].RunAt.Before(*e.DueDate)) {
		t.log.Debug().Stringer("key", key).Msg("cancelling stale reminder after due change")
		return t.Cancel(ctx, key)
	}
	return nil
}
