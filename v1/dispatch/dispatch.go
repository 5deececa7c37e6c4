package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sakaicontrib/evaluation-sub013/v1/bus"
	evalerrors "github.com/sakaicontrib/evaluation-sub013/v1/errors"
	"github.com/sakaicontrib/evaluation-sub013/v1/lifecycle"
	"github.com/sakaicontrib/evaluation-sub013/v1/metrics"
	"github.com/sakaicontrib/evaluation-sub013/v1/schedule"
	"github.com/sakaicontrib/evaluation-sub013/v1/store"
)

var tracer = otel.Tracer("github.com/sakaicontrib/evaluation-sub013/v1/dispatch")

// Notifier delivers lifecycle notifications to the relevant audiences.
// Implementations live outside this module (mail, portal messages); tests
// use a recording fake.
type Notifier interface {
	// SendCreated announces a freshly created evaluation to its instructors.
	SendCreated(ctx context.Context, evalID int64) error
	// SendAvailable announces that an evaluation is open for responses.
	SendAvailable(ctx context.Context, evalID int64) error
	// SendReminder nudges the users matched by the audience filter.
	SendReminder(ctx context.Context, evalID int64, audience string) error
	// SendResultsViewable announces viewable results. The flags widen the
	// audience beyond the owner; job carries which variant fired.
	SendResultsViewable(ctx context.Context, evalID int64, includeEvaluatees, includeAdmins bool, job schedule.JobType) error
}

// AudienceNonResponders is the audience filter for reminder notifications.
const AudienceNonResponders = "non-responders"

// Dispatcher executes one wake-up invocation at a time. It is safe for
// concurrent use.
type Dispatcher struct {
	store       store.EvaluationStore
	transitions *schedule.Transitions
	notifier    Notifier
	bus         bus.Bus
	clock       lifecycle.Clock
	log         zerolog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBus wires the event bus the instructor/student viewable variants
// publish to. Without it no events are raised.
func WithBus(b bus.Bus) Option {
	return func(d *Dispatcher) { d.bus = b }
}

// WithClock pins the clock, mainly for tests.
func WithClock(c lifecycle.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// New returns a Dispatcher over the given collaborators.
func New(st store.EvaluationStore, tr *schedule.Transitions, n Notifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:       st,
		transitions: tr,
		notifier:    n,
		clock:       lifecycle.System,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute performs the side effect of one due invocation and schedules the
// follow-on invocations the job implies. A missing evaluation purges its
// remaining invocations and returns nil; everything else that goes wrong
// surfaces as a typed error for the pump to log.
func (d *Dispatcher) Execute(ctx context.Context, key schedule.Key) error {
	ctx, span := tracer.Start(ctx, "Dispatcher.Execute", trace.WithAttributes(
		attribute.Int64("eval.id", key.EvalID),
		attribute.String("eval.job", key.Job.String()),
	))
	defer span.End()

	metrics.InvocationCounter.Inc()

	e, ok, err := d.store.Load(ctx, key.EvalID)
	if err != nil {
		return fmt.Errorf("load evaluation %d: %w", key.EvalID, err)
	}
	if !ok {
		d.log.Info().Int64("evaluation", key.EvalID).Msg("evaluation gone, purging invocations")
		return d.transitions.OnDelete(ctx, key.EvalID)
	}

	now := d.clock.Now()
	state := lifecycle.Resolve(now, e.Dates(), e.Partial, e.Deleted)
	if state == lifecycle.StateUnknown {
		return fmt.Errorf("dispatch %s: resolved state unknown: %w", key, evalerrors.ErrStateInconsistent)
	}
	// Self-healing: persist the freshly resolved state so a missed or
	// delayed wake-up never leaves a stale state on record.
	if e.State != state.String() {
		e.State = state.String()
		if err := d.store.Save(ctx, e); err != nil {
			return fmt.Errorf("persist state of evaluation %d: %w", e.ID, err)
		}
	}

	switch key.Job {
	case schedule.JobCreated:
		return d.notify(d.notifier.SendCreated(ctx, e.ID))

	case schedule.JobActive:
		if err := d.notify(d.notifier.SendAvailable(ctx, e.ID)); err != nil {
			return err
		}
		if e.DueDate != nil {
			if err := d.reschedule(ctx, schedule.Key{EvalID: e.ID, Job: schedule.JobDue}, *e.DueDate); err != nil {
				return err
			}
		}
		return d.rescheduleReminder(ctx, e)

	case schedule.JobReminder:
		if state != lifecycle.StateActive || e.ReminderDays <= 0 {
			return nil
		}
		if e.DueDate != nil && !e.DueDate.After(now) {
			return nil
		}
		if err := d.notify(d.notifier.SendReminder(ctx, e.ID, AudienceNonResponders)); err != nil {
			return err
		}
		return d.rescheduleReminder(ctx, e)

	case schedule.JobDue:
		// A due invocation left over from before the due date was cleared
		// must not close an evaluation that now runs indefinitely.
		if e.DueDate == nil {
			return nil
		}
		return d.reschedule(ctx, schedule.Key{EvalID: e.ID, Job: schedule.JobClosed}, d.closeAt(e, now))

	case schedule.JobClosed:
		viewAt := now
		if e.ViewDate != nil {
			viewAt = *e.ViewDate
		}
		if err := d.reschedule(ctx, schedule.Key{EvalID: e.ID, Job: schedule.JobViewable}, viewAt); err != nil {
			return err
		}
		if e.ResultsSharing == store.SharingPrivate {
			return nil
		}
		if e.InstructorsViewDate != nil {
			if err := d.reschedule(ctx, schedule.Key{EvalID: e.ID, Job: schedule.JobViewableInstructors}, *e.InstructorsViewDate); err != nil {
				return err
			}
		}
		if e.StudentsViewDate != nil {
			if err := d.reschedule(ctx, schedule.Key{EvalID: e.ID, Job: schedule.JobViewableStudents}, *e.StudentsViewDate); err != nil {
				return err
			}
		}
		return nil

	case schedule.JobViewable, schedule.JobViewableInstructors, schedule.JobViewableStudents:
		wide := e.ResultsSharing != store.SharingPrivate
		if err := d.notify(d.notifier.SendResultsViewable(ctx, e.ID, wide, wide, key.Job)); err != nil {
			return err
		}
		return d.raise(ctx, key)
	}

	return fmt.Errorf("dispatch %s: unhandled job: %w", key, evalerrors.ErrConfiguration)
}

// closeAt picks the time the closed invocation should fire: the stop date
// when it is set and differs from due, otherwise due while it is still
// ahead, otherwise right now.
func (d *Dispatcher) closeAt(e *store.Evaluation, now time.Time) time.Time {
	switch {
	case e.StopDate != nil && (e.DueDate == nil || !e.StopDate.Equal(*e.DueDate)):
		return *e.StopDate
	case e.DueDate != nil && e.DueDate.After(now):
		return *e.DueDate
	default:
		return now
	}
}

// reschedule replaces any pending invocation for key with one at the given
// time. Cancel-then-create keeps the at-most-one invariant under duplicate
// deliveries.
func (d *Dispatcher) reschedule(ctx context.Context, key schedule.Key, at time.Time) error {
	if err := d.transitions.Cancel(ctx, key); err != nil {
		return err
	}
	return d.transitions.Schedule(ctx, key, at)
}

func (d *Dispatcher) rescheduleReminder(ctx context.Context, e *store.Evaluation) error {
	if err := d.transitions.Cancel(ctx, schedule.Key{EvalID: e.ID, Job: schedule.JobReminder}); err != nil {
		return err
	}
	return d.transitions.ScheduleReminder(ctx, e)
}

func (d *Dispatcher) notify(err error) error {
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	metrics.NotificationCounter.Inc()
	return nil
}

// raise publishes the domain event for the instructor/student viewable
// variants. The plain viewable job raises no event.
func (d *Dispatcher) raise(ctx context.Context, key schedule.Key) error {
	if d.bus == nil {
		return nil
	}
	var event string
	switch key.Job {
	case schedule.JobViewableInstructors:
		event = bus.EventViewableInstructors
	case schedule.JobViewableStudents:
		event = bus.EventViewableStudents
	default:
		return nil
	}
	if err := d.bus.Publish(ctx, bus.Topic(event, key.EvalID)); err != nil {
		d.log.Warn().Stringer("key", key).Err(err).Msg("publish domain event")
	}
	return nil
}
