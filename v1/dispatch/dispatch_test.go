package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sakaicontrib/evaluation-sub013/v1/bus"
	"github.com/sakaicontrib/evaluation-sub013/v1/lifecycle"
	"github.com/sakaicontrib/evaluation-sub013/v1/schedule"
	"github.com/sakaicontrib/evaluation-sub013/v1/store"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func date(day, hour int) *time.Time {
	t := time.Date(2024, time.January, day, hour, 0, 0, 0, time.UTC)
	return &t
}

type call struct {
	kind    string
	evalID  int64
	widened bool
	job     schedule.JobType
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []call
	fail  error
}

func (n *recordingNotifier) record(c call) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.calls = append(n.calls, c)
	return nil
}

func (n *recordingNotifier) SendCreated(ctx context.Context, evalID int64) error {
	return n.record(call{kind: "created", evalID: evalID})
}

func (n *recordingNotifier) SendAvailable(ctx context.Context, evalID int64) error {
	return n.record(call{kind: "available", evalID: evalID})
}

func (n *recordingNotifier) SendReminder(ctx context.Context, evalID int64, audience string) error {
	return n.record(call{kind: "reminder", evalID: evalID})
}

func (n *recordingNotifier) SendResultsViewable(ctx context.Context, evalID int64, includeEvaluatees, includeAdmins bool, job schedule.JobType) error {
	return n.record(call{kind: "results", evalID: evalID, widened: includeEvaluatees && includeAdmins, job: job})
}

type fixture struct {
	store    *store.InMemory
	sched    *schedule.InMemoryScheduler
	notifier *recordingNotifier
	clock    *fakeClock
	disp     *Dispatcher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.NewInMemory(),
		sched:    schedule.NewInMemoryScheduler(),
		notifier: &recordingNotifier{},
		clock:    &fakeClock{now: time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)},
	}
	tr := schedule.NewTransitions(f.sched, schedule.WithClock(f.clock))
	opts = append([]Option{WithClock(f.clock)}, opts...)
	f.disp = New(f.store, tr, f.notifier, opts...)
	return f
}

func (f *fixture) seed(t *testing.T, e *store.Evaluation) {
	t.Helper()
	if err := f.store.Save(context.Background(), e); err != nil {
		t.Fatalf("seed evaluation: %v", err)
	}
}

func (f *fixture) pending(t *testing.T, key schedule.Key) []schedule.Invocation {
	t.Helper()
	invs, err := f.sched.FindInvocations(context.Background(), schedule.ComponentID, key.String())
	if err != nil {
		t.Fatalf("find %s: %v", key, err)
	}
	return invs
}

func TestExecuteMissingEvaluationPurges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, job := range schedule.AllJobs() {
		if _, err := f.sched.CreateInvocation(ctx, schedule.ComponentID, schedule.Key{EvalID: 404, Job: job}.String(), f.clock.now); err != nil {
			t.Fatalf("seed invocation: %v", err)
		}
	}
	if err := f.disp.Execute(ctx, schedule.Key{EvalID: 404, Job: schedule.JobActive}); err != nil {
		t.Fatalf("execute for missing evaluation: %v", err)
	}
	if n := f.sched.Count(); n != 0 {
		t.Fatalf("%d invocations survived the purge", n)
	}
}

func TestExecuteActiveSchedulesDueAndReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, &store.Evaluation{ID: 1, StartDate: date(1, 0), DueDate: date(8, 0), ReminderDays: 3})
	f.clock.now = date(1, 0).Add(time.Minute)

	if err := f.disp.Execute(ctx, schedule.Key{EvalID: 1, Job: schedule.JobActive}); err != nil {
		t.Fatalf("execute active: %v", err)
	}
	if len(f.notifier.calls) != 1 || f.notifier.calls[0].kind != "available" {
		t.Fatalf("notifications: %+v", f.notifier.calls)
	}
	due := f.pending(t, schedule.Key{EvalID: 1, Job: schedule.JobDue})
	if len(due) != 1 || !due[0].RunAt.Equal(*date(8, 0)) {
		t.Fatalf("due invocation: %+v", due)
	}
	rem := f.pending(t, schedule.Key{EvalID: 1, Job: schedule.JobReminder})
	if len(rem) != 1 || !rem[0].RunAt.Equal(*date(4, 0)) {
		t.Fatalf("reminder invocation: %+v", rem)
	}

	// A persisted state, refreshed from the dates just dispatched.
	e, ok, err := f.store.Load(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("load: %v %v", ok, err)
	}
	if e.State != lifecycle.StateActive.String() {
		t.Fatalf("persisted state %q", e.State)
	}
}

func TestExecuteActiveWithoutReminderDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, &store.Evaluation{ID: 2, StartDate: date(1, 0), DueDate: date(8, 0)})
	f.clock.now = date(1, 0).Add(time.Minute)

	if err := f.disp.Execute(ctx, schedule.Key{EvalID: 2, Job: schedule.JobActive}); err != nil {
		t.Fatalf("execute active: %v", err)
	}
	if rem := f.pending(t, schedule.Key{EvalID: 2, Job: schedule.JobReminder}); len(rem) != 0 {
		t.Fatalf("reminder scheduled despite zero interval: %+v", rem)
	}
}

func TestExecuteDueWithStopUnsetSchedulesClosedNow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, &store.Evaluation{ID: 3, StartDate: date(1, 0), DueDate: date(8, 0)})
	f.clock.now = *date(8, 2) // due already passed

	if err := f.disp.Execute(ctx, schedule.Key{EvalID: 3, Job: schedule.JobDue}); err != nil {
		t.Fatalf("execute due: %v", err)
	}
	closed := f.pending(t, schedule.Key{EvalID: 3, Job: schedule.JobClosed})
	if len(closed) != 1 || !closed[0].RunAt.Equal(f.clock.now) {
		t.Fatalf("closed invocation: %+v", closed)
	}
}

func TestExecuteDueWithDistinctStopUsesStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, &store.Evaluation{ID: 4, StartDate: date(1, 0), DueDate: date(8, 0), StopDate: date(10, 0)})
	f.clock.now = *date(8, 2)

	if err := f.disp.Execute(ctx, schedule.Key{EvalID: 4, Job: schedule.JobDue}); err != nil {
		t.Fatalf("execute due: %v", err)
	}
	closed := f.pending(t, schedule.Key{EvalID: 4, Job: schedule.JobClosed})
	if len(closed) != 1 || !closed[0].RunAt.Equal(*date(10, 0)) {
		t.Fatalf("closed invocation: %+v", closed)
	}
}

func TestExecuteDueWithoutDueDateIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A due invocation can linger after the due date was cleared. It must
	// not close an evaluation that now runs indefinitely.
	f.seed(t, &store.Evaluation{ID: 13, StartDate: date(1, 0)})
	f.clock.now = *date(8, 2)

	if err := f.disp.Execute(ctx, schedule.Key{EvalID: 13, Job: schedule.JobDue}); err != nil {
		t.Fatalf("execute due: %v", err)
	}
	if closed := f.pending(t, schedule.Key{EvalID: 13, Job: schedule.JobClosed}); len(closed) != 0 {
		t.Fatalf("closed invocation for an open-ended evaluation: %+v", closed)
	}
}

func TestExecuteClosedPrivateSkipsAudienceJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, &store.Evaluation{
		ID:                  5,
		StartDate:           date(1, 0),
		DueDate:             date(8, 0),
		ViewDate:            date(15, 0),
		InstructorsViewDate: date(16, 0),
		StudentsViewDate:    date(17, 0),
		ResultsSharing:      store.SharingPrivate,
	})
	f.clock.now = *date(9, 0)

	if err := f.disp.Execute(ctx, schedule.Key{EvalID: 5, Job: schedule.JobClosed}); err != nil {
		t.Fatalf("execute closed: %v", err)
	}
	if v := f.pending(t, schedule.Key{EvalID: 5, Job: schedule.JobViewable}); len(v) != 1 || !v[0].RunAt.Equal(*date(15, 0)) {
		t.Fatalf("viewable invocation: %+v", v)
	}
	if v := f.pending(t, schedule.Key{EvalID: 5, Job: schedule.JobViewableInstructors}); len(v) != 0 {
		t.Fatalf("instructors job for private results: %+v", v)
	}
	if v := f.pending(t, schedule.Key{EvalID: 5, Job: schedule.JobViewableStudents}); len(v) != 0 {
		t.Fatalf("students job for private results: %+v", v)
	}
}

func TestExecuteClosedSharedSchedulesAudienceJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, &store.Evaluation{
		ID:                  6,
		StartDate:           date(1, 0),
		DueDate:             date(8, 0),
		InstructorsViewDate: date(16, 0),
		StudentsViewDate:    date(17, 0),
		ResultsSharing:      store.SharingShared,
	})
	f.clock.now = *date(9, 0)

	if err := f.disp.Execute(ctx, schedule.Key{EvalID: 6, Job: schedule.JobClosed}); err != nil {
		t.Fatalf("execute closed: %v", err)
	}
	// View date unset: viewable fires immediately.
	if v := f.pending(t, schedule.Key{EvalID: 6, Job: schedule.JobViewable}); len(v) != 1 || !v[0].RunAt.Equal(f.clock.now) {
		t.Fatalf("viewable invocation: %+v", v)
	}
	if v := f.pending(t, schedule.Key{EvalID: 6, Job: schedule.JobViewableInstructors}); len(v) != 1 {
		t.Fatalf("instructors invocation: %+v", v)
	}
	if v := f.pending(t, schedule.Key{EvalID: 6, Job: schedule.JobViewableStudents}); len(v) != 1 {
		t.Fatalf("students invocation: %+v", v)
	}
}

func TestExecuteViewableAudienceWidth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, &store.Evaluation{ID: 7, StartDate: date(1, 0), DueDate: date(8, 0), ResultsSharing: store.SharingPrivate})
	f.clock.now = *date(20, 0)

	if err := f.disp.Execute(ctx, schedule.Key{EvalID: 7, Job: schedule.JobViewable}); err != nil {
		t.Fatalf("execute viewable: %v", err)
	}
	if len(f.notifier.calls) != 1 || f.notifier.calls[0].widened {
		t.Fatalf("private results must notify the owner only: %+v", f.notifier.calls)
	}

	f.seed(t, &store.Evaluation{ID: 8, StartDate: date(1, 0), DueDate: date(8, 0), ResultsSharing: store.SharingPublic})
	if err := f.disp.Execute(ctx, schedule.Key{EvalID: 8, Job: schedule.JobViewable}); err != nil {
		t.Fatalf("execute viewable: %v", err)
	}
	last := f.notifier.calls[len(f.notifier.calls)-1]
	if !last.widened || last.job != schedule.JobViewable {
		t.Fatalf("public results must widen the audience: %+v", last)
	}
}

func TestExecuteViewableInstructorsRaisesEvent(t *testing.T) {
	b := bus.NewInMemoryBus()
	f := newFixture(t, WithBus(b))
	ctx := context.Background()

	f.seed(t, &store.Evaluation{ID: 9, StartDate: date(1, 0), DueDate: date(8, 0), ResultsSharing: store.SharingShared})
	f.clock.now = *date(20, 0)

	ch, err := b.Subscribe(ctx, bus.Topic(bus.EventViewableInstructors, 9))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := f.disp.Execute(ctx, schedule.Key{EvalID: 9, Job: schedule.JobViewableInstructors}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	select {
	case <-ch:
	default:
		t.Fatal("no domain event on the bus")
	}
}

func TestExecuteReminderSkipsWhenNoLongerDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Due already behind: the reminder arrives late and must do nothing.
	f.seed(t, &store.Evaluation{ID: 10, StartDate: date(1, 0), DueDate: date(8, 0), ReminderDays: 3})
	f.clock.now = *date(8, 2)

	if err := f.disp.Execute(ctx, schedule.Key{EvalID: 10, Job: schedule.JobReminder}); err != nil {
		t.Fatalf("execute reminder: %v", err)
	}
	if len(f.notifier.calls) != 0 {
		t.Fatalf("late reminder still notified: %+v", f.notifier.calls)
	}
}

func TestExecuteReminderNotifiesAndReschedules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, &store.Evaluation{ID: 11, StartDate: date(1, 0), DueDate: date(20, 0), ReminderDays: 3})
	f.clock.now = *date(4, 1) // just past the first reminder slot

	if err := f.disp.Execute(ctx, schedule.Key{EvalID: 11, Job: schedule.JobReminder}); err != nil {
		t.Fatalf("execute reminder: %v", err)
	}
	if len(f.notifier.calls) != 1 || f.notifier.calls[0].kind != "reminder" {
		t.Fatalf("notifications: %+v", f.notifier.calls)
	}
	rem := f.pending(t, schedule.Key{EvalID: 11, Job: schedule.JobReminder})
	if len(rem) != 1 || !rem[0].RunAt.Equal(*date(7, 0)) {
		t.Fatalf("next reminder: %+v", rem)
	}
}

func TestExecuteNotifierFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, &store.Evaluation{ID: 12, StartDate: date(1, 0)})
	f.clock.now = *date(2, 0)
	f.notifier.fail = errors.New("smtp down")

	err := f.disp.Execute(ctx, schedule.Key{EvalID: 12, Job: schedule.JobActive})
	if err == nil {
		t.Fatal("notifier failure must surface to the pump")
	}
}
