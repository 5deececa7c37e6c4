package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)}
}

func TestInMemoryObtainDeniedAndSteal(t *testing.T) {
	clk := newFakeClock()
	l := NewInMemory(clk)
	ctx := context.Background()
	lease := 30 * time.Second

	if st, err := l.Obtain(ctx, "bootstrap", "A", lease); err != nil || st != StatusAcquired {
		t.Fatalf("A obtain: %v %v", st, err)
	}
	if st, err := l.Obtain(ctx, "bootstrap", "B", lease); err != nil || st != StatusDenied {
		t.Fatalf("B obtain while held: %v %v", st, err)
	}

	clk.now = clk.now.Add(lease + time.Second)
	if st, err := l.Obtain(ctx, "bootstrap", "B", lease); err != nil || st != StatusAcquired {
		t.Fatalf("B steal after lease: %v %v", st, err)
	}
	// A lost the lock; its release must be a no-op.
	if ok, err := l.Release(ctx, "bootstrap", "A"); err != nil || ok {
		t.Fatalf("A release after steal: %v %v", ok, err)
	}
	if ok, err := l.Release(ctx, "bootstrap", "B"); err != nil || !ok {
		t.Fatalf("B release: %v %v", ok, err)
	}
}

func TestInMemoryReentrantRenewalOutlivesLease(t *testing.T) {
	clk := newFakeClock()
	l := NewInMemory(clk)
	ctx := context.Background()
	lease := time.Second

	for i := 0; i < 3; i++ {
		if st, err := l.Obtain(ctx, "k", "A", lease); err != nil || st != StatusAcquired {
			t.Fatalf("renewal %d: %v %v", i, st, err)
		}
		clk.now = clk.now.Add(10 * lease)
	}
}

func TestInMemoryReleaseAbsentRow(t *testing.T) {
	l := NewInMemory(nil)
	if ok, err := l.Release(context.Background(), "nothing", "A"); err != nil || ok {
		t.Fatalf("release absent: %v %v", ok, err)
	}
}

func TestInMemoryReleaseThenObtainByOther(t *testing.T) {
	l := NewInMemory(nil)
	ctx := context.Background()
	if st, _ := l.Obtain(ctx, "k", "A", time.Minute); st != StatusAcquired {
		t.Fatalf("A obtain: %v", st)
	}
	if ok, _ := l.Release(ctx, "k", "A"); !ok {
		t.Fatal("A release")
	}
	if st, _ := l.Obtain(ctx, "k", "B", time.Minute); st != StatusAcquired {
		t.Fatalf("B obtain after release: %v", st)
	}
}

func TestRunExclusive(t *testing.T) {
	l := NewInMemory(nil)
	ctx := context.Background()

	ran := false
	st, err := RunExclusive(ctx, l, "job", "A", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil || st != StatusAcquired || !ran {
		t.Fatalf("run: %v %v ran=%v", st, err, ran)
	}
	// Scoped release: the row must be gone afterwards.
	if st, _ := l.Obtain(ctx, "job", "B", time.Minute); st != StatusAcquired {
		t.Fatalf("lock still held after RunExclusive: %v", st)
	}
	if ok, _ := l.Release(ctx, "job", "B"); !ok {
		t.Fatal("B release")
	}
}

func TestRunExclusiveSkipsActionWhenDenied(t *testing.T) {
	l := NewInMemory(nil)
	ctx := context.Background()
	if st, _ := l.Obtain(ctx, "job", "A", time.Minute); st != StatusAcquired {
		t.Fatalf("A obtain: %v", st)
	}
	st, err := RunExclusive(ctx, l, "job", "B", func(ctx context.Context) error {
		t.Fatal("action must not run when denied")
		return nil
	})
	if err != nil || st != StatusDenied {
		t.Fatalf("denied run: %v %v", st, err)
	}
}

func TestRunExclusiveReleasesOnActionError(t *testing.T) {
	l := NewInMemory(nil)
	ctx := context.Background()
	boom := errors.New("boom")
	st, err := RunExclusive(ctx, l, "job", "A", func(ctx context.Context) error {
		return boom
	})
	if st != StatusAcquired || !errors.Is(err, boom) {
		t.Fatalf("run: %v %v", st, err)
	}
	if st, _ := l.Obtain(ctx, "job", "B", time.Minute); st != StatusAcquired {
		t.Fatalf("lock leaked after failed action: %v", st)
	}
}

func TestNewHolderID(t *testing.T) {
	a := NewHolderID("node1")
	b := NewHolderID("node1")
	if a == b {
		t.Fatal("holder ids must be unique")
	}
	if a[:6] != "node1-" {
		t.Fatalf("missing prefix: %q", a)
	}
}
