package lifecycle

import (
	"testing"
	"time"
)

func ts(day int) *time.Time {
	t := time.Date(2024, time.January, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func TestResolveFullSchedule(t *testing.T) {
	d := Dates{Start: ts(1), Due: ts(8), Stop: ts(10), View: ts(12)}

	cases := []struct {
		name string
		now  time.Time
		want State
	}{
		{"before start", ts(0).Add(-time.Hour), StateInQueue},
		{"at start", *ts(1), StateActive},
		{"mid active", *ts(5), StateActive},
		{"at due", *ts(8), StateDue},
		{"grace period", *ts(9), StateDue},
		{"at stop", *ts(10), StateClosed},
		{"closed", *ts(11), StateClosed},
		{"at view", *ts(12), StateViewable},
		{"long after", *ts(28), StateViewable},
	}
	for _, tc := range cases {
		if got := Resolve(tc.now, d, false, false); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestResolveExplicitFlags(t *testing.T) {
	d := Dates{Start: ts(1)}
	if got := Resolve(*ts(5), d, true, false); got != StatePartial {
		t.Fatalf("partial: got %v", got)
	}
	if got := Resolve(*ts(5), d, true, true); got != StateDeleted {
		t.Fatalf("deleted overrides partial: got %v", got)
	}
}

func TestResolveMissingStart(t *testing.T) {
	if got := Resolve(*ts(5), Dates{}, false, false); got != StateUnknown {
		t.Fatalf("got %v want Unknown", got)
	}
}

func TestResolveUnsetDueStaysActive(t *testing.T) {
	d := Dates{Start: ts(1)}
	if got := Resolve(*ts(300), d, false, false); got != StateActive {
		t.Fatalf("got %v want Active", got)
	}
}

func TestResolveUnsetStopAndView(t *testing.T) {
	// No stop means zero grace; no view means viewable on close.
	d := Dates{Start: ts(1), Due: ts(8)}
	if got := Resolve(*ts(8), d, false, false); got != StateViewable {
		t.Fatalf("at due with nothing else set: got %v want Viewable", got)
	}

	d.Stop = ts(10)
	if got := Resolve(*ts(9), d, false, false); got != StateDue {
		t.Fatalf("grace: got %v", got)
	}
	if got := Resolve(*ts(10), d, false, false); got != StateViewable {
		t.Fatalf("no view date: got %v want Viewable", got)
	}
}

func TestResolveMonotonic(t *testing.T) {
	d := Dates{Start: ts(2), Due: ts(8), Stop: ts(9), View: ts(15)}
	prev := StatePartial
	for hour := 0; hour < 24*20; hour++ {
		now := ts(1).Add(time.Duration(hour) * time.Hour)
		got := Resolve(now, d, false, false)
		if !got.AtOrAfter(prev) {
			t.Fatalf("state regressed from %v to %v at %v", prev, got, now)
		}
		prev = got
	}
}

func TestStateOrderingAndNames(t *testing.T) {
	order := []State{StatePartial, StateInQueue, StateActive, StateDue, StateClosed, StateViewable, StateDeleted}
	for i, s := range order {
		for j, o := range order {
			if got := s.AtOrAfter(o); got != (i >= j) {
				t.Fatalf("%v.AtOrAfter(%v) = %v", s, o, got)
			}
		}
	}
	if StateUnknown.AtOrAfter(StatePartial) || StateActive.AtOrAfter(StateUnknown) {
		t.Fatal("Unknown must not participate in ordering")
	}

	for _, s := range append(order, StateUnknown) {
		parsed, err := ParseState(s.String())
		if err != nil || parsed != s {
			t.Fatalf("round trip %v: %v %v", s, parsed, err)
		}
	}
	if _, err := ParseState("active"); err == nil {
		t.Fatal("identifiers are case-sensitive")
	}
}
