package schedule

import (
	"errors"
	"testing"

	evalerrors "github.com/sakaicontrib/evaluation-sub013/v1/errors"
)

func TestKeyFormat(t *testing.T) {
	k := Key{EvalID: 1234, Job: JobViewableInstructors}
	if got := k.String(); got != "1234/viewable-instructors" {
		t.Fatalf("key: %q", got)
	}
}

func TestParseKeyRoundTrip(t *testing.T) {
	for _, job := range AllJobs() {
		k := Key{EvalID: 77, Job: job}
		got, err := ParseKey(k.String())
		if err != nil || got != k {
			t.Fatalf("round trip %v: %v %v", k, got, err)
		}
	}
}

func TestParseKeyMalformed(t *testing.T) {
	for _, s := range []string{"", "77", "abc/active", "77/Active", "77/launch", "0/active", "-3/due"} {
		if _, err := ParseKey(s); !errors.Is(err, evalerrors.ErrConfiguration) {
			t.Fatalf("%q: expected configuration error, got %v", s, err)
		}
	}
}

func TestParseJobType(t *testing.T) {
	j, err := ParseJobType("viewable-students")
	if err != nil || j != JobViewableStudents {
		t.Fatalf("parse: %v %v", j, err)
	}
	if _, err := ParseJobType("Viewable"); err == nil {
		t.Fatal("identifiers are case-sensitive")
	}
}
