package schedule

import (
	"fmt"
	"strconv"
	"strings"

	evalerrors "github.com/sakaicontrib/evaluation-sub013/v1/errors"
)

// JobType is one of the fixed set of side-effecting actions tied to a
// lifecycle boundary.
type JobType int

const (
	JobCreated JobType = iota
	JobActive
	JobReminder
	JobDue
	JobClosed
	JobViewable
	JobViewableInstructors
	JobViewableStudents
)

var jobNames = [...]string{
	JobCreated:             "created",
	JobActive:              "active",
	JobReminder:            "reminder",
	JobDue:                 "due",
	JobClosed:              "closed",
	JobViewable:            "viewable",
	JobViewableInstructors: "viewable-instructors",
	JobViewableStudents:    "viewable-students",
}

func (j JobType) String() string {
	if j >= 0 && int(j) < len(jobNames) {
		return jobNames[j]
	}
	return fmt.Sprintf("JobType(%d)", int(j))
}

// AllJobs returns every job type, in lifecycle order.
func AllJobs() []JobType {
	jobs := make([]JobType, len(jobNames))
	for i := range jobNames {
		jobs[i] = JobType(i)
	}
	return jobs
}

// ParseJobType maps a wire identifier back to its JobType.
func ParseJobType(name string) (JobType, error) {
	for i, n := range jobNames {
		if n == name {
			return JobType(i), nil
		}
	}
	return 0, fmt.Errorf("schedule: unknown job type %q: %w", name, evalerrors.ErrConfiguration)
}

// Key identifies one logical scheduled invocation. The external scheduler
// only sees the opaque "<evaluationId>/<jobType>" string; everything inside
// this module passes the typed tuple.
type Key struct {
	EvalID int64
	Job    JobType
}

func (k Key) String() string {
	return strconv.FormatInt(k.EvalID, 10) + "/" + k.Job.String()
}

// ParseKey parses the opaque invocation key format.
func ParseKey(s string) (Key, error) {
	idPart, jobPart, ok := strings.Cut(s, "/")
	if !ok {
		return Key{}, fmt.Errorf("schedule: malformed invocation key %q: %w", s, evalerrors.ErrConfiguration)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return Key{}, fmt.Errorf("schedule: malformed invocation key %q: %w", s, evalerrors.ErrConfiguration)
	}
	job, err := ParseJobType(jobPart)
	if err != nil {
		return Key{}, fmt.Errorf("schedule: malformed invocation key %q: %w", s, evalerrors.ErrConfiguration)
	}
	return Key{EvalID: id, Job: job}, nil
}
