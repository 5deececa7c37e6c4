// Package schedule keeps the set of pending wake-up invocations of each
// evaluation in line with its configured dates. It guarantees at most one
// logical pending invocation per (evaluation, job type) pair; superseding
// an invocation is always cancel-then-create, never an in-place update.
package schedule
