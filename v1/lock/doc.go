// Package lock provides a lease-based distributed lock for cluster-wide
// singleton operations, with in-memory, GORM and Redis implementations. A
// lock is a single named row held by one holder; an unrenewed lease goes
// stale and may be stolen. Obtain never blocks: callers get a definite
// Acquired, Denied or Error outcome and decide themselves whether to retry.
package lock
