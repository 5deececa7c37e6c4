// Package lifecycle derives the lifecycle state of an evaluation from its
// configured dates. Resolution is a pure function of an explicit clock value,
// so callers can evaluate past or future instants without touching the wall
// clock.
package lifecycle
