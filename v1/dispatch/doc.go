// Package dispatch executes wake-up invocations. The Dispatcher is the
// single entry point the scheduler pump hands due invocations to: it
// re-resolves the evaluation's state, performs the job's side effect and
// lines up the follow-on invocations. Delivery is at-least-once and may be
// concurrent across nodes; the worst case for a duplicate delivery is a
// duplicate notification, never corrupted state.
package dispatch
