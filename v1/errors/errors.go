// Package errors defines the sentinel error values shared by the evaluation
// lifecycle packages. Callers classify failures with errors.Is.
package errors

import "errors"

var (
	// ErrConfiguration marks a call with a required id or date missing.
	// Fatal to that single call, never retried.
	ErrConfiguration = errors.New("evaluation: missing required configuration")
	// ErrNotFound marks an absent evaluation, content node or lock row.
	// Most callers treat it as "nothing to do".
	ErrNotFound = errors.New("evaluation: not found")
	// ErrStorage marks an unexpected persistence fault.
	ErrStorage = errors.New("evaluation: storage failure")
	// ErrStateInconsistent marks a resolver result of Unknown where a
	// transition was expected. Fatal for the one dispatch attempt only.
	ErrStateInconsistent = errors.New("evaluation: inconsistent lifecycle state")
	// ErrNotAuthorized marks a user-initiated action the actor may not
	// perform.
	ErrNotAuthorized = errors.New("evaluation: not authorized")
)
