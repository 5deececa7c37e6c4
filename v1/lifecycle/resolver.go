package lifecycle

import "time"

// Resolve derives the lifecycle state of an evaluation at the given instant.
//
// The explicit flags take precedence over the dates: deleted wins over
// everything, partial over every date-derived state. A missing start date
// resolves to Unknown; callers must treat that as fatal for the call and
// never schedule against it.
func Resolve(now time.Time, d Dates, partial, deleted bool) State {
	if deleted {
		return StateDeleted
	}
	if partial {
		return StatePartial
	}
	if d.Start == nil {
		return StateUnknown
	}
	if now.Before(*d.Start) {
		return StateInQueue
	}
	// An unset due date keeps the evaluation active until closed manually.
	if d.Due == nil || now.Before(*d.Due) {
		return StateActive
	}
	if stop := d.EffectiveStop(); now.Before(*stop) {
		return StateDue
	}
	if view := d.EffectiveView(); now.Before(*view) {
		return StateClosed
	}
	return StateViewable
}
