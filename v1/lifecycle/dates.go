package lifecycle

import "time"

// Dates holds the configured lifecycle dates of an evaluation. Every field
// except Start may be nil; Start may be nil only while the evaluation is
// still partial, and resolution yields Unknown in that case.
type Dates struct {
	Start           *time.Time
	Due             *time.Time
	Stop            *time.Time
	View            *time.Time
	StudentsView    *time.Time
	InstructorsView *time.Time
}

// EffectiveStop returns the instant responses stop being accepted: the stop
// date when set, otherwise the due date (zero grace period).
func (d Dates) EffectiveStop() *time.Time {
	if d.Stop != nil {
		return d.Stop
	}
	return d.Due
}

// EffectiveView returns the instant results become viewable: the view date
// when set, otherwise the effective stop date (viewable immediately on
// close).
func (d Dates) EffectiveView() *time.Time {
	if d.View != nil {
		return d.View
	}
	return d.EffectiveStop()
}
