package lifecycle

import "time"

// Clock supplies the current instant. Components take a Clock instead of
// calling time.Now so tests can pin time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System is the wall clock.
var System Clock = systemClock{}
