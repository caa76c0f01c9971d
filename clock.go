package plano

import "time"

// Clock supplies the time used for elapsed-time reporting. Tests inject a
// fake to get deterministic durations.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
