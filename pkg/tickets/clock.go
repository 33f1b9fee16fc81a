package tickets

import "time"

// Timer is a pending call created by Clock.AfterFunc.
type Timer interface {
	// Stop prevents the call. It returns false if the call already ran or was stopped.
	Stop() bool
}

// Clock is the time source of the engine and the deletion scheduler.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
