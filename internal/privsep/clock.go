package privsep

import "time"

// Clock supplies the current time to the credential cache. Tests inject a
// fake to move past expiry without sleeping.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the wall clock.
func RealClock() Clock { return realClock{} }
