package auth

import "time"

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// realClock implements Clock using the real system time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
