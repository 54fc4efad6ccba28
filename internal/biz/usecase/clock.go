package usecase

import "time"

// Clock returns the current time. Production code uses time.Now; tests
// inject a fixed or stepped clock.
type Clock func() time.Time

// OrDefault returns c, or time.Now when c is nil
func (c Clock) OrDefault() Clock {
	if c == nil {
		return time.Now
	}
	return c
}
