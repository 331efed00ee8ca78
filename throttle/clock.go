// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package throttle

import "time"

// Clock is a monotonic time source in nanoseconds. The origin is
// arbitrary, only differences between readings are meaningful.
type Clock interface {
	Now() int64
}

// ClockFunc adapts a function to the Clock interface
type ClockFunc func() int64

func (f ClockFunc) Now() int64 {
	return f()
}

// MonotonicClock reads the monotonic clock of the runtime relative to
// the time it was created
type MonotonicClock struct {
	base time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{base: time.Now()}
}

func (c *MonotonicClock) Now() int64 {
	return int64(time.Since(c.base))
}
