package bridge

import "time"

// Clock provides monotonic time in microseconds.
type Clock interface {
	Micros() uint64
}

// ClockFunc is func type of Clock.
type ClockFunc func() uint64

// Micros implements Clock.
func (f ClockFunc) Micros() uint64 {
	return f()
}

type systemClock struct {
	start time.Time
}

// SystemClock returns a Clock counting from its creation.
func SystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Micros() uint64 {
	return uint64(time.Since(c.start) / time.Microsecond)
}
