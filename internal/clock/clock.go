package clock

import (
	"time"

	"github.com/smallbiznis/leasecore/pkg/period"
)

// Clock abstracts the wall clock so billing dates are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f).UTC() }

// Today returns the current calendar date of c.
func Today(c Clock) time.Time {
	if c == nil {
		c = SystemClock{}
	}
	return period.Truncate(c.Now())
}
