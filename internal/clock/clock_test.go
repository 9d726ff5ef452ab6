package clock

import (
	"testing"
	"time"

	"github.com/smallbiznis/leasecore/pkg/period"
)

func TestTodayTruncatesFixedClock(t *testing.T) {
	c := Fixed(time.Date(2024, 5, 17, 23, 59, 0, 0, time.UTC))
	if got := Today(c); !got.Equal(period.Date(2024, 5, 17)) {
		t.Fatalf("expected 2024-05-17, got %s", got)
	}
}
