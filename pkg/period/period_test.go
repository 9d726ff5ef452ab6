package period

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntersectsInclusiveBoundaries(t *testing.T) {
	jan := Range{Start: Date(2024, 1, 1), End: Date(2024, 1, 31)}
	feb := Range{Start: Date(2024, 2, 1), End: Date(2024, 2, 29)}
	touching := Range{Start: Date(2024, 1, 31), End: Date(2024, 2, 10)}

	assert.False(t, Intersects(jan, feb))
	assert.True(t, Intersects(jan, touching))
	assert.True(t, Intersects(touching, jan))
	assert.True(t, Intersects(jan, jan))
}

func TestIntersectsMatchesDayEnumeration(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := Date(2024, 1, 1)
	randomRange := func() Range {
		start := AddDays(base, rng.Intn(60))
		return Range{Start: start, End: AddDays(start, rng.Intn(20))}
	}
	sharesDay := func(a, b Range) bool {
		for d := a.Start; !d.After(a.End); d = d.AddDate(0, 0, 1) {
			if !d.Before(b.Start) && !d.After(b.End) {
				return true
			}
		}
		return false
	}
	for i := 0; i < 2000; i++ {
		a, b := randomRange(), randomRange()
		require.Equalf(t, sharesDay(a, b), Intersects(a, b), "a=%v b=%v", a, b)
	}
}

func TestNewRange(t *testing.T) {
	r, err := NewRange(time.Date(2024, 3, 1, 15, 4, 0, 0, time.UTC), Date(2024, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, Date(2024, 3, 1), r.Start)
	assert.Equal(t, int64(31), r.Days())

	_, err = NewRange(Date(2024, 3, 2), Date(2024, 3, 1))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestCycleArithmetic(t *testing.T) {
	assert.Equal(t, Date(2024, 1, 31), CycleEnd(Date(2024, 1, 1), CycleMonthly))
	assert.Equal(t, Date(2024, 3, 31), CycleEnd(Date(2024, 1, 1), CycleQuarterly))
	assert.Equal(t, Date(2024, 12, 31), CycleEnd(Date(2024, 1, 1), CycleYearly))
	assert.Equal(t, int64(30), NominalDays(Date(2024, 4, 1), CycleMonthly))
	assert.Equal(t, int64(29), NominalDays(Date(2024, 2, 1), CycleMonthly))
	assert.Equal(t, Date(2024, 2, 29), AddMonths(Date(2024, 1, 31), 1))
	assert.True(t, CycleYearly.Valid())
	assert.False(t, Cycle("WEEKLY").Valid())
}

func TestEffectiveEnd(t *testing.T) {
	start := Date(2024, 1, 15)
	end := Date(2024, 6, 30)

	assert.Equal(t, end, EffectiveEnd(start, &end, 10))
	assert.Equal(t, Date(2034, 1, 15), EffectiveEnd(start, nil, 10))
}
