package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundHalfUp(t *testing.T) {
	cases := map[string]string{
		"10.005":  "10.01",
		"10.004":  "10",
		"0.125":   "0.13",
		"2.5":     "2.5",
		"99.9999": "100",
	}
	for in, want := range cases {
		got := Round(MustParse(in))
		assert.Truef(t, got.Equal(MustParse(want)), "round(%s) = %s, want %s", in, got, want)
	}
}

func TestFactor(t *testing.T) {
	full := MustParse("1200000")

	assert.True(t, Factor(15, 30).Equal(MustParse("0.5")))
	assert.True(t, Factor(31, 31).Equal(MustParse("1")))
	// full or longer periods are never scaled up
	assert.True(t, Factor(40, 30).Equal(MustParse("1")))

	// 15/31 = 0.48387096774... stored as 0.4838709677
	f := Factor(15, 31)
	assert.True(t, f.Equal(MustParse("0.4838709677")))
	assert.True(t, Extend(f, full).Equal(MustParse("580645.16")))
	// 1,000,000 * 10 / 31 = 322580.6451... -> 322580.65
	assert.True(t, Extend(Factor(10, 31), MustParse("1000000")).Equal(MustParse("322580.65")))
}

func TestExtendAndSum(t *testing.T) {
	amount := Extend(MustParse("12.5"), MustParse("3500"))
	assert.True(t, amount.Equal(MustParse("43750")))

	total := Sum(MustParse("0.1"), MustParse("0.2"), MustParse("0.3"))
	assert.True(t, total.Equal(MustParse("0.6")))
	assert.True(t, IsPositive(total))
	assert.False(t, IsNegative(total))
}

func TestInScale(t *testing.T) {
	assert.True(t, InScale(MustParse("700000")))
	assert.True(t, InScale(MustParse("0.01")))
	assert.True(t, InScale(MustParse("12.50")))
	assert.False(t, InScale(MustParse("0.005")))
	assert.False(t, InScale(MustParse("-1.001")))
}
