package testutil

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// Amount asserts that got equals the decimal literal want.
func Amount(t testing.TB, want string, got decimal.Decimal) bool {
	t.Helper()
	expected := decimal.RequireFromString(want)
	return assert.Truef(t, expected.Equal(got), "expected %s, got %s", expected, got)
}

// Date parses a YYYY-MM-DD literal or fails the test.
func Date(t testing.TB, value string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return d.UTC()
}
