package scheduler

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leasecore/pkg/period"
	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time { return period.Date(y, m, d) }

func TestNextPeriod(t *testing.T) {
	end := day(2024, 3, 20)
	cases := []struct {
		name      string
		contract  workContract
		lastEnd   *time.Time
		asOf      time.Time
		wantOK    bool
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "first period starts at contract start",
			contract:  workContract{StartDate: day(2024, 1, 15), BillingCycle: period.CycleMonthly},
			asOf:      day(2024, 1, 15),
			wantOK:    true,
			wantStart: day(2024, 1, 15),
			wantEnd:   day(2024, 2, 14),
		},
		{
			name:     "not started yet",
			contract: workContract{StartDate: day(2024, 2, 1), BillingCycle: period.CycleMonthly},
			asOf:     day(2024, 1, 31),
		},
		{
			name:      "follows the last invoiced period",
			contract:  workContract{StartDate: day(2024, 1, 1), BillingCycle: period.CycleQuarterly},
			lastEnd:   ptr(day(2024, 3, 31)),
			asOf:      day(2024, 4, 1),
			wantOK:    true,
			wantStart: day(2024, 4, 1),
			wantEnd:   day(2024, 6, 30),
		},
		{
			name:      "clipped to contract end",
			contract:  workContract{StartDate: day(2024, 1, 1), EndDate: &end, BillingCycle: period.CycleMonthly},
			lastEnd:   ptr(day(2024, 2, 29)),
			asOf:      day(2024, 3, 1),
			wantOK:    true,
			wantStart: day(2024, 3, 1),
			wantEnd:   end,
		},
		{
			name:     "fully invoiced",
			contract: workContract{StartDate: day(2024, 1, 1), EndDate: &end, BillingCycle: period.CycleMonthly},
			lastEnd:  ptr(end),
			asOf:     day(2024, 6, 1),
		},
		{
			name:      "month end start clamps",
			contract:  workContract{StartDate: day(2024, 1, 31), BillingCycle: period.CycleMonthly},
			asOf:      day(2024, 2, 1),
			wantOK:    true,
			wantStart: day(2024, 1, 31),
			wantEnd:   day(2024, 2, 28),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.contract.ID = snowflake.ID(1)
			got, ok := nextPeriod(tc.contract, tc.lastEnd, tc.asOf, 10)
			assert.Equal(t, tc.wantOK, ok)
			if !tc.wantOK {
				return
			}
			assert.Equal(t, tc.wantStart, got.PeriodStart)
			assert.Equal(t, tc.wantEnd, got.PeriodEnd)
			assert.Equal(t, tc.contract.ID, got.ContractID)
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }
