package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateBalanced(t *testing.T) {
	amount := decimal.RequireFromString("1200000")

	assert.NoError(t, ValidateBalanced([]Posting{
		Debit(AccountCodeAccountsReceivable, amount),
		Credit(AccountCodeRevenue, amount),
	}))

	assert.ErrorIs(t, ValidateBalanced([]Posting{Debit(AccountCodeAccountsReceivable, amount)}), ErrInvalidEntryLines)

	assert.ErrorIs(t, ValidateBalanced([]Posting{
		Debit(AccountCodeAccountsReceivable, amount),
		Credit(AccountCodeRevenue, amount.Sub(decimal.RequireFromString("0.01"))),
	}), ErrUnbalancedEntry)

	assert.ErrorIs(t, ValidateBalanced([]Posting{
		Debit(AccountCodeAccountsReceivable, amount.Neg()),
		Credit(AccountCodeRevenue, amount.Neg()),
	}), ErrInvalidLineAmount)

	assert.ErrorIs(t, ValidateBalanced([]Posting{
		{AccountCode: AccountCodeRevenue, Direction: "sideways", Amount: amount},
		Credit(AccountCodeRevenue, amount),
	}), ErrInvalidLineDirection)
}
