package domain

import "github.com/shopspring/decimal"

// ValidateBalanced ensures postings sum to a balanced double-entry posting.
func ValidateBalanced(postings []Posting) error {
	if len(postings) < 2 {
		return ErrInvalidEntryLines
	}

	debitTotal := decimal.Zero
	creditTotal := decimal.Zero
	for _, p := range postings {
		if p.Amount.Sign() < 0 {
			return ErrInvalidLineAmount
		}
		switch p.Direction {
		case LedgerEntryDirectionDebit:
			debitTotal = debitTotal.Add(p.Amount)
		case LedgerEntryDirectionCredit:
			creditTotal = creditTotal.Add(p.Amount)
		default:
			return ErrInvalidLineDirection
		}
	}

	if !debitTotal.Equal(creditTotal) {
		return ErrUnbalancedEntry
	}
	return nil
}
