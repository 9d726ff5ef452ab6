package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// LedgerEntryDirection represents debit or credit postings.
type LedgerEntryDirection string

const (
	LedgerEntryDirectionDebit  LedgerEntryDirection = "debit"
	LedgerEntryDirectionCredit LedgerEntryDirection = "credit"
)

const (
	SourceTypeInvoice         = "invoice"
	SourceTypeAdjustment      = "invoice_adjustment"
	SourceTypeInvoiceVoid     = "invoice_void"
	SourceTypePayment         = "payment"
	SourceTypePaymentReversal = "payment_reversal"
	SourceTypeDepositHold     = "deposit_hold"
	SourceTypeDepositRelease  = "deposit_release"
)

const (
	AccountCodeAccountsReceivable = "accounts_receivable"
	AccountCodeRevenue            = "revenue"
	AccountCodeCashClearing       = "cash_clearing"
	AccountCodeDepositLiability   = "deposit_liability"
	AccountCodeDepositForfeiture  = "deposit_forfeiture_income"
)

// AccountNames is the chart of accounts created on first use per organization.
var AccountNames = map[string]string{
	AccountCodeAccountsReceivable: "Accounts Receivable",
	AccountCodeRevenue:            "Rental Revenue",
	AccountCodeCashClearing:       "Cash Clearing",
	AccountCodeDepositLiability:   "Security Deposits Held",
	AccountCodeDepositForfeiture:  "Forfeited Deposit Income",
}

// LedgerAccount defines a chart-of-accounts entry.
type LedgerAccount struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_ledger_accounts_org_code,priority:1"`
	Code      string       `gorm:"type:text;not null;uniqueIndex:ux_ledger_accounts_org_code,priority:2"`
	Name      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerAccount) TableName() string { return "ledger_accounts" }

// LedgerEntry captures the immutable header for a financial event.
type LedgerEntry struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OrgID      snowflake.ID `gorm:"not null;index"`
	SourceType string       `gorm:"type:text;not null;index"`
	SourceID   snowflake.ID `gorm:"not null;index"`
	OccurredAt time.Time    `gorm:"not null"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// LedgerEntryLine is a double-entry posting line.
type LedgerEntryLine struct {
	ID            snowflake.ID         `gorm:"primaryKey"`
	LedgerEntryID snowflake.ID         `gorm:"not null;index"`
	AccountID     snowflake.ID         `gorm:"not null;index"`
	Direction     LedgerEntryDirection `gorm:"type:text;not null"`
	Amount        decimal.Decimal      `gorm:"type:numeric(20,2);not null"`
	CreatedAt     time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerEntryLine) TableName() string { return "ledger_entry_lines" }

// Posting is a line addressed by account code, resolved to an account on write.
type Posting struct {
	AccountCode string
	Direction   LedgerEntryDirection
	Amount      decimal.Decimal
}

func Debit(code string, amount decimal.Decimal) Posting {
	return Posting{AccountCode: code, Direction: LedgerEntryDirectionDebit, Amount: amount}
}

func Credit(code string, amount decimal.Decimal) Posting {
	return Posting{AccountCode: code, Direction: LedgerEntryDirectionCredit, Amount: amount}
}
