package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType carries the sign of a bank transaction.
type TransactionType string

const (
	TypeDebit  TransactionType = "debit"
	TypeCredit TransactionType = "credit"
)

// TransactionStatus is the review state of an imported transaction.
type TransactionStatus string

const (
	StatusUnreviewed TransactionStatus = "unreviewed"
	StatusReviewed   TransactionStatus = "reviewed"
)

// NormalizedTransaction is a candidate produced from one CSV row, before it is persisted.
type NormalizedTransaction struct {
	Date        string          // ISO "YYYY-MM-DD"; may be the raw value when the row date could not be parsed
	Description string
	Amount      decimal.Decimal // always >= 0, sign lives in Type
	Type        TransactionType
	Payee       string
	Reference   string
	CheckNumber string
	Memo        string
	Status      TransactionStatus
	ImportID    string
}

// Signed returns the amount with credit positive and debit negative.
func (t NormalizedTransaction) Signed() decimal.Decimal {
	if t.Type == TypeDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// BankTransaction is a persisted transaction belonging to a bank account.
type BankTransaction struct {
	ID            string
	BankAccountID string
	NormalizedTransaction

	// ReconciliationID is set while an open reconciliation claims the
	// transaction as cleared. IsReconciled only flips at completion.
	ReconciliationID string
	IsReconciled     bool
	CreatedAt        time.Time
}

// Cleared reports whether a reconciliation currently claims the transaction.
func (t BankTransaction) Cleared() bool {
	return t.ReconciliationID != ""
}
