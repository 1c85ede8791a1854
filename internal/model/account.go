package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankAccount is a bank or card account whose statements are imported and reconciled.
type BankAccount struct {
	ID                    string
	Name                  string
	CurrentBalance        decimal.Decimal
	LastReconciledBalance decimal.Decimal // zero until the first completed reconciliation
	LastReconciledDate    time.Time       // zero = never reconciled
	CreatedAt             time.Time
}

// Reconciled reports whether the account has ever completed a reconciliation.
func (a BankAccount) Reconciled() bool {
	return !a.LastReconciledDate.IsZero()
}
