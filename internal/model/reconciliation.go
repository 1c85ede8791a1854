package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus is the lifecycle state of a reconciliation session.
type ReconciliationStatus string

const (
	ReconciliationInProgress ReconciliationStatus = "in_progress"
	ReconciliationCompleted  ReconciliationStatus = "completed"
)

// Reconciliation matches an account's cleared transactions against a bank statement balance.
type Reconciliation struct {
	ID               string
	BankAccountID    string
	StatementDate    time.Time
	StatementBalance decimal.Decimal
	OpeningBalance   decimal.Decimal
	ClearedBalance   decimal.Decimal // derived: opening + signed sum of claimed transactions
	Difference       decimal.Decimal // derived: statement - cleared
	Status           ReconciliationStatus
	CompletedAt      time.Time // zero while in progress
	CreatedAt        time.Time
}

// Open reports whether the reconciliation can still be modified.
func (r Reconciliation) Open() bool {
	return r.Status == ReconciliationInProgress
}
