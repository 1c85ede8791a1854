// Package store defines the persistence contract used by the import
// pipeline and the reconciliation engine.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/model"
)

// ErrNotFound is returned when an account, transaction, or reconciliation does not exist.
var ErrNotFound = errors.New("not found")

// ErrAmountRange is returned for money values whose cents do not fit in an int64.
var ErrAmountRange = errors.New("amount out of range")

// Cents converts d to whole cents. Values outside the int64 range fail with ErrAmountRange.
func Cents(d decimal.Decimal) (int64, error) {
	c := d.Shift(2).Round(0).BigInt()
	if !c.IsInt64() {
		return 0, fmt.Errorf("%s: %w", d.String(), ErrAmountRange)
	}
	return c.Int64(), nil
}

// Store is the external transactional store.
type Store interface {
	AccountStore
	TransactionStore
	ReconciliationStore

	// RunInTx runs fn against a store scoped to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Nested calls on a scoped store join the outer transaction.
	RunInTx(ctx context.Context, fn func(tx Store) error) error

	Close() error
}

// AccountStore persists bank accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, a model.BankAccount) error
	GetAccount(ctx context.Context, id string) (model.BankAccount, error)
	ListAccounts(ctx context.Context) ([]model.BankAccount, error)

	// AdjustBalance adds delta to the account's current balance in one step.
	AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) error

	// SetLastReconciled records the statement date and balance of the latest completed reconciliation.
	SetLastReconciled(ctx context.Context, id string, date time.Time, balance decimal.Decimal) error
}

// TransactionStore persists bank transactions.
type TransactionStore interface {
	// InsertTransactions inserts all rows or none.
	InsertTransactions(ctx context.Context, txns []model.BankTransaction) error
	GetTransaction(ctx context.Context, id string) (model.BankTransaction, error)

	// QueryTransactions returns matching transactions ordered by date, then insertion order.
	QueryTransactions(ctx context.Context, f TransactionFilter) ([]model.BankTransaction, error)

	// UpdateTransactions applies u to every matching transaction and returns the count.
	UpdateTransactions(ctx context.Context, f TransactionFilter, u TransactionUpdate) (int, error)

	// DeleteTransactions removes every matching transaction and returns the count.
	DeleteTransactions(ctx context.Context, f TransactionFilter) (int, error)
}

// ReconciliationStore persists reconciliation sessions.
type ReconciliationStore interface {
	CreateReconciliation(ctx context.Context, r model.Reconciliation) error
	GetReconciliation(ctx context.Context, id string) (model.Reconciliation, error)
	ListReconciliations(ctx context.Context, accountID string) ([]model.Reconciliation, error)
	UpdateReconciliation(ctx context.Context, r model.Reconciliation) error
	DeleteReconciliation(ctx context.Context, id string) error
}

// TransactionFilter selects transactions. Zero-valued fields match everything.
type TransactionFilter struct {
	ID               string
	AccountID        string
	ImportID         string
	ReconciliationID string
	IsReconciled     *bool
}

// Match reports whether t satisfies the filter.
func (f TransactionFilter) Match(t model.BankTransaction) bool {
	if f.ID != "" && t.ID != f.ID {
		return false
	}
	if f.AccountID != "" && t.BankAccountID != f.AccountID {
		return false
	}
	if f.ImportID != "" && t.ImportID != f.ImportID {
		return false
	}
	if f.ReconciliationID != "" && t.ReconciliationID != f.ReconciliationID {
		return false
	}
	if f.IsReconciled != nil && t.IsReconciled != *f.IsReconciled {
		return false
	}
	return true
}

// TransactionUpdate lists the fields to change. Nil fields are left alone;
// a pointer to "" clears ReconciliationID.
type TransactionUpdate struct {
	ReconciliationID *string
	IsReconciled     *bool
}

// Apply returns t with the update applied.
func (u TransactionUpdate) Apply(t model.BankTransaction) model.BankTransaction {
	if u.ReconciliationID != nil {
		t.ReconciliationID = *u.ReconciliationID
	}
	if u.IsReconciled != nil {
		t.IsReconciled = *u.IsReconciled
	}
	return t
}

// Bool returns a pointer to v, for filters and updates.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v, for updates.
func String(v string) *string { return &v }
