package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSigned(t *testing.T) {
	tests := []struct {
		typ    TransactionType
		amount string
		want   string
	}{
		{TypeCredit, "75.00", "75.00"},
		{TypeDebit, "50.00", "-50.00"},
		{TypeDebit, "0", "0.00"},
	}
	for _, tt := range tests {
		txn := NormalizedTransaction{Type: tt.typ, Amount: decimal.RequireFromString(tt.amount)}
		assert.Equal(t, tt.want, txn.Signed().StringFixed(2), "%s %s", tt.typ, tt.amount)
	}
}

func TestCleared(t *testing.T) {
	assert.False(t, BankTransaction{}.Cleared())
	assert.True(t, BankTransaction{ReconciliationID: "rec_1"}.Cleared())
}

func TestReconciliationOpen(t *testing.T) {
	assert.True(t, Reconciliation{Status: ReconciliationInProgress}.Open())
	assert.False(t, Reconciliation{Status: ReconciliationCompleted}.Open())
}

func TestAccountReconciled(t *testing.T) {
	assert.False(t, BankAccount{}.Reconciled())
}
