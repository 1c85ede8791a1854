// Package storetest is a behavioral suite every store.Store implementation must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run exercises every store operation against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Accounts", testAccounts},
		{"AdjustBalance", testAdjustBalance},
		{"AmountRange", testAmountRange},
		{"Transactions", testTransactions},
		{"InsertAllOrNothing", testInsertAllOrNothing},
		{"UpdateAndDelete", testUpdateAndDelete},
		{"Reconciliations", testReconciliations},
		{"RunInTxCommit", testRunInTxCommit},
		{"RunInTxRollback", testRunInTxRollback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedAccount(t *testing.T, s store.Store, id, balance string) {
	t.Helper()
	require.NoError(t, s.CreateAccount(context.Background(), model.BankAccount{
		ID:             id,
		Name:           "Checking " + id,
		CurrentBalance: dec(balance),
	}))
}

func txn(id, account, date, amount string, typ model.TransactionType, importID string) model.BankTransaction {
	return model.BankTransaction{
		ID:            id,
		BankAccountID: account,
		NormalizedTransaction: model.NormalizedTransaction{
			Date:        date,
			Description: "desc " + id,
			Amount:      dec(amount),
			Type:        typ,
			Payee:       "desc " + id,
			Reference:   "ref-" + id,
			Status:      model.StatusUnreviewed,
			ImportID:    importID,
		},
	}
}

func ids(txns []model.BankTransaction) []string {
	out := make([]string, len(txns))
	for i, t := range txns {
		out[i] = t.ID
	}
	return out
}

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "acct_a", "100.00")
	seedAccount(t, s, "acct_b", "0")

	a, err := s.GetAccount(ctx, "acct_a")
	require.NoError(t, err)
	assert.Equal(t, "Checking acct_a", a.Name)
	assert.True(t, a.CurrentBalance.Equal(dec("100")))
	assert.False(t, a.Reconciled())
	assert.False(t, a.CreatedAt.IsZero())

	assert.Error(t, s.CreateAccount(ctx, model.BankAccount{ID: "acct_a", Name: "dup"}))

	_, err = s.GetAccount(ctx, "acct_missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	all, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	date := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetLastReconciled(ctx, "acct_a", date, dec("512.34")))
	a, err = s.GetAccount(ctx, "acct_a")
	require.NoError(t, err)
	assert.True(t, a.LastReconciledDate.Equal(date))
	assert.True(t, a.LastReconciledBalance.Equal(dec("512.34")))
	assert.True(t, a.Reconciled())

	err = s.SetLastReconciled(ctx, "acct_missing", date, dec("1"))
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func testAdjustBalance(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "acct_a", "100.00")

	require.NoError(t, s.AdjustBalance(ctx, "acct_a", dec("-4.50")))
	require.NoError(t, s.AdjustBalance(ctx, "acct_a", dec("2000.00")))

	a, err := s.GetAccount(ctx, "acct_a")
	require.NoError(t, err)
	assert.Equal(t, "2095.50", a.CurrentBalance.StringFixed(2))

	err = s.AdjustBalance(ctx, "acct_missing", dec("1"))
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func testAmountRange(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "acct_a", "90000000000000000.00")

	for _, amount := range []string{"100000000000000000.00", "1e30"} {
		err := s.InsertTransactions(ctx, []model.BankTransaction{
			txn("txn_ok", "acct_a", "2024-01-15", "1.00", model.TypeCredit, "imp_1"),
			txn("txn_big", "acct_a", "2024-01-16", amount, model.TypeCredit, "imp_1"),
		})
		assert.True(t, errors.Is(err, store.ErrAmountRange), amount)
	}
	got, err := s.QueryTransactions(ctx, store.TransactionFilter{AccountID: "acct_a"})
	require.NoError(t, err)
	assert.Empty(t, got, "rejected batch leaves nothing behind")

	err = s.AdjustBalance(ctx, "acct_a", dec("1e30"))
	assert.True(t, errors.Is(err, store.ErrAmountRange))
	err = s.AdjustBalance(ctx, "acct_a", dec("90000000000000000.00"))
	assert.True(t, errors.Is(err, store.ErrAmountRange), "sum overflows")

	a, err := s.GetAccount(ctx, "acct_a")
	require.NoError(t, err)
	assert.Equal(t, "90000000000000000.00", a.CurrentBalance.StringFixed(2))

	err = s.CreateAccount(ctx, model.BankAccount{ID: "acct_b", Name: "Huge", CurrentBalance: dec("1e30")})
	assert.True(t, errors.Is(err, store.ErrAmountRange))
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "acct_a", "0")
	seedAccount(t, s, "acct_b", "0")

	require.NoError(t, s.InsertTransactions(ctx, []model.BankTransaction{
		txn("txn_3", "acct_a", "2024-01-20", "3.00", model.TypeDebit, "imp_1"),
		txn("txn_1", "acct_a", "2024-01-05", "1.00", model.TypeCredit, "imp_1"),
		txn("txn_2", "acct_a", "2024-01-05", "2.00", model.TypeDebit, "imp_1"),
	}))
	require.NoError(t, s.InsertTransactions(ctx, []model.BankTransaction{
		txn("txn_4", "acct_b", "2024-01-01", "4.00", model.TypeCredit, "imp_2"),
	}))

	got, err := s.GetTransaction(ctx, "txn_2")
	require.NoError(t, err)
	assert.Equal(t, "acct_a", got.BankAccountID)
	assert.Equal(t, "2024-01-05", got.Date)
	assert.Equal(t, "2.00", got.Amount.StringFixed(2))
	assert.Equal(t, model.TypeDebit, got.Type)
	assert.Equal(t, "ref-txn_2", got.Reference)
	assert.Equal(t, model.StatusUnreviewed, got.Status)
	assert.Equal(t, "imp_1", got.ImportID)
	assert.False(t, got.Cleared())
	assert.False(t, got.IsReconciled)

	_, err = s.GetTransaction(ctx, "txn_missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	all, err := s.QueryTransactions(ctx, store.TransactionFilter{AccountID: "acct_a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"txn_1", "txn_2", "txn_3"}, ids(all), "date order, then insertion order")

	byImport, err := s.QueryTransactions(ctx, store.TransactionFilter{ImportID: "imp_2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"txn_4"}, ids(byImport))

	none, err := s.QueryTransactions(ctx, store.TransactionFilter{AccountID: "acct_missing"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testInsertAllOrNothing(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "acct_a", "0")

	require.NoError(t, s.InsertTransactions(ctx, []model.BankTransaction{
		txn("txn_1", "acct_a", "2024-01-01", "1.00", model.TypeCredit, "imp_1"),
	}))

	err := s.InsertTransactions(ctx, []model.BankTransaction{
		txn("txn_2", "acct_a", "2024-01-02", "2.00", model.TypeCredit, "imp_2"),
		txn("txn_1", "acct_a", "2024-01-03", "3.00", model.TypeCredit, "imp_2"),
	})
	require.Error(t, err)

	_, err = s.GetTransaction(ctx, "txn_2")
	assert.True(t, errors.Is(err, store.ErrNotFound), "failed batch leaves nothing behind")

	err = s.InsertTransactions(ctx, []model.BankTransaction{
		txn("txn_9", "acct_missing", "2024-01-02", "2.00", model.TypeCredit, "imp_3"),
	})
	assert.Error(t, err)
}

func testUpdateAndDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "acct_a", "0")
	require.NoError(t, s.CreateReconciliation(ctx, model.Reconciliation{
		ID:            "rec_1",
		BankAccountID: "acct_a",
		StatementDate: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:        model.ReconciliationInProgress,
	}))
	require.NoError(t, s.InsertTransactions(ctx, []model.BankTransaction{
		txn("txn_1", "acct_a", "2024-01-01", "1.00", model.TypeCredit, "imp_1"),
		txn("txn_2", "acct_a", "2024-01-02", "2.00", model.TypeDebit, "imp_1"),
		txn("txn_3", "acct_a", "2024-01-03", "3.00", model.TypeDebit, "imp_2"),
	}))

	n, err := s.UpdateTransactions(ctx, store.TransactionFilter{ID: "txn_1"}, store.TransactionUpdate{ReconciliationID: store.String("rec_1")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.UpdateTransactions(ctx, store.TransactionFilter{ID: "txn_2"}, store.TransactionUpdate{ReconciliationID: store.String("rec_1")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	claimed, err := s.QueryTransactions(ctx, store.TransactionFilter{ReconciliationID: "rec_1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"txn_1", "txn_2"}, ids(claimed))

	n, err = s.UpdateTransactions(ctx, store.TransactionFilter{ReconciliationID: "rec_1"}, store.TransactionUpdate{IsReconciled: store.Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	open, err := s.QueryTransactions(ctx, store.TransactionFilter{AccountID: "acct_a", IsReconciled: store.Bool(false)})
	require.NoError(t, err)
	assert.Equal(t, []string{"txn_3"}, ids(open))

	n, err = s.UpdateTransactions(ctx, store.TransactionFilter{ReconciliationID: "rec_1"},
		store.TransactionUpdate{ReconciliationID: store.String(""), IsReconciled: store.Bool(false)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.GetTransaction(ctx, "txn_1")
	require.NoError(t, err)
	assert.Empty(t, got.ReconciliationID)
	assert.False(t, got.IsReconciled)

	n, err = s.UpdateTransactions(ctx, store.TransactionFilter{ID: "txn_missing"}, store.TransactionUpdate{IsReconciled: store.Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.DeleteTransactions(ctx, store.TransactionFilter{ImportID: "imp_1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := s.QueryTransactions(ctx, store.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"txn_3"}, ids(left))
}

func testReconciliations(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "acct_a", "0")

	r := model.Reconciliation{
		ID:               "rec_1",
		BankAccountID:    "acct_a",
		StatementDate:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		StatementBalance: dec("150.25"),
		OpeningBalance:   dec("100"),
		ClearedBalance:   dec("100"),
		Difference:       dec("50.25"),
		Status:           model.ReconciliationInProgress,
	}
	require.NoError(t, s.CreateReconciliation(ctx, r))
	assert.Error(t, s.CreateReconciliation(ctx, r))

	got, err := s.GetReconciliation(ctx, "rec_1")
	require.NoError(t, err)
	assert.True(t, got.StatementDate.Equal(r.StatementDate))
	assert.True(t, got.StatementBalance.Equal(r.StatementBalance))
	assert.True(t, got.Difference.Equal(r.Difference))
	assert.True(t, got.Open())
	assert.True(t, got.CompletedAt.IsZero())

	got.Status = model.ReconciliationCompleted
	got.Difference = decimal.Zero
	got.ClearedBalance = dec("150.25")
	got.CompletedAt = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdateReconciliation(ctx, got))

	got, err = s.GetReconciliation(ctx, "rec_1")
	require.NoError(t, err)
	assert.False(t, got.Open())
	assert.True(t, got.Difference.IsZero())
	assert.True(t, got.CompletedAt.Equal(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)))

	list, err := s.ListReconciliations(ctx, "acct_a")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = s.ListReconciliations(ctx, "acct_other")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.DeleteReconciliation(ctx, "rec_1"))
	_, err = s.GetReconciliation(ctx, "rec_1")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteReconciliation(ctx, "rec_1"), store.ErrNotFound))
	assert.True(t, errors.Is(s.UpdateReconciliation(ctx, r), store.ErrNotFound))
}

func testRunInTxCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "acct_a", "10")

	err := s.RunInTx(ctx, func(tx store.Store) error {
		if err := tx.InsertTransactions(ctx, []model.BankTransaction{
			txn("txn_1", "acct_a", "2024-01-01", "5.00", model.TypeCredit, "imp_1"),
		}); err != nil {
			return err
		}
		return tx.RunInTx(ctx, func(inner store.Store) error {
			return inner.AdjustBalance(ctx, "acct_a", dec("5"))
		})
	})
	require.NoError(t, err)

	a, err := s.GetAccount(ctx, "acct_a")
	require.NoError(t, err)
	assert.Equal(t, "15.00", a.CurrentBalance.StringFixed(2))
	_, err = s.GetTransaction(ctx, "txn_1")
	assert.NoError(t, err)
}

func testRunInTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "acct_a", "10")
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(tx store.Store) error {
		if err := tx.InsertTransactions(ctx, []model.BankTransaction{
			txn("txn_1", "acct_a", "2024-01-01", "5.00", model.TypeCredit, "imp_1"),
		}); err != nil {
			return err
		}
		if err := tx.AdjustBalance(ctx, "acct_a", dec("5")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	a, err := s.GetAccount(ctx, "acct_a")
	require.NoError(t, err)
	assert.Equal(t, "10.00", a.CurrentBalance.StringFixed(2))
	_, err = s.GetTransaction(ctx, "txn_1")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
