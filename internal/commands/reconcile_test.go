package commands_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/ingest"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/reconcile"
)

// importCoffee imports coffee.csv into checking and returns the IDs of the
// coffee debit and the paycheck credit.
func importCoffee(t *testing.T, dir string) (coffee, paycheck string) {
	t.Helper()
	mustRun(t, "import", fixture("coffee.csv"), "--repo", dir, "--account", "checking")

	r := decode[model.Reconciliation](t, mustRun(t, "reconcile", "start", "--repo", dir,
		"--account", "checking", "--statement-date", "2024-01-01", "--statement-balance", "100", "--json"))
	rep := decode[reconcile.Report](t, mustRun(t, "reconcile", "show", r.ID, "--repo", dir, "--json"))
	mustRun(t, "reconcile", "delete", r.ID, "--repo", dir)

	for _, txn := range rep.Candidates {
		switch txn.Description {
		case "Coffee Shop":
			coffee = txn.ID
		case "Paycheck":
			paycheck = txn.ID
		}
	}
	require.NotEmpty(t, coffee)
	require.NotEmpty(t, paycheck)
	return coffee, paycheck
}

func TestReconcile_Workflow(t *testing.T) {
	dir := newWorkspace(t)
	coffee, paycheck := importCoffee(t, dir)

	r := decode[model.Reconciliation](t, mustRun(t, "reconcile", "start", "--repo", dir,
		"--account", "checking", "--statement-date", "01/31/2024", "--statement-balance", "$2,095.50", "--json"))
	assert.Equal(t, "100.00", r.OpeningBalance.StringFixed(2))
	assert.Equal(t, "1995.50", r.Difference.StringFixed(2))
	assert.Equal(t, "2024-01-31", r.StatementDate.Format("2006-01-02"))

	bal := decode[reconcile.Balances](t, mustRun(t, "reconcile", "toggle", r.ID, paycheck, "--repo", dir, "--json"))
	assert.Equal(t, "2100.00", bal.ClearedBalance.StringFixed(2))
	assert.Equal(t, "-4.50", bal.Difference.StringFixed(2))

	res, err := run(t, "", "reconcile", "complete", r.ID, "--repo", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "difference of $-4.50")
	assert.Contains(t, res.stderr, "reconcile show")

	bal = decode[reconcile.Balances](t, mustRun(t, "reconcile", "toggle", r.ID, coffee, "--repo", dir, "--json"))
	assert.True(t, bal.Difference.IsZero())

	show := mustRun(t, "reconcile", "show", r.ID, "--repo", dir)
	assert.Contains(t, show, "Cleared (1 credits, 1 debits)")
	assert.Contains(t, show, "Not cleared (0)")

	done := decode[model.Reconciliation](t, mustRun(t, "reconcile", "complete", r.ID, "--repo", dir, "--json"))
	assert.Equal(t, model.ReconciliationCompleted, done.Status)
	assert.True(t, done.Difference.IsZero())

	accts := decode[[]model.BankAccount](t, mustRun(t, "accounts", "list", "--repo", dir, "--json"))
	require.Len(t, accts, 1)
	assert.Equal(t, "2095.50", accts[0].LastReconciledBalance.StringFixed(2))
	assert.Equal(t, "2024-01-31", accts[0].LastReconciledDate.Format("2006-01-02"))

	list := decode[[]model.Reconciliation](t, mustRun(t, "reconcile", "list", "--repo", dir, "--account", "checking", "--json"))
	require.Len(t, list, 1)
	assert.Equal(t, model.ReconciliationCompleted, list[0].Status)

	// Reconciled transactions cannot be undone with their import.
	rep := decode[reconcile.Report](t, mustRun(t, "reconcile", "show", r.ID, "--repo", dir, "--json"))
	require.Len(t, rep.Cleared, 2)
	_, err = run(t, "", "import", "undo", rep.Cleared[0].ImportID, "--repo", dir)
	assert.Error(t, err)

	out := mustRun(t, "reconcile", "delete", r.ID, "--repo", dir)
	assert.Contains(t, out, "Deleted "+r.ID)

	mustRun(t, "import", "undo", rep.Cleared[0].ImportID, "--repo", dir, "--json")
}

func TestReconcile_ToggleErrors(t *testing.T) {
	dir := newWorkspace(t)
	r := decode[model.Reconciliation](t, mustRun(t, "reconcile", "start", "--repo", dir,
		"--account", "checking", "--statement-date", "2024-01-31", "--statement-balance", "0", "--json"))

	_, err := run(t, "", "reconcile", "toggle", r.ID, "txn_missing", "--repo", dir)
	assert.Error(t, err)

	_, err = run(t, "", "reconcile", "toggle", "rec_missing", "txn_missing", "--repo", dir)
	assert.Error(t, err)
}

func TestReconcile_StartValidation(t *testing.T) {
	dir := newWorkspace(t)

	_, err := run(t, "", "reconcile", "start", "--repo", dir, "--account", "checking", "--statement-date", "someday", "--statement-balance", "1")
	assert.Error(t, err)

	_, err = run(t, "", "reconcile", "start", "--repo", dir, "--account", "checking", "--statement-date", "2024-01-31", "--statement-balance", "x")
	assert.Error(t, err)

	_, err = run(t, "", "reconcile", "start", "--repo", dir, "--account", "nope", "--statement-date", "2024-01-31", "--statement-balance", "1")
	assert.Error(t, err)

	_, err = run(t, "", "reconcile", "start", "--repo", dir, "--account", "checking", "--statement-date", "2024-01-31", "--statement-balance", "$")
	assert.Error(t, err)
}

func TestReconcile_StartZeroStatementBalance(t *testing.T) {
	dir := newWorkspace(t)

	for _, balance := range []string{"$0.00", "0", "(0.00)"} {
		r := decode[model.Reconciliation](t, mustRun(t, "reconcile", "start", "--repo", dir,
			"--account", "checking", "--statement-date", "2024-01-31", "--statement-balance", balance, "--json"))
		assert.True(t, r.StatementBalance.IsZero(), balance)
		assert.Equal(t, "-100.00", r.Difference.StringFixed(2), balance)
	}
}

func TestExport_RequiresWarehouse(t *testing.T) {
	dir := newWorkspace(t)
	res := decode[ingest.Result](t, mustRun(t, "import", fixture("coffee.csv"), "--repo", dir, "--account", "checking", "--json"))

	_, err := run(t, "", "export", "bigquery", "--repo", dir, "--import", res.ImportID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warehouse.project")

	_, err = run(t, "", "export", "bigquery", "--repo", dir, "--import", "imp_missing")
	assert.Error(t, err)
}
