/*
Package sqlitestore is the SQLite implementation of store.Store.

Money on accounts and transactions is kept as integer cents so balance
adjustments are a single UPDATE; reconciliation figures are decimal TEXT.
The schema is migrated on New.
*/
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a store.Store backed by a SQLite database file.
type Store struct {
	db   *sql.DB
	q    querier
	inTx bool
	now  func() time.Time
}

// New opens (creating if needed) the database at dbPath.
// Use ":memory:" for a throwaway database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: SQLite has a single writer and ":memory:" is per-connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, q: db, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

// Close closes the database. Closing a transaction-scoped store is a no-op.
func (s *Store) Close() error {
	if s.inTx {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS bank_accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		current_balance_cents INTEGER NOT NULL DEFAULT 0,
		last_reconciled_balance TEXT NOT NULL DEFAULT '0',
		last_reconciled_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reconciliations (
		id TEXT PRIMARY KEY,
		bank_account_id TEXT NOT NULL REFERENCES bank_accounts(id),
		statement_date TEXT NOT NULL,
		statement_balance TEXT NOT NULL,
		opening_balance TEXT NOT NULL,
		cleared_balance TEXT NOT NULL,
		difference TEXT NOT NULL,
		status TEXT NOT NULL,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reconciliations_account
		ON reconciliations(bank_account_id, statement_date);

	CREATE TABLE IF NOT EXISTS bank_transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		bank_account_id TEXT NOT NULL REFERENCES bank_accounts(id),
		date TEXT NOT NULL,
		description TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		type TEXT NOT NULL,
		payee TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		check_number TEXT NOT NULL DEFAULT '',
		memo TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		import_id TEXT NOT NULL,
		reconciliation_id TEXT REFERENCES reconciliations(id),
		is_reconciled INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bank_transactions_account_date
		ON bank_transactions(bank_account_id, date);
	CREATE INDEX IF NOT EXISTS idx_bank_transactions_import
		ON bank_transactions(import_id);
	CREATE INDEX IF NOT EXISTS idx_bank_transactions_reconciliation
		ON bank_transactions(reconciliation_id) WHERE reconciliation_id IS NOT NULL;
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// RunInTx runs fn inside one SQL transaction. A store already inside a
// transaction runs fn directly.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Store{db: s.db, q: sqlTx, inTx: true, now: s.now}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func parseTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeFormat, ns.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", ns.String, err)
	}
	return t, nil
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return int(n), nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

const accountColumns = `id, name, current_balance_cents, last_reconciled_balance, last_reconciled_date, created_at`

func (s *Store) CreateAccount(ctx context.Context, a model.BankAccount) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	cents, err := store.Cents(a.CurrentBalance)
	if err != nil {
		return fmt.Errorf("account %s balance: %w", a.ID, err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO bank_accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.Name,
		cents,
		a.LastReconciledBalance,
		nullTime(a.LastReconciledDate),
		formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting account %s: %w", a.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (model.BankAccount, error) {
	var (
		a          model.BankAccount
		cents      int64
		lastDate   sql.NullString
		createdAt  sql.NullString
		lastAmount decimal.Decimal
	)
	if err := row.Scan(&a.ID, &a.Name, &cents, &lastAmount, &lastDate, &createdAt); err != nil {
		return model.BankAccount{}, err
	}
	a.CurrentBalance = fromCents(cents)
	a.LastReconciledBalance = lastAmount

	var err error
	if a.LastReconciledDate, err = parseTime(lastDate); err != nil {
		return model.BankAccount{}, err
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.BankAccount{}, err
	}
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (model.BankAccount, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BankAccount{}, fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return model.BankAccount{}, fmt.Errorf("reading account %s: %w", id, err)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]model.BankAccount, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+accountColumns+` FROM bank_accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var out []model.BankAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	cents, err := store.Cents(delta)
	if err != nil {
		return fmt.Errorf("adjusting balance of %s: %w", id, err)
	}
	return s.RunInTx(ctx, func(tx store.Store) error {
		ts := tx.(*Store)
		res, err := ts.q.ExecContext(ctx,
			`UPDATE bank_accounts SET current_balance_cents = current_balance_cents + ? WHERE id = ?`,
			cents, id)
		if err != nil {
			return fmt.Errorf("adjusting balance of %s: %w", id, err)
		}
		n, err := rowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("account %s: %w", id, store.ErrNotFound)
		}

		// SQLite turns an overflowing integer sum into a REAL.
		var kind string
		if err := ts.q.QueryRowContext(ctx,
			`SELECT typeof(current_balance_cents) FROM bank_accounts WHERE id = ?`, id).Scan(&kind); err != nil {
			return fmt.Errorf("checking balance of %s: %w", id, err)
		}
		if kind != "integer" {
			return fmt.Errorf("adjusting balance of %s by %s: %w", id, delta.String(), store.ErrAmountRange)
		}
		return nil
	})
}

func (s *Store) SetLastReconciled(ctx context.Context, id string, date time.Time, balance decimal.Decimal) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE bank_accounts SET last_reconciled_date = ?, last_reconciled_balance = ? WHERE id = ?`,
		nullTime(date), balance, id)
	if err != nil {
		return fmt.Errorf("updating last reconciled for %s: %w", id, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const transactionColumns = `id, bank_account_id, date, description, amount_cents, type, payee,
	reference, check_number, memo, status, import_id, reconciliation_id, is_reconciled, created_at`

func (s *Store) InsertTransactions(ctx context.Context, txns []model.BankTransaction) error {
	if len(txns) == 0 {
		return nil
	}
	return s.RunInTx(ctx, func(tx store.Store) error {
		ts := tx.(*Store)
		now := ts.now()
		for _, t := range txns {
			createdAt := t.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			cents, err := store.Cents(t.Amount)
			if err != nil {
				return fmt.Errorf("inserting transaction %s: %w", t.ID, err)
			}
			_, err = ts.q.ExecContext(ctx, `
				INSERT INTO bank_transactions (`+transactionColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				t.ID,
				t.BankAccountID,
				t.Date,
				t.Description,
				cents,
				string(t.Type),
				t.Payee,
				t.Reference,
				t.CheckNumber,
				t.Memo,
				string(t.Status),
				t.ImportID,
				sql.NullString{String: t.ReconciliationID, Valid: t.ReconciliationID != ""},
				t.IsReconciled,
				formatTime(createdAt),
			)
			if err != nil {
				return fmt.Errorf("inserting transaction %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

func scanTransaction(row scanner) (model.BankTransaction, error) {
	var (
		t         model.BankTransaction
		cents     int64
		typ       string
		status    string
		recID     sql.NullString
		createdAt sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.BankAccountID, &t.Date, &t.Description, &cents, &typ, &t.Payee,
		&t.Reference, &t.CheckNumber, &t.Memo, &status, &t.ImportID, &recID, &t.IsReconciled, &createdAt,
	)
	if err != nil {
		return model.BankTransaction{}, err
	}
	t.Amount = fromCents(cents)
	t.Type = model.TransactionType(typ)
	t.Status = model.TransactionStatus(status)
	t.ReconciliationID = recID.String
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.BankTransaction{}, err
	}
	return t, nil
}

func whereTransactions(f store.TransactionFilter) (string, []any) {
	var conds []string
	var args []any
	if f.ID != "" {
		conds = append(conds, "id = ?")
		args = append(args, f.ID)
	}
	if f.AccountID != "" {
		conds = append(conds, "bank_account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.ImportID != "" {
		conds = append(conds, "import_id = ?")
		args = append(args, f.ImportID)
	}
	if f.ReconciliationID != "" {
		conds = append(conds, "reconciliation_id = ?")
		args = append(args, f.ReconciliationID)
	}
	if f.IsReconciled != nil {
		conds = append(conds, "is_reconciled = ?")
		args = append(args, *f.IsReconciled)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) GetTransaction(ctx context.Context, id string) (model.BankTransaction, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM bank_transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BankTransaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("reading transaction %s: %w", id, err)
	}
	return t, nil
}

func (s *Store) QueryTransactions(ctx context.Context, f store.TransactionFilter) ([]model.BankTransaction, error) {
	where, args := whereTransactions(f)
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM bank_transactions`+where+` ORDER BY date, seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var out []model.BankTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTransactions(ctx context.Context, f store.TransactionFilter, u store.TransactionUpdate) (int, error) {
	var sets []string
	var args []any
	if u.ReconciliationID != nil {
		sets = append(sets, "reconciliation_id = ?")
		args = append(args, sql.NullString{String: *u.ReconciliationID, Valid: *u.ReconciliationID != ""})
	}
	if u.IsReconciled != nil {
		sets = append(sets, "is_reconciled = ?")
		args = append(args, *u.IsReconciled)
	}

	where, whereArgs := whereTransactions(f)
	if len(sets) == 0 {
		var n int
		err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM bank_transactions`+where, whereArgs...).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("counting transactions: %w", err)
		}
		return n, nil
	}

	res, err := s.q.ExecContext(ctx,
		`UPDATE bank_transactions SET `+strings.Join(sets, ", ")+where, append(args, whereArgs...)...)
	if err != nil {
		return 0, fmt.Errorf("updating transactions: %w", err)
	}
	return rowsAffected(res)
}

func (s *Store) DeleteTransactions(ctx context.Context, f store.TransactionFilter) (int, error) {
	where, args := whereTransactions(f)
	res, err := s.q.ExecContext(ctx, `DELETE FROM bank_transactions`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting transactions: %w", err)
	}
	return rowsAffected(res)
}

// =============================================================================
// RECONCILIATIONS
// =============================================================================

const reconciliationColumns = `id, bank_account_id, statement_date, statement_balance, opening_balance,
	cleared_balance, difference, status, completed_at, created_at`

func (s *Store) CreateReconciliation(ctx context.Context, r model.Reconciliation) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO reconciliations (`+reconciliationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.BankAccountID,
		formatTime(r.StatementDate),
		r.StatementBalance,
		r.OpeningBalance,
		r.ClearedBalance,
		r.Difference,
		string(r.Status),
		nullTime(r.CompletedAt),
		formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting reconciliation %s: %w", r.ID, err)
	}
	return nil
}

func scanReconciliation(row scanner) (model.Reconciliation, error) {
	var (
		r             model.Reconciliation
		statementDate sql.NullString
		status        string
		completedAt   sql.NullString
		createdAt     sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.BankAccountID, &statementDate, &r.StatementBalance, &r.OpeningBalance,
		&r.ClearedBalance, &r.Difference, &status, &completedAt, &createdAt,
	)
	if err != nil {
		return model.Reconciliation{}, err
	}
	r.Status = model.ReconciliationStatus(status)
	if r.StatementDate, err = parseTime(statementDate); err != nil {
		return model.Reconciliation{}, err
	}
	if r.CompletedAt, err = parseTime(completedAt); err != nil {
		return model.Reconciliation{}, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Reconciliation{}, err
	}
	return r, nil
}

func (s *Store) GetReconciliation(ctx context.Context, id string) (model.Reconciliation, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+reconciliationColumns+` FROM reconciliations WHERE id = ?`, id)
	r, err := scanReconciliation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reconciliation{}, fmt.Errorf("reconciliation %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return model.Reconciliation{}, fmt.Errorf("reading reconciliation %s: %w", id, err)
	}
	return r, nil
}

func (s *Store) ListReconciliations(ctx context.Context, accountID string) ([]model.Reconciliation, error) {
	query := `SELECT ` + reconciliationColumns + ` FROM reconciliations`
	var args []any
	if accountID != "" {
		query += ` WHERE bank_account_id = ?`
		args = append(args, accountID)
	}
	rows, err := s.q.QueryContext(ctx, query+` ORDER BY statement_date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reconciliations: %w", err)
	}
	defer rows.Close()

	var out []model.Reconciliation
	for rows.Next() {
		r, err := scanReconciliation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reconciliation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateReconciliation(ctx context.Context, r model.Reconciliation) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE reconciliations
		SET statement_date = ?, statement_balance = ?, opening_balance = ?, cleared_balance = ?,
		    difference = ?, status = ?, completed_at = ?
		WHERE id = ?`,
		formatTime(r.StatementDate),
		r.StatementBalance,
		r.OpeningBalance,
		r.ClearedBalance,
		r.Difference,
		string(r.Status),
		nullTime(r.CompletedAt),
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("updating reconciliation %s: %w", r.ID, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("reconciliation %s: %w", r.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteReconciliation(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM reconciliations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting reconciliation %s: %w", id, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("reconciliation %s: %w", id, store.ErrNotFound)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
