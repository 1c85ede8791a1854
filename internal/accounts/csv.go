package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/model"
)

const (
	numFields            = 6
	colID                = 0
	colName              = 1
	colCurrentBalance    = 2
	colReconciledBalance = 3
	colReconciledDate    = 4
	colCreatedAt         = 5
)

const dateLayout = "2006-01-02"

var header = []string{"account_id", "name", "current_balance", "last_reconciled_balance", "last_reconciled_date", "created_at"}

// ReadAccounts reads rows written by WriteAccounts.
func ReadAccounts(r io.Reader) ([]model.BankAccount, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.BankAccount
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes accounts as CSV with a header row.
func WriteAccounts(w io.Writer, accounts []model.BankAccount) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts a BankAccount to a CSV row.
func MarshalAccount(acct model.BankAccount) []string {
	row := make([]string, numFields)
	row[colID] = acct.ID
	row[colName] = acct.Name
	row[colCurrentBalance] = acct.CurrentBalance.StringFixed(2)
	row[colReconciledBalance] = acct.LastReconciledBalance.StringFixed(2)
	if acct.Reconciled() {
		row[colReconciledDate] = acct.LastReconciledDate.Format(dateLayout)
	}
	if !acct.CreatedAt.IsZero() {
		row[colCreatedAt] = acct.CreatedAt.UTC().Format(time.RFC3339)
	}
	return row
}

// UnmarshalAccount converts a CSV row to a BankAccount.
func UnmarshalAccount(record []string) (model.BankAccount, error) {
	if len(record) != numFields {
		return model.BankAccount{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	acct := model.BankAccount{ID: record[colID], Name: record[colName]}

	var err error
	if acct.CurrentBalance, err = parseMoney(record[colCurrentBalance]); err != nil {
		return model.BankAccount{}, fmt.Errorf("parsing current_balance %q: %w", record[colCurrentBalance], err)
	}
	if acct.LastReconciledBalance, err = parseMoney(record[colReconciledBalance]); err != nil {
		return model.BankAccount{}, fmt.Errorf("parsing last_reconciled_balance %q: %w", record[colReconciledBalance], err)
	}
	if v := record[colReconciledDate]; v != "" {
		if acct.LastReconciledDate, err = time.Parse(dateLayout, v); err != nil {
			return model.BankAccount{}, fmt.Errorf("parsing last_reconciled_date %q: %w", v, err)
		}
	}
	if v := record[colCreatedAt]; v != "" {
		if acct.CreatedAt, err = time.Parse(time.RFC3339, v); err != nil {
			return model.BankAccount{}, fmt.Errorf("parsing created_at %q: %w", v, err)
		}
	}
	return acct, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
