package warehouse

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/cleared-dev/bankrec/internal/model"
)

// TransactionRow is one bank transaction in the warehouse table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	AccountID     string `bigquery:"account_id"`     // REQUIRED
	ImportID      string `bigquery:"import_id"`      // REQUIRED

	TransactionDate bigquery.NullDate `bigquery:"transaction_date"` // NULL when the bank date could not be normalized
	RawDate         string            `bigquery:"raw_date"`

	Amount       *big.Rat `bigquery:"amount"`        // NUMERIC, always >= 0
	SignedAmount *big.Rat `bigquery:"signed_amount"` // NUMERIC, credits positive
	Direction    string   `bigquery:"direction"`

	Description string              `bigquery:"description"`
	Payee       bigquery.NullString `bigquery:"payee"`
	Reference   bigquery.NullString `bigquery:"reference"`
	CheckNumber bigquery.NullString `bigquery:"check_number"`
	Memo        bigquery.NullString `bigquery:"memo"`
	Status      string              `bigquery:"status"`

	ReconciliationID bigquery.NullString `bigquery:"reconciliation_id"`
	IsReconciled     bool                `bigquery:"is_reconciled"`

	Source bigquery.NullString `bigquery:"source"`

	CreatedTS  time.Time `bigquery:"created_ts"`
	ExportedTS time.Time `bigquery:"exported_ts"`
}

// ToRow converts a stored transaction to a warehouse row.
func ToRow(t model.BankTransaction, source string, exportedAt time.Time) *TransactionRow {
	row := &TransactionRow{
		TransactionID:    t.ID,
		AccountID:        t.BankAccountID,
		ImportID:         t.ImportID,
		RawDate:          t.Date,
		Amount:           t.Amount.Rat(),
		SignedAmount:     t.Signed().Rat(),
		Direction:        string(t.Type),
		Description:      t.Description,
		Payee:            nullString(t.Payee),
		Reference:        nullString(t.Reference),
		CheckNumber:      nullString(t.CheckNumber),
		Memo:             nullString(t.Memo),
		Status:           string(t.Status),
		ReconciliationID: nullString(t.ReconciliationID),
		IsReconciled:     t.IsReconciled,
		Source:           nullString(source),
		CreatedTS:        t.CreatedAt.UTC(),
		ExportedTS:       exportedAt.UTC(),
	}
	if d, err := civil.ParseDate(t.Date); err == nil {
		row.TransactionDate = bigquery.NullDate{Date: d, Valid: true}
	}
	return row
}

// Schema returns the table schema inferred from TransactionRow.
func Schema() (bigquery.Schema, error) {
	return bigquery.InferSchema(TransactionRow{})
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
