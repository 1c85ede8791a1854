package importer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/model"
)

const isoDateFormat = "2006-01-02"

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// dateLayouts are tried in order for non-ISO dates. Month-first wins for
// ambiguous slash and dash dates, matching US bank exports.
var dateLayouts = []string{
	"1/2/2006",
	"1/2/06",
	"1-2-2006",
	"1.2.2006",
	"2006-1-2",
	"2006/1/2",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Jan. 2, 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2-Jan-2006",
	"2-Jan-06",
	"Mon, Jan 2, 2006",
	"Mon Jan 2 2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeDate converts a bank date to "YYYY-MM-DD" (UTC calendar date).
// ISO dates pass through. A value no layout accepts is returned trimmed
// and unchanged.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || isoDate.MatchString(s) {
		return s
	}
	if t, ok := parseDate(s); ok {
		return t.UTC().Format(isoDateFormat)
	}
	return s
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidDate reports whether s is a real ISO calendar date.
func ValidDate(s string) bool {
	if !isoDate.MatchString(s) {
		return false
	}
	_, err := time.Parse(isoDateFormat, s)
	return err == nil
}

// ParseAmount parses a bank amount. "$", commas and whitespace are removed,
// "(123.45)" is read as -123.45, anything unparseable is zero.
func ParseAmount(raw string) decimal.Decimal {
	d, err := ParseAmountStrict(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseAmountStrict is ParseAmount that reports unparseable input.
func ParseAmountStrict(raw string) (decimal.Decimal, error) {
	s := stripCurrency(raw)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount %q", raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return d, nil
}

// RowOptions controls per-row normalization.
type RowOptions struct {
	// StrictDates skips rows whose date cannot be parsed instead of passing the raw value through.
	StrictDates bool
}

// BuildTransaction normalizes one row. ok is false when the row must be
// skipped: no date, no description, or no positive debit/credit value.
func BuildTransaction(row RawRow, m ColumnMapping, importID string, opts RowOptions) (model.NormalizedTransaction, bool) {
	date := NormalizeDate(row[m.Date])
	if opts.StrictDates && !ValidDate(date) {
		date = ""
	}
	desc := strings.TrimSpace(row[m.Description])
	if m.Date == "" || m.Description == "" || date == "" || desc == "" {
		return model.NormalizedTransaction{}, false
	}

	var amount decimal.Decimal
	var typ model.TransactionType

	if m.SingleAmount() {
		v := ParseAmount(row[m.Amount])
		typ = model.TypeCredit
		if v.IsNegative() {
			typ = model.TypeDebit
		}
		amount = v.Abs()
	} else {
		debit, credit := decimal.Zero, decimal.Zero
		if m.Debit != "" {
			debit = ParseAmount(row[m.Debit])
		}
		if m.Credit != "" {
			credit = ParseAmount(row[m.Credit])
		}
		switch {
		case debit.IsPositive():
			typ, amount = model.TypeDebit, debit
		case credit.IsPositive():
			typ, amount = model.TypeCredit, credit
		default:
			return model.NormalizedTransaction{}, false
		}
	}

	txn := model.NormalizedTransaction{
		Date:        date,
		Description: desc,
		Amount:      amount.Round(2),
		Type:        typ,
		Payee:       desc,
		Status:      model.StatusUnreviewed,
		ImportID:    importID,
	}
	if m.Reference != "" {
		txn.Reference = row[m.Reference]
	}
	if m.CheckNumber != "" {
		txn.CheckNumber = row[m.CheckNumber]
	}
	return txn, true
}
