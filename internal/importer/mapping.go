package importer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field is a canonical transaction field a CSV column can map to.
type Field string

const (
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldAmount      Field = "amount"
	FieldDebit       Field = "debit"
	FieldCredit      Field = "credit"
	FieldReference   Field = "reference"
	FieldCheckNumber Field = "checkNumber"
	FieldCategory    Field = "category"
)

// Fields lists every mappable field in name-pass order.
var Fields = []Field{
	FieldDate,
	FieldDescription,
	FieldAmount,
	FieldDebit,
	FieldCredit,
	FieldReference,
	FieldCheckNumber,
	FieldCategory,
}

// synonyms are matched against lower-cased, trimmed headers by equality or substring.
var synonyms = map[Field][]string{
	FieldDate:        {"date", "transaction date", "trans date", "posting date", "post date", "effective date"},
	FieldDescription: {"description", "memo", "narrative", "details", "payee", "transaction description", "name"},
	FieldAmount:      {"amount", "transaction amount", "trans amount"},
	FieldDebit:       {"debit", "withdrawal", "withdrawals", "debit amount", "money out"},
	FieldCredit:      {"credit", "deposit", "deposits", "credit amount", "money in"},
	FieldReference:   {"reference", "ref", "reference number", "ref no", "confirmation", "transaction id"},
	FieldCheckNumber: {"check number", "check no", "check #", "cheque number"},
	FieldCategory:    {"category", "type", "transaction type"},
}

// ColumnMapping names the header assigned to each field. Empty means unmapped.
type ColumnMapping struct {
	Date        string `json:"date,omitempty" yaml:"date,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Amount      string `json:"amount,omitempty" yaml:"amount,omitempty"`
	Debit       string `json:"debit,omitempty" yaml:"debit,omitempty"`
	Credit      string `json:"credit,omitempty" yaml:"credit,omitempty"`
	Reference   string `json:"reference,omitempty" yaml:"reference,omitempty"`
	CheckNumber string `json:"checkNumber,omitempty" yaml:"check_number,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
}

// Get returns the header mapped to f.
func (m ColumnMapping) Get(f Field) string {
	switch f {
	case FieldDate:
		return m.Date
	case FieldDescription:
		return m.Description
	case FieldAmount:
		return m.Amount
	case FieldDebit:
		return m.Debit
	case FieldCredit:
		return m.Credit
	case FieldReference:
		return m.Reference
	case FieldCheckNumber:
		return m.CheckNumber
	case FieldCategory:
		return m.Category
	}
	return ""
}

// Set assigns header to f. Unknown fields are ignored.
func (m *ColumnMapping) Set(f Field, header string) {
	switch f {
	case FieldDate:
		m.Date = header
	case FieldDescription:
		m.Description = header
	case FieldAmount:
		m.Amount = header
	case FieldDebit:
		m.Debit = header
	case FieldCredit:
		m.Credit = header
	case FieldReference:
		m.Reference = header
	case FieldCheckNumber:
		m.CheckNumber = header
	case FieldCategory:
		m.Category = header
	}
}

// Usable reports whether rows can be normalized with this mapping:
// date, description, and either amount or debit must be mapped.
func (m ColumnMapping) Usable() bool {
	return m.Date != "" && m.Description != "" && (m.Amount != "" || m.Debit != "")
}

// SingleAmount reports whether rows carry a signed amount column rather than debit/credit columns.
func (m ColumnMapping) SingleAmount() bool {
	return m.Amount != ""
}

// ParseField converts a field name to a Field, accepting snake_case for checkNumber.
func ParseField(name string) (Field, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, f := range Fields {
		if n == strings.ToLower(string(f)) {
			return f, true
		}
	}
	if n == "check_number" || n == "check" {
		return FieldCheckNumber, true
	}
	return "", false
}

// DetectOptions tunes the content pass. Zero values fall back to the defaults.
type DetectOptions struct {
	SampleRows           int
	DateThreshold        float64 // fraction of non-empty samples that must look like dates
	AmountThreshold      float64 // fraction of non-empty samples that must look like amounts
	DescriptionThreshold float64 // fraction of non-empty samples longer than DescriptionMinLen characters
	DescriptionMinLen    int
}

// DefaultDetectOptions returns the stock content-pass thresholds.
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		SampleRows:           10,
		DateThreshold:        0.7,
		AmountThreshold:      0.7,
		DescriptionThreshold: 0.5,
		DescriptionMinLen:    5,
	}
}

func (o DetectOptions) withDefaults() DetectOptions {
	d := DefaultDetectOptions()
	if o.SampleRows > 0 {
		d.SampleRows = o.SampleRows
	}
	if o.DateThreshold > 0 {
		d.DateThreshold = o.DateThreshold
	}
	if o.AmountThreshold > 0 {
		d.AmountThreshold = o.AmountThreshold
	}
	if o.DescriptionThreshold > 0 {
		d.DescriptionThreshold = o.DescriptionThreshold
	}
	if o.DescriptionMinLen > 0 {
		d.DescriptionMinLen = o.DescriptionMinLen
	}
	return d
}

// Confidence scores each resolved field in [0,1]: 1 for a header-name match,
// the observed sample ratio for a content match.
type Confidence map[Field]float64

// Detection is the outcome of mapping inference.
type Detection struct {
	Mapping    ColumnMapping
	Confidence Confidence
}

// DetectMapping infers a column mapping from headers and sample rows.
// A header-name pass runs first; a content pass fills in date, description,
// or amount when the name pass left them unresolved.
func DetectMapping(headers []string, rows []RawRow, opts DetectOptions) Detection {
	opts = opts.withDefaults()
	det := Detection{Confidence: Confidence{}}
	assigned := make(map[string]bool, len(headers))

	for _, f := range Fields {
		for _, h := range headers {
			if h == "" || assigned[h] {
				continue
			}
			if matchesName(h, synonyms[f]) {
				det.Mapping.Set(f, h)
				det.Confidence[f] = 1
				assigned[h] = true
				break
			}
		}
	}

	m := &det.Mapping
	if m.Usable() {
		return det
	}

	excluded := map[string]bool{}
	for _, f := range []Field{FieldDate, FieldDescription, FieldAmount, FieldDebit, FieldCredit} {
		if h := m.Get(f); h != "" {
			excluded[h] = true
		}
	}

	sample := rows
	if len(sample) > opts.SampleRows {
		sample = sample[:opts.SampleRows]
	}

	for _, h := range headers {
		if h == "" || excluded[h] {
			continue
		}
		values := sampleValues(sample, h)
		if len(values) == 0 {
			continue
		}

		dateRatio := ratio(values, IsDateLike)
		amountRatio := ratio(values, IsAmountLike)
		longRatio := ratio(values, func(v string) bool { return utf8.RuneCountInString(v) > opts.DescriptionMinLen })

		switch {
		case m.Date == "" && dateRatio >= opts.DateThreshold:
			m.Date = h
			det.Confidence[FieldDate] = dateRatio
		case m.Amount == "" && m.Debit == "" && amountRatio >= opts.AmountThreshold:
			m.Amount = h
			det.Confidence[FieldAmount] = amountRatio
		case m.Description == "" && longRatio > opts.DescriptionThreshold:
			m.Description = h
			det.Confidence[FieldDescription] = longRatio
		}
	}
	return det
}

func matchesName(header string, names []string) bool {
	h := strings.ToLower(strings.TrimSpace(header))
	for _, n := range names {
		if h == n || strings.Contains(h, n) {
			return true
		}
	}
	return false
}

func sampleValues(rows []RawRow, header string) []string {
	var values []string
	for _, r := range rows {
		if v := strings.TrimSpace(r[header]); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func ratio(values []string, pred func(string) bool) float64 {
	n := 0
	for _, v := range values {
		if pred(v) {
			n++
		}
	}
	return float64(n) / float64(len(values))
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2,4}$`),
	regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}$`),
	regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}$`),
	regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`),
	regexp.MustCompile(`^[A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{4}$`),
}

// IsDateLike reports whether v looks like a calendar date in a common bank format.
func IsDateLike(v string) bool {
	v = strings.TrimSpace(v)
	for _, re := range datePatterns {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}

var amountPattern = regexp.MustCompile(`^-?\d+(\.\d{2})?$`)

// IsAmountLike reports whether v looks like a currency amount once "$", commas and spaces are removed.
func IsAmountLike(v string) bool {
	return amountPattern.MatchString(stripCurrency(v))
}

func stripCurrency(v string) string {
	return strings.Map(func(r rune) rune {
		if r == '$' || r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, v)
}
