package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/importer"
)

const dateLayout = "2006-01-02"

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

// parseDate accepts any layout the CSV normalizer understands.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, importer.NormalizeDate(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// parseMoney accepts plain decimals and bank formatting such as "$1,234.56" or "(12.00)".
func parseMoney(flag, s string) (decimal.Decimal, error) {
	d, err := importer.ParseAmountStrict(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q", flag, s)
	}
	return d, nil
}

func printMapping(w io.Writer, m importer.ColumnMapping, conf importer.Confidence) {
	tw := newTable(w)
	fmt.Fprintln(tw, "FIELD\tHEADER\tCONFIDENCE")
	for _, f := range importer.Fields {
		header := m.Get(f)
		if header == "" {
			fmt.Fprintf(tw, "%s\t-\t\n", f)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\n", f, header, conf[f])
	}
	tw.Flush()
}
