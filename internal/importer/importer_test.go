package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/model"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", name))
	require.NoError(t, err)
	return string(data)
}

func buildAll(t *testing.T, res ParseResult, m ColumnMapping) []model.NormalizedTransaction {
	t.Helper()
	var txns []model.NormalizedTransaction
	for _, r := range res.Rows {
		if txn, ok := BuildTransaction(r, m, "imp_test", RowOptions{}); ok {
			txns = append(txns, txn)
		}
	}
	return txns
}

func TestChasePreset(t *testing.T) {
	res := ParseCSV(readFixture(t, "chase_checking.csv"), DefaultDetectOptions())
	require.Len(t, res.Rows, 6)

	p, ok := DefaultRegistry().Get("Chase")
	require.True(t, ok)
	txns := buildAll(t, res, p.Mapping)
	require.Len(t, txns, 6)

	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", txns[0].Description)
	assert.Equal(t, "2025-01-03", txns[0].Date)
	assert.Equal(t, "4.00", txns[0].Amount.StringFixed(2))
	assert.Equal(t, model.TypeDebit, txns[0].Type)

	assert.Equal(t, "STAPLES #1123, AUSTIN TX", txns[2].Description)

	assert.Equal(t, "ACME CONSULTING INVOICE 1042", txns[3].Description)
	assert.Equal(t, model.TypeCredit, txns[3].Type)
	assert.Equal(t, "3500.00", txns[3].Amount.StringFixed(2))

	assert.Equal(t, "1201", txns[4].CheckNumber)
	assert.Equal(t, `USPS PO 4821 "PRIORITY"`, txns[5].Description)

	for _, txn := range txns {
		assert.Equal(t, txn.Description, txn.Payee)
		assert.Equal(t, model.StatusUnreviewed, txn.Status)
		assert.Equal(t, "imp_test", txn.ImportID)
		assert.Empty(t, txn.Memo)
	}
}

func TestCapitalOneDetected(t *testing.T) {
	res := ParseCSV(readFixture(t, "capitalone.csv"), DefaultDetectOptions())

	p, ok := DefaultRegistry().Get("capitalone")
	require.True(t, ok)
	assert.Equal(t, p.Mapping, res.DetectedMapping, "name inference agrees with the preset")

	txns := buildAll(t, res, res.DetectedMapping)
	require.Len(t, txns, 3, "row with neither debit nor credit is skipped")
	assert.Equal(t, model.TypeDebit, txns[0].Type)
	assert.Equal(t, "6.25", txns[0].Amount.StringFixed(2))
	assert.Equal(t, model.TypeCredit, txns[2].Type)
	assert.Equal(t, "500.00", txns[2].Amount.StringFixed(2))
}

func TestUnlabeledContentInference(t *testing.T) {
	res := ParseCSV(readFixture(t, "unlabeled.csv"), DefaultDetectOptions())
	assert.Equal(t, ColumnMapping{Date: "Col1", Amount: "Col2", Description: "Col3"}, res.DetectedMapping)
	assert.InDelta(t, 1.0, res.Confidence[FieldDate], 0.0001)

	txns := buildAll(t, res, res.DetectedMapping)
	require.Len(t, txns, 4)
	assert.Equal(t, "1250.00", txns[0].Amount.StringFixed(2))
	assert.Equal(t, model.TypeCredit, txns[0].Type)
	assert.Equal(t, model.TypeDebit, txns[1].Type)
}

func TestParseCSV_Deterministic(t *testing.T) {
	text := readFixture(t, "chase_checking.csv")
	a := ParseCSV(text, DefaultDetectOptions())
	b := ParseCSV(text, DefaultDetectOptions())
	assert.Equal(t, a, b)
}

func TestParseResult_Sample(t *testing.T) {
	res := ParseCSV(readFixture(t, "chase_checking.csv"), DefaultDetectOptions())
	assert.Len(t, res.Sample(5), 5)
	assert.Len(t, res.Sample(50), 6)

	empty := ParseCSV("", DefaultDetectOptions())
	assert.Empty(t, empty.Sample(5))
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"capitalone", "chase", "generic-debit-credit"}, r.Names())

	_, ok := r.Get("nope")
	assert.False(t, ok)

	assert.Panics(t, func() { r.Register(Preset{Name: "CHASE"}) })
}

func TestParseMappingSpec(t *testing.T) {
	m, err := ParseMappingSpec("date=Posted, description=Memo Line ,debit=Out,credit=In,check_number=Chk")
	require.NoError(t, err)
	assert.Equal(t, ColumnMapping{
		Date:        "Posted",
		Description: "Memo Line",
		Debit:       "Out",
		Credit:      "In",
		CheckNumber: "Chk",
	}, m)
	assert.True(t, m.Usable())

	_, err = ParseMappingSpec("date")
	assert.Error(t, err)

	_, err = ParseMappingSpec("balance=Balance")
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jan.csv"), []byte("Date\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "FEB.CSV"), []byte("Date\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "processed"), 0o755))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)

	names := []string{files[0].Name, files[1].Name}
	assert.ElementsMatch(t, []string{"jan.csv", "FEB.CSV"}, names)
	for _, f := range files {
		assert.Equal(t, filepath.Join(dir, f.Name), f.Path)
		assert.Equal(t, int64(5), f.Size)
	}
}

func TestScan_MissingDir(t *testing.T) {
	files, err := Scan(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jan.csv"), []byte("Date\n"), 0o644))

	require.NoError(t, MarkProcessed(dir, "jan.csv"))

	_, err := os.Stat(filepath.Join(dir, "jan.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "processed", "jan.csv"))
	assert.NoError(t, err)

	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Empty(t, files)

	assert.Error(t, MarkProcessed(dir, "missing.csv"))
}
