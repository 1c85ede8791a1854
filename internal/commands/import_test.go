package commands_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/activitylog"
	"github.com/cleared-dev/bankrec/internal/importer"
	"github.com/cleared-dev/bankrec/internal/ingest"
	"github.com/cleared-dev/bankrec/internal/model"
)

func accountBalance(t *testing.T, dir, accountID string) string {
	t.Helper()
	accts := decode[[]model.BankAccount](t, mustRun(t, "accounts", "list", "--repo", dir, "--json"))
	for _, a := range accts {
		if a.ID == accountID {
			return a.CurrentBalance.StringFixed(2)
		}
	}
	t.Fatalf("account %s not found", accountID)
	return ""
}

func TestParse(t *testing.T) {
	dir := newWorkspace(t)

	out := mustRun(t, "parse", fixture("coffee.csv"), "--repo", dir, "--json")
	got := decode[struct {
		Source          string                 `json:"source"`
		Headers         []string               `json:"headers"`
		DetectedMapping importer.ColumnMapping `json:"detectedMapping"`
		Confidence      map[string]float64     `json:"confidence"`
		Rows            int                    `json:"rows"`
		Usable          bool                   `json:"usable"`
	}](t, out)
	assert.Equal(t, "coffee.csv", got.Source)
	assert.Equal(t, []string{"Date", "Description", "Amount"}, got.Headers)
	assert.Equal(t, importer.ColumnMapping{Date: "Date", Description: "Description", Amount: "Amount"}, got.DetectedMapping)
	assert.Equal(t, 1.0, got.Confidence["date"])
	assert.Equal(t, 3, got.Rows)
	assert.True(t, got.Usable)

	text := mustRun(t, "parse", fixture("unlabeled.csv"), "--repo", dir)
	assert.Contains(t, text, "Headers: Col1, Col2, Col3")
	assert.Contains(t, text, "Col2")
}

func TestImport_File(t *testing.T) {
	dir := newWorkspace(t)

	out := mustRun(t, "import", fixture("coffee.csv"), "--repo", dir, "--account", "checking", "--json")
	res := decode[ingest.Result](t, out)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, "2095.50", accountBalance(t, dir, "checking"))

	entries, err := activitylog.Read(dir)
	require.NoError(t, err)
	var found bool
	for _, e := range entries {
		if e.Action == activitylog.ActionImport {
			found = true
			assert.Equal(t, res.ImportID, e.RecordID)
			assert.Contains(t, e.Details, "source=coffee.csv")
		}
	}
	assert.True(t, found, "import is recorded in the activity log")
}

func TestImport_Stdin(t *testing.T) {
	dir := newWorkspace(t)
	data, err := os.ReadFile(fixture("coffee.csv"))
	require.NoError(t, err)

	res, err := run(t, string(data), "import", "-", "--repo", dir, "--account", "checking")
	require.NoError(t, err, res.stderr)
	assert.Contains(t, res.stdout, "Imported 2 of 3 rows from stdin (1 skipped)")
}

func TestImport_Preset(t *testing.T) {
	dir := newWorkspace(t)

	out := mustRun(t, "import", fixture("chase_checking.csv"), "--repo", dir, "--account", "checking", "--preset", "chase", "--json")
	assert.Equal(t, 6, decode[ingest.Result](t, out).Imported)
	assert.Equal(t, "3194.55", accountBalance(t, dir, "checking"))

	_, err := run(t, "", "import", fixture("chase_checking.csv"), "--repo", dir, "--account", "checking", "--preset", "nope")
	assert.Error(t, err)
}

func TestImport_Mapping(t *testing.T) {
	dir := newWorkspace(t)
	path := filepath.Join(t.TempDir(), "odd.csv")
	require.NoError(t, os.WriteFile(path, []byte("When,What,Value\n2024-05-01,Wire,25.00\n"), 0o644))

	res, err := run(t, "", "import", path, "--repo", dir, "--account", "checking")
	require.Error(t, err)
	assert.Contains(t, res.stderr, "could not detect the column layout")
	assert.Contains(t, res.stderr, "When, What, Value")
	assert.Contains(t, res.stderr, "First rows")
	assert.Contains(t, res.stderr, "Wire")
	assert.Equal(t, "100.00", accountBalance(t, dir, "checking"))

	res, err = run(t, "", "import", path, "--repo", dir, "--account", "checking", "--json")
	require.Error(t, err)
	help := decode[struct {
		Source          string              `json:"source"`
		Error           string              `json:"error"`
		Headers         []string            `json:"headers"`
		DetectedMapping map[string]string   `json:"detectedMapping"`
		Confidence      map[string]float64  `json:"confidence"`
		Sample          []map[string]string `json:"sample"`
	}](t, res.stdout)
	assert.Equal(t, "odd.csv", help.Source)
	assert.NotEmpty(t, help.Error)
	assert.Equal(t, []string{"When", "What", "Value"}, help.Headers)
	assert.Equal(t, "When", help.DetectedMapping["date"])
	assert.Empty(t, help.DetectedMapping["description"])
	require.Len(t, help.Sample, 1)
	assert.Equal(t, "Wire", help.Sample[0]["What"])

	out := mustRun(t, "import", path, "--repo", dir, "--account", "checking", "--mapping", "date=When,description=What,amount=Value", "--json")
	assert.Equal(t, 1, decode[ingest.Result](t, out).Imported)
	assert.Equal(t, "125.00", accountBalance(t, dir, "checking"))
}

func TestImport_UnknownAccount(t *testing.T) {
	dir := newWorkspace(t)
	_, err := run(t, "", "import", fixture("coffee.csv"), "--repo", dir, "--account", "acct_missing")
	assert.Error(t, err)
}

func TestImport_Undo(t *testing.T) {
	dir := newWorkspace(t)
	res := decode[ingest.Result](t, mustRun(t, "import", fixture("coffee.csv"), "--repo", dir, "--account", "checking", "--json"))

	out := mustRun(t, "import", "undo", res.ImportID, "--repo", dir)
	assert.Contains(t, out, "Removed 2 transactions")
	assert.Equal(t, "100.00", accountBalance(t, dir, "checking"))

	_, err := run(t, "", "import", "undo", res.ImportID, "--repo", dir)
	assert.Error(t, err, "already undone")

	_, err = run(t, "", "import", "undo", "not-an-import", "--repo", dir)
	assert.Error(t, err)
}

func TestImport_Inbox(t *testing.T) {
	dir := newWorkspace(t)
	inbox := filepath.Join(dir, "import")
	copyFixture(t, "coffee.csv", inbox)
	copyFixture(t, "unlabeled.csv", inbox)
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "mystery.csv"), []byte("Foo,Bar\nx,y\n"), 0o644))

	res, err := run(t, "", "import", "inbox", "--repo", dir, "--account", "checking", "--json")
	require.Error(t, err, "one file cannot be mapped")

	results := decode[[]struct {
		File         string `json:"file"`
		Imported     int    `json:"imported"`
		Error        string `json:"error"`
		NeedsMapping *struct {
			Headers []string `json:"headers"`
		} `json:"needsMapping"`
	}](t, res.stdout)
	require.Len(t, results, 3)
	byFile := map[string]int{}
	for _, r := range results {
		if r.Error == "" {
			byFile[r.File] = r.Imported
			assert.Nil(t, r.NeedsMapping, r.File)
			continue
		}
		assert.Equal(t, "mystery.csv", r.File)
		require.NotNil(t, r.NeedsMapping)
		assert.Equal(t, []string{"Foo", "Bar"}, r.NeedsMapping.Headers)
	}
	assert.Equal(t, map[string]int{"coffee.csv": 2, "unlabeled.csv": 4}, byFile)

	for _, name := range []string{"coffee.csv", "unlabeled.csv"} {
		_, err := os.Stat(filepath.Join(inbox, "processed", name))
		assert.NoError(t, err, "%s moved to processed", name)
	}
	_, err = os.Stat(filepath.Join(inbox, "mystery.csv"))
	assert.NoError(t, err, "failed file stays in the inbox")

	// 100 + 1995.50 + 1250 - 42.17 - 9.99 + 310
	assert.Equal(t, "3603.34", accountBalance(t, dir, "checking"))
}

func TestImport_InboxEmpty(t *testing.T) {
	dir := newWorkspace(t)
	out := mustRun(t, "import", "inbox", "--repo", dir, "--account", "checking")
	assert.Contains(t, out, "No CSV files")
}
