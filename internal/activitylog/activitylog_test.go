package activitylog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp: testTime,
		Action:    ActionImport,
		AccountID: "acct_1",
		RecordID:  "imp_1",
		Details:   "imported=2, skipped=1, total=3",
	}
}

func TestAppend_NewFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	data, err := os.ReadFile(filepath.Join(dir, "logs", "activity-log.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), Header+"\n"))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testEntry(), entries[0])
}

func TestAppend_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	e2 := testEntry()
	e2.Action = ActionReconcileStart
	e2.RecordID = "rec_1"
	require.NoError(t, Append(dir, []Entry{e2}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionImport, entries[0].Action)
	assert.Equal(t, ActionReconcileStart, entries[1].Action)

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), Header), "header written once")
}

func TestRead_Missing(t *testing.T) {
	entries, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRead_Malformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0o755))
	require.NoError(t, os.WriteFile(Path(dir), []byte(Header+"\nyesterday,import,a,b,c\n"), 0o644))

	_, err := Read(dir)
	assert.Error(t, err)
}

func TestUnmarshalEntry_WrongFieldCount(t *testing.T) {
	_, err := UnmarshalEntry([]string{"a", "b"})
	assert.Error(t, err)
}

func TestMarshalEntry_QuotesCommas(t *testing.T) {
	dir := t.TempDir()
	e := testEntry()
	e.Details = `statement "Jan", balance 1,250.00`
	require.NoError(t, Append(dir, []Entry{e}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, e.Details, entries[0].Details)
}

func TestRecorder(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, true)
	r.now = func() time.Time { return testTime }

	require.NoError(t, r.Record(ActionReconcileComplete, "acct_1", "rec_1", "statement_balance=10.00"))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{
		Timestamp: testTime,
		Action:    ActionReconcileComplete,
		AccountID: "acct_1",
		RecordID:  "rec_1",
		Details:   "statement_balance=10.00",
	}, entries[0])
}

func TestRecorder_Disabled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewRecorder(dir, false).Record(ActionImport, "a", "b", "c"))

	var nilRecorder *Recorder
	require.NoError(t, nilRecorder.Record(ActionImport, "a", "b", "c"))

	_, err := os.Stat(Path(dir))
	assert.True(t, os.IsNotExist(err))
}
