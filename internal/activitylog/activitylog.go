// Package activitylog keeps an append-only CSV audit trail of imports and
// reconciliation changes in the workspace.
package activitylog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Action names one kind of recorded change.
type Action string

const (
	ActionAccountCreate     Action = "account_create"
	ActionImport            Action = "import"
	ActionImportUndo        Action = "import_undo"
	ActionReconcileStart    Action = "reconcile_start"
	ActionReconcileToggle   Action = "reconcile_toggle"
	ActionReconcileComplete Action = "reconcile_complete"
	ActionReconcileDelete   Action = "reconcile_delete"
	ActionExport            Action = "export"
)

// Entry is one row in the activity log.
type Entry struct {
	Timestamp time.Time
	Action    Action
	AccountID string
	RecordID  string // import, reconciliation, or transaction ID
	Details   string
}

// Header is the CSV header for activity-log.csv.
const Header = "timestamp,action,account_id,record_id,details"

const (
	numFields    = 5
	logDir       = "logs"
	logFile      = "activity-log.csv"
	colTimestamp = 0
	colAction    = 1
	colAccountID = 2
	colRecordID  = 3
	colDetails   = 4
)

// Path returns the activity log location under repoRoot.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, logDir, logFile)
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colAction] = string(e.Action)
	row[colAccountID] = e.AccountID
	row[colRecordID] = e.RecordID
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp: ts,
		Action:    Action(record[colAction]),
		AccountID: record[colAccountID],
		RecordID:  record[colRecordID],
		Details:   record[colDetails],
	}, nil
}

// Append writes entries to <repoRoot>/logs/activity-log.csv, creating the file and header if needed.
func Append(repoRoot string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Join(repoRoot, logDir), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := Path(repoRoot)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <repoRoot>/logs/activity-log.csv.
// Returns an empty slice if the file does not exist.
func Read(repoRoot string) ([]Entry, error) {
	f, err := os.Open(Path(repoRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading activity log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Recorder appends entries for one workspace. A disabled Recorder drops them.
type Recorder struct {
	repoRoot string
	enabled  bool
	now      func() time.Time
}

// NewRecorder creates a Recorder for repoRoot.
func NewRecorder(repoRoot string, enabled bool) *Recorder {
	return &Recorder{repoRoot: repoRoot, enabled: enabled, now: time.Now}
}

// Record appends a single entry stamped with the current time.
func (r *Recorder) Record(action Action, accountID, recordID, details string) error {
	if r == nil || !r.enabled {
		return nil
	}
	return Append(r.repoRoot, []Entry{{
		Timestamp: r.now(),
		Action:    action,
		AccountID: accountID,
		RecordID:  recordID,
		Details:   details,
	}})
}
