// Package warehouse exports imported bank transactions to BigQuery.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/cleared-dev/bankrec/internal/config"
	"github.com/cleared-dev/bankrec/internal/model"
)

// DefaultTable is used when the config names a dataset but no table.
const DefaultTable = "bank_transactions"

const insertBatchSize = 500

// Table is the destination of an export.
type Table interface {
	Put(ctx context.Context, rows []*TransactionRow) error
	CountImport(ctx context.Context, importID string) (int64, error)
}

// ErrAlreadyExported is returned when the table already holds rows of the import.
var ErrAlreadyExported = errors.New("import already exported")

// Options control a single export.
type Options struct {
	Source string // original file name, recorded on every row
	Force  bool   // export even if the import already has rows in the table
}

// Result summarizes an export.
type Result struct {
	ImportID string `json:"importId"`
	Exported int    `json:"exported"`
	Batches  int    `json:"batches"`
}

// Exporter streams transactions to a Table.
type Exporter struct {
	table Table
	now   func() time.Time
	log   zerolog.Logger
}

// NewExporter creates an Exporter writing to table.
func NewExporter(table Table, log zerolog.Logger) *Exporter {
	return &Exporter{table: table, now: time.Now, log: log}
}

// Export writes the transactions of one import batch.
func (e *Exporter) Export(ctx context.Context, importID string, txns []model.BankTransaction, opts Options) (Result, error) {
	res := Result{ImportID: importID}
	if importID == "" {
		return res, errors.New("import id is required")
	}
	if len(txns) == 0 {
		return res, nil
	}

	if !opts.Force {
		n, err := e.table.CountImport(ctx, importID)
		if err != nil {
			return res, fmt.Errorf("checking existing rows: %w", err)
		}
		if n > 0 {
			return res, fmt.Errorf("%s has %d rows: %w", importID, n, ErrAlreadyExported)
		}
	}

	exportedAt := e.now()
	rows := make([]*TransactionRow, 0, len(txns))
	for _, t := range txns {
		if t.ImportID != importID {
			return res, fmt.Errorf("transaction %s belongs to import %s, not %s", t.ID, t.ImportID, importID)
		}
		rows = append(rows, ToRow(t, opts.Source, exportedAt))
	}

	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if err := e.table.Put(ctx, rows[start:end]); err != nil {
			return res, fmt.Errorf("inserting rows %d-%d: %w", start+1, end, err)
		}
		res.Exported += end - start
		res.Batches++
	}

	e.log.Info().
		Str("import_id", importID).
		Int("exported", res.Exported).
		Int("batches", res.Batches).
		Msg("import exported")
	return res, nil
}

// BigQueryTable is a Table backed by a BigQuery client.
type BigQueryTable struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
}

// Open connects to the table named in cfg. Credentials come from
// cfg.CredentialsFile when set, otherwise from Application Default Credentials.
func Open(ctx context.Context, cfg config.WarehouseConfig) (*BigQueryTable, error) {
	if cfg.Project == "" || cfg.Dataset == "" {
		return nil, errors.New("warehouse.project and warehouse.dataset must be set in bankrec.yaml")
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	return &BigQueryTable{client: client, project: cfg.Project, dataset: cfg.Dataset, table: table}, nil
}

// Close releases the client.
func (t *BigQueryTable) Close() error {
	return t.client.Close()
}

func (t *BigQueryTable) handle() *bigquery.Table {
	return t.client.DatasetInProject(t.project, t.dataset).Table(t.table)
}

// Ensure creates the table, partitioned by transaction date, if it does not exist.
func (t *BigQueryTable) Ensure(ctx context.Context) error {
	tbl := t.handle()
	_, err := tbl.Metadata(ctx)
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusNotFound {
		return fmt.Errorf("reading table metadata: %w", err)
	}

	schema, err := Schema()
	if err != nil {
		return fmt.Errorf("inferring schema: %w", err)
	}
	if err := tbl.Create(ctx, &bigquery.TableMetadata{
		Schema:           schema,
		TimePartitioning: &bigquery.TimePartitioning{Field: "transaction_date"},
	}); err != nil {
		return fmt.Errorf("creating table %s.%s: %w", t.dataset, t.table, err)
	}
	return nil
}

// Put streams rows into the table.
func (t *BigQueryTable) Put(ctx context.Context, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := t.handle().Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("streaming insert: %w", err)
	}
	return nil
}

// CountImport returns how many rows of importID the table holds.
func (t *BigQueryTable) CountImport(ctx context.Context, importID string) (int64, error) {
	q := t.client.Query(fmt.Sprintf(
		"SELECT COUNT(*) AS n FROM `%s.%s.%s` WHERE import_id = @import_id",
		t.project, t.dataset, t.table,
	))
	q.Parameters = []bigquery.QueryParameter{{Name: "import_id", Value: importID}}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	var row struct {
		N int64 `bigquery:"n"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return row.N, nil
}
