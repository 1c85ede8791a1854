package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/activitylog"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/warehouse"
)

func newExportCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export transactions to external systems",
	}
	cmd.AddCommand(newExportBigQueryCommand(opts))
	return cmd
}

func newExportBigQueryCommand(opts *globalOptions) *cobra.Command {
	var (
		importID string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "bigquery",
		Short: "Stream an import batch to the configured BigQuery table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			txns, err := ws.store.QueryTransactions(cmd.Context(), store.TransactionFilter{ImportID: importID})
			if err != nil {
				return fmt.Errorf("loading import: %w", err)
			}
			if len(txns) == 0 {
				return fmt.Errorf("import %s: %w", importID, store.ErrNotFound)
			}

			table, err := warehouse.Open(cmd.Context(), ws.cfg.Warehouse)
			if err != nil {
				return err
			}
			defer table.Close()
			if err := table.Ensure(cmd.Context()); err != nil {
				return err
			}

			res, err := warehouse.NewExporter(table, ws.log).Export(cmd.Context(), importID, txns, warehouse.Options{
				Source: importSource(ws.root, importID),
				Force:  force,
			})
			if res.Exported > 0 {
				ws.record(activitylog.ActionExport, txns[0].BankAccountID, importID,
					fmt.Sprintf("target=bigquery exported=%d", res.Exported))
			}
			if err != nil {
				return err
			}
			if err := ws.finish(cmd.Context(), "export: "+importID+" to bigquery"); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transactions of %s to BigQuery\n", res.Exported, importID)
			return nil
		},
	}

	cmd.Flags().StringVar(&importID, "import", "", "import batch ID (required)")
	_ = cmd.MarkFlagRequired("import")
	cmd.Flags().BoolVar(&force, "force", false, "export even if the table already has rows of this import")

	return cmd
}

// importSource looks up the file name an import was recorded with in the activity log.
func importSource(root, importID string) string {
	entries, err := activitylog.Read(root)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.Action != activitylog.ActionImport || e.RecordID != importID {
			continue
		}
		for _, kv := range strings.Fields(e.Details) {
			if v, ok := strings.CutPrefix(kv, "source="); ok {
				return v
			}
		}
	}
	return ""
}
