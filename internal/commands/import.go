package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/activitylog"
	"github.com/cleared-dev/bankrec/internal/id"
	"github.com/cleared-dev/bankrec/internal/importer"
	"github.com/cleared-dev/bankrec/internal/ingest"
	"github.com/cleared-dev/bankrec/internal/logger"
	"github.com/cleared-dev/bankrec/internal/source"
)

type mappingFlags struct {
	accountID string
	preset    string
	spec      string
}

func (f *mappingFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.accountID, "account", "", "bank account ID (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&f.preset, "preset", "", "bank layout preset: "+strings.Join(importer.DefaultRegistry().Names(), ", "))
	cmd.Flags().StringVar(&f.spec, "mapping", "", `explicit mapping, e.g. "date=Posted,description=Memo,amount=Amount"`)
}

// resolveMapping picks --mapping, then --preset, then the account's
// configured preset. Nil means infer from the file.
func (f *mappingFlags) resolveMapping(ws *workspace) (*importer.ColumnMapping, error) {
	if f.spec != "" {
		m, err := importer.ParseMappingSpec(f.spec)
		if err != nil {
			return nil, err
		}
		return &m, nil
	}

	preset := f.preset
	if preset == "" {
		for _, a := range ws.cfg.BankAccounts {
			if a.ID == f.accountID {
				preset = a.Preset
			}
		}
	}
	if preset == "" {
		return nil, nil
	}

	reg := importer.DefaultRegistry()
	p, ok := reg.Get(preset)
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (known: %s)", preset, strings.Join(reg.Names(), ", "))
	}
	return &p.Mapping, nil
}

func newImportCommand(opts *globalOptions) *cobra.Command {
	var flags mappingFlags

	cmd := &cobra.Command{
		Use:   "import <file|gs://bucket/object|->",
		Short: "Import a bank CSV export into an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			mapping, err := flags.resolveMapping(ws)
			if err != nil {
				return err
			}

			doc, err := source.NewLoader(cmd.InOrStdin()).Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			res, importErr := importDocument(cmd, ws, doc, flags.accountID, mapping)
			if res.Imported > 0 {
				if err := ws.finish(cmd.Context(), fmt.Sprintf("import: %s into %s", doc.Name, flags.accountID)); err != nil {
					return err
				}
			}
			if importErr != nil {
				if help := newMappingHelp(importErr); help != nil {
					if opts.json {
						help.Source = doc.Name
						if err := printJSON(cmd.OutOrStdout(), help); err != nil {
							return err
						}
					} else {
						explainMapping(cmd.ErrOrStderr(), doc.Name, help)
					}
				}
				return importErr
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printImportResult(cmd.OutOrStdout(), doc.Name, res)
			return nil
		},
	}

	flags.register(cmd)
	cmd.AddCommand(newImportInboxCommand(opts), newImportUndoCommand(opts))

	return cmd
}

// importDocument runs one import and records it.
func importDocument(cmd *cobra.Command, ws *workspace, doc source.Document, accountID string, mapping *importer.ColumnMapping) (ingest.Result, error) {
	res, err := ws.ingest().Import(cmd.Context(), ingest.Request{
		Text:      doc.Text,
		AccountID: accountID,
		Mapping:   mapping,
		Source:    doc.Name,
	})
	if res.Imported > 0 {
		ws.record(activitylog.ActionImport, accountID, res.ImportID,
			fmt.Sprintf("source=%s imported=%d skipped=%d total=%d", doc.Name, res.Imported, res.Skipped, res.Total))
	}
	return res, err
}

// mappingHelp is what a caller needs to pick a mapping after detection failed.
type mappingHelp struct {
	Source          string                 `json:"source,omitempty"`
	Error           string                 `json:"error"`
	Headers         []string               `json:"headers"`
	DetectedMapping importer.ColumnMapping `json:"detectedMapping"`
	Confidence      importer.Confidence    `json:"confidence"`
	Sample          []importer.RawRow      `json:"sample"`
}

// newMappingHelp returns nil unless err is a NeedsMappingError.
func newMappingHelp(err error) *mappingHelp {
	var needs *ingest.NeedsMappingError
	if !errors.As(err, &needs) {
		return nil
	}
	return &mappingHelp{
		Error:           needs.Error(),
		Headers:         needs.Headers,
		DetectedMapping: needs.DetectedMapping,
		Confidence:      needs.Confidence,
		Sample:          needs.Sample,
	}
}

func explainMapping(w io.Writer, name string, help *mappingHelp) {
	fmt.Fprintf(w, "%s: could not detect the column layout.\n", name)
	fmt.Fprintf(w, "Headers: %s\n\n", strings.Join(help.Headers, ", "))
	printMapping(w, help.DetectedMapping, help.Confidence)
	if len(help.Sample) > 0 {
		fmt.Fprintln(w, "\nFirst rows:")
		tw := newTable(w)
		fmt.Fprintln(tw, strings.Join(help.Headers, "\t"))
		for _, row := range help.Sample {
			cells := make([]string, len(help.Headers))
			for i, h := range help.Headers {
				cells[i] = row[h]
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		tw.Flush()
	}
	fmt.Fprintln(w, "\nPass --preset or --mapping field=header,... and retry.")
}

func printImportResult(w io.Writer, name string, res ingest.Result) {
	fmt.Fprintf(w, "Imported %d of %d rows from %s (%d skipped), import %s\n",
		res.Imported, res.Total, name, res.Skipped, res.ImportID)
}

type inboxFileResult struct {
	File string `json:"file"`
	ingest.Result
	Error        string       `json:"error,omitempty"`
	NeedsMapping *mappingHelp `json:"needsMapping,omitempty"`
}

func newImportInboxCommand(opts *globalOptions) *cobra.Command {
	var flags mappingFlags

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Import every CSV in the workspace inbox and move it to processed/",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			mapping, err := flags.resolveMapping(ws)
			if err != nil {
				return err
			}

			inbox := ws.cfg.InboxPath(ws.root)
			files, err := importer.Scan(inbox)
			if err != nil {
				return err
			}

			log := logger.FromContext(cmd.Context())
			loader := source.NewLoader(nil)
			var results []inboxFileResult
			failed := 0
			for _, f := range files {
				r := inboxFileResult{File: f.Name}
				doc, err := loader.Load(cmd.Context(), f.Path)
				if err == nil {
					r.Result, err = importDocument(cmd, ws, doc, flags.accountID, mapping)
				}
				if err == nil {
					err = importer.MarkProcessed(inbox, f.Name)
				}
				if err != nil {
					failed++
					r.Error = err.Error()
					r.NeedsMapping = newMappingHelp(err)
					if r.NeedsMapping != nil && !opts.json {
						explainMapping(cmd.ErrOrStderr(), f.Name, r.NeedsMapping)
					}
					log.Warn().Err(err).Str("file", f.Name).Msg("inbox file not imported")
				}
				results = append(results, r)
			}

			if len(results) > 0 {
				if err := ws.finish(cmd.Context(), fmt.Sprintf("import: %d inbox files into %s", len(results)-failed, flags.accountID)); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if opts.json {
				if err := printJSON(out, results); err != nil {
					return err
				}
			} else if len(results) == 0 {
				fmt.Fprintf(out, "No CSV files in %s\n", inbox)
			} else {
				for _, r := range results {
					if r.Error != "" {
						fmt.Fprintf(out, "FAILED %s: %s\n", r.File, r.Error)
						continue
					}
					printImportResult(out, r.File, r.Result)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d inbox files failed", failed, len(results))
			}
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newImportUndoCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <importId>",
		Short: "Remove every transaction of an import batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !id.Is(args[0], id.Import) {
				return fmt.Errorf("%q is not an import ID", args[0])
			}

			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			res, err := ws.ingest().Undo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ws.record(activitylog.ActionImportUndo, res.AccountID, res.ImportID,
				fmt.Sprintf("deleted=%d net_change=%s", res.Deleted, money(res.NetChange)))
			if err := ws.finish(cmd.Context(), "import: Undo "+id.Short(res.ImportID)); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d transactions of %s, balance change %s reversed\n",
				res.Deleted, res.ImportID, money(res.NetChange))
			return nil
		},
	}
}
