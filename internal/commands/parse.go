package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/importer"
	"github.com/cleared-dev/bankrec/internal/source"
)

type parseOutput struct {
	Source string `json:"source"`
	importer.ParseResult
	Rows   int  `json:"rows"`
	Usable bool `json:"usable"`
}

func newParseCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file|gs://bucket/object|->",
		Short: "Show the headers and detected column mapping of a bank CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			doc, err := source.NewLoader(cmd.InOrStdin()).Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			res := importer.ParseCSV(doc.Text, ws.detectOptions())
			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, parseOutput{
					Source:      doc.Name,
					ParseResult: res,
					Rows:        len(res.Rows),
					Usable:      res.DetectedMapping.Usable(),
				})
			}

			fmt.Fprintf(out, "%s: %d rows\n", doc.Name, len(res.Rows))
			fmt.Fprintf(out, "Headers: %s\n\n", strings.Join(res.Headers, ", "))
			printMapping(out, res.DetectedMapping, res.Confidence)
			if !res.DetectedMapping.Usable() {
				fmt.Fprintln(out, "\nNo usable mapping: pass --preset or --mapping to import.")
			}
			return nil
		},
	}
}
