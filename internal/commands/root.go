package commands

import (
	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/buildinfo"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	repoDir string
	json    bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "bankrec",
		Short:   "Bank statement import and reconciliation",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.repoDir, "repo", ".", "workspace directory")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "print results as JSON")

	rootCmd.AddCommand(
		newInitCommand(),
		newAccountsCommand(opts),
		newParseCommand(opts),
		newImportCommand(opts),
		newReconcileCommand(opts),
		newExportCommand(opts),
	)

	return rootCmd
}
