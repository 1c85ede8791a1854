package commands

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/accounts"
	"github.com/cleared-dev/bankrec/internal/activitylog"
)

func newAccountsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage bank accounts",
	}
	cmd.AddCommand(
		newAccountsAddCommand(opts),
		newAccountsListCommand(opts),
		newAccountsLoadCommand(opts),
	)
	return cmd
}

func newAccountsAddCommand(opts *globalOptions) *cobra.Command {
	var (
		name    string
		acctID  string
		opening string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a bank account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			balance := decimal.Zero
			if opening != "" {
				var err error
				if balance, err = parseMoney("opening-balance", opening); err != nil {
					return err
				}
			}

			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			acct, err := ws.accounts().Create(cmd.Context(), accounts.CreateRequest{ID: acctID, Name: name, OpeningBalance: balance})
			if err != nil {
				return err
			}
			ws.record(activitylog.ActionAccountCreate, acct.ID, acct.ID, acct.Name)
			if err := ws.finish(cmd.Context(), "accounts: Add "+acct.Name); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), acct)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s) with balance %s\n", acct.ID, acct.Name, money(acct.CurrentBalance))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "account name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&acctID, "id", "", "account ID (generated when empty)")
	cmd.Flags().StringVar(&opening, "opening-balance", "", "balance before the first import")

	return cmd
}

func newAccountsListCommand(opts *globalOptions) *cobra.Command {
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bank accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			accts, err := ws.accounts().List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case opts.json:
				return printJSON(out, accts)
			case asCSV:
				return accounts.WriteAccounts(out, accts)
			}

			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tNAME\tBALANCE\tLAST RECONCILED\tRECONCILED BALANCE")
			for _, a := range accts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					a.ID, a.Name, money(a.CurrentBalance), formatDate(a.LastReconciledDate), money(a.LastReconciledBalance))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asCSV, "csv", false, "print as CSV")

	return cmd
}

func newAccountsLoadCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <accounts.csv>",
		Short: "Create bank accounts from a CSV written by accounts list --csv",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			created, err := ws.accounts().Load(cmd.Context(), f)
			if err != nil {
				return err
			}
			for _, a := range created {
				ws.record(activitylog.ActionAccountCreate, a.ID, a.ID, a.Name)
			}
			if err := ws.finish(cmd.Context(), fmt.Sprintf("accounts: Load %d accounts", len(created))); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d accounts\n", len(created))
			return nil
		},
	}
}
