package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/activitylog"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/reconcile"
)

func newReconcileCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile a bank account against a statement",
	}
	cmd.AddCommand(
		newReconcileStartCommand(opts),
		newReconcileToggleCommand(opts),
		newReconcileCompleteCommand(opts),
		newReconcileDeleteCommand(opts),
		newReconcileShowCommand(opts),
		newReconcileListCommand(opts),
	)
	return cmd
}

func newReconcileStartCommand(opts *globalOptions) *cobra.Command {
	var (
		accountID string
		date      string
		balance   string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start reconciling an account against a statement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statementDate, err := parseDate(date)
			if err != nil {
				return err
			}
			statementBalance, err := parseMoney("statement-balance", balance)
			if err != nil {
				return err
			}

			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			r, err := ws.reconcile().Start(cmd.Context(), accountID, statementDate, statementBalance)
			if err != nil {
				return err
			}
			ws.record(activitylog.ActionReconcileStart, r.BankAccountID, r.ID,
				fmt.Sprintf("statement_date=%s statement_balance=%s", formatDate(r.StatementDate), money(r.StatementBalance)))
			if err := ws.finish(cmd.Context(), fmt.Sprintf("reconcile: Start %s statement %s", accountID, formatDate(r.StatementDate))); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), r)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Started %s\n", r.ID)
			printSummary(out, r)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "bank account ID (required)")
	cmd.Flags().StringVar(&date, "statement-date", "", "statement closing date (required)")
	cmd.Flags().StringVar(&balance, "statement-balance", "", "statement closing balance (required)")
	for _, f := range []string{"account", "statement-date", "statement-balance"} {
		_ = cmd.MarkFlagRequired(f)
	}

	return cmd
}

func newReconcileToggleCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <reconciliationId> <transactionId>...",
		Short: "Mark transactions cleared, or unmark them if already cleared",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			svc := ws.reconcile()
			r, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			recID := r.ID
			var bal reconcile.Balances
			var toggleErr error
			toggled := 0
			for _, txnID := range args[1:] {
				if bal, toggleErr = svc.Toggle(cmd.Context(), recID, txnID); toggleErr != nil {
					toggleErr = fmt.Errorf("toggling %s: %w", txnID, toggleErr)
					break
				}
				toggled++
				ws.record(activitylog.ActionReconcileToggle, r.BankAccountID, recID, "transaction="+txnID)
			}
			if toggled > 0 {
				if err := ws.finish(cmd.Context(), fmt.Sprintf("reconcile: Toggle %d transactions", toggled)); err != nil {
					return err
				}
			}
			if toggleErr != nil {
				return toggleErr
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), bal)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared balance %s, difference %s\n", money(bal.ClearedBalance), money(bal.Difference))
			return nil
		},
	}
}

func newReconcileCompleteCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <reconciliationId>",
		Short: "Complete a reconciliation whose difference is within tolerance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			r, err := ws.reconcile().Complete(cmd.Context(), args[0])
			if err != nil {
				var verr *reconcile.ValidationError
				if errors.As(err, &verr) && !verr.Difference.IsZero() {
					fmt.Fprintf(cmd.ErrOrStderr(), "Run bankrec reconcile show %s to review cleared transactions.\n", args[0])
				}
				return err
			}
			ws.record(activitylog.ActionReconcileComplete, r.BankAccountID, r.ID,
				fmt.Sprintf("statement_balance=%s", money(r.StatementBalance)))
			if err := ws.finish(cmd.Context(), fmt.Sprintf("reconcile: Complete %s statement %s", r.BankAccountID, formatDate(r.StatementDate))); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), r)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completed %s: %s reconciled to %s on %s\n",
				r.ID, r.BankAccountID, money(r.StatementBalance), formatDate(r.StatementDate))
			return nil
		},
	}
}

func newReconcileDeleteCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <reconciliationId>",
		Short: "Delete a reconciliation and unclear its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			svc := ws.reconcile()
			r, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := svc.Delete(cmd.Context(), r.ID); err != nil {
				return err
			}
			ws.record(activitylog.ActionReconcileDelete, r.BankAccountID, r.ID, "status="+string(r.Status))
			if err := ws.finish(cmd.Context(), "reconcile: Delete "+r.ID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", r.ID)
			return nil
		},
	}
}

func newReconcileShowCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <reconciliationId>",
		Short: "Show a reconciliation with its cleared and open transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			rep, err := ws.reconcile().Report(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, rep)
			}

			r := rep.Reconciliation
			fmt.Fprintf(out, "%s  %s (%s)  %s\n", r.ID, rep.Account.Name, rep.Account.ID, r.Status)
			printSummary(out, r)

			credits, debits := rep.Counts()
			fmt.Fprintf(out, "\nCleared (%d credits, %d debits)\n", credits, debits)
			printTransactions(out, rep.Cleared)
			if r.Open() {
				fmt.Fprintf(out, "\nNot cleared (%d)\n", len(rep.Candidates))
				printTransactions(out, rep.Candidates)
			}
			return nil
		},
	}
}

func newReconcileListCommand(opts *globalOptions) *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reconciliations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			rs, err := ws.reconcile().List(cmd.Context(), accountID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, rs)
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tACCOUNT\tSTATEMENT DATE\tSTATEMENT BALANCE\tDIFFERENCE\tSTATUS")
			for _, r := range rs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.BankAccountID, formatDate(r.StatementDate), money(r.StatementBalance), money(r.Difference), r.Status)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "only this bank account")

	return cmd
}

func printSummary(w io.Writer, r model.Reconciliation) {
	tw := newTable(w)
	fmt.Fprintf(tw, "  Statement date\t%s\n", formatDate(r.StatementDate))
	fmt.Fprintf(tw, "  Opening balance\t%s\n", money(r.OpeningBalance))
	fmt.Fprintf(tw, "  Cleared balance\t%s\n", money(r.ClearedBalance))
	fmt.Fprintf(tw, "  Statement balance\t%s\n", money(r.StatementBalance))
	fmt.Fprintf(tw, "  Difference\t%s\n", money(r.Difference))
	tw.Flush()
}

func printTransactions(w io.Writer, txns []model.BankTransaction) {
	if len(txns) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	tw := newTable(w)
	for _, t := range txns {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", t.ID, t.Date, money(t.Signed()), t.Description)
	}
	tw.Flush()
}
