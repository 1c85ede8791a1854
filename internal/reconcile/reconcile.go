// Package reconcile matches an account's cleared transactions against a
// bank statement balance.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/id"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// DefaultTolerance is the largest |difference| that still lets a reconciliation complete.
var DefaultTolerance = decimal.New(1, -2)

// ValidationError is a client-correctable refusal, such as completing
// with an out-of-tolerance difference.
type ValidationError struct {
	Message    string
	Difference decimal.Decimal // residual statement minus cleared balance, when completion is blocked
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Options tunes the engine.
type Options struct {
	// Tolerance gates completion. Zero means DefaultTolerance.
	Tolerance decimal.Decimal
	Now       func() time.Time
}

// Service runs reconciliation sessions against a store.
type Service struct {
	store     store.Store
	tolerance decimal.Decimal
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a reconciliation Service.
func NewService(s store.Store, opts Options, log zerolog.Logger) *Service {
	if opts.Tolerance.IsZero() {
		opts.Tolerance = DefaultTolerance
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: s, tolerance: opts.Tolerance.Abs(), now: opts.Now, log: log}
}

// Balances are the figures recomputed after every toggle.
type Balances struct {
	ClearedBalance decimal.Decimal `json:"clearedBalance"`
	Difference     decimal.Decimal `json:"difference"`
}

// ClearedBalance returns opening plus the signed sum of txns.
func ClearedBalance(opening decimal.Decimal, txns []model.BankTransaction) decimal.Decimal {
	total := opening
	for _, t := range txns {
		total = total.Add(t.Signed())
	}
	return total
}

// Start opens a reconciliation for accountID. The opening balance is the
// account's last reconciled balance.
func (s *Service) Start(ctx context.Context, accountID string, statementDate time.Time, statementBalance decimal.Decimal) (model.Reconciliation, error) {
	if accountID == "" {
		return model.Reconciliation{}, &ValidationError{Message: "bank account is required"}
	}
	if statementDate.IsZero() {
		return model.Reconciliation{}, &ValidationError{Message: "statement date is required"}
	}

	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return model.Reconciliation{}, fmt.Errorf("loading bank account: %w", err)
	}

	opening := acct.LastReconciledBalance
	r := model.Reconciliation{
		ID:               id.New(id.Reconciliation),
		BankAccountID:    accountID,
		StatementDate:    statementDate,
		StatementBalance: statementBalance,
		OpeningBalance:   opening,
		ClearedBalance:   opening,
		Difference:       statementBalance.Sub(opening),
		Status:           model.ReconciliationInProgress,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.CreateReconciliation(ctx, r); err != nil {
		return model.Reconciliation{}, fmt.Errorf("creating reconciliation: %w", err)
	}

	s.log.Info().
		Str("reconciliation_id", r.ID).
		Str("account_id", accountID).
		Str("opening_balance", opening.StringFixed(2)).
		Str("statement_balance", statementBalance.StringFixed(2)).
		Msg("reconciliation started")
	return r, nil
}

// Toggle claims txnID for the reconciliation, or releases it if already
// claimed, then recomputes the balances from the full claimed set.
func (s *Service) Toggle(ctx context.Context, reconciliationID, txnID string) (Balances, error) {
	var bal Balances
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		r, err := openReconciliation(ctx, tx, reconciliationID)
		if err != nil {
			return err
		}

		t, err := tx.GetTransaction(ctx, txnID)
		if err != nil {
			return fmt.Errorf("loading transaction: %w", err)
		}
		if t.BankAccountID != r.BankAccountID {
			return fmt.Errorf("transaction %s: %w", txnID, store.ErrNotFound)
		}
		if t.IsReconciled {
			return &ValidationError{Message: fmt.Sprintf("transaction %s is already reconciled", txnID)}
		}
		// Only a claim held by another open session may move.
		if t.ReconciliationID != "" && t.ReconciliationID != r.ID {
			owner, err := tx.GetReconciliation(ctx, t.ReconciliationID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("loading claiming reconciliation: %w", err)
			}
			if err == nil && !owner.Open() {
				return &ValidationError{Message: fmt.Sprintf("transaction %s belongs to completed reconciliation %s", txnID, owner.ID)}
			}
		}

		claim := r.ID
		if t.ReconciliationID == r.ID {
			claim = ""
		}
		if _, err := tx.UpdateTransactions(ctx, store.TransactionFilter{ID: t.ID}, store.TransactionUpdate{
			ReconciliationID: &claim,
			IsReconciled:     store.Bool(false),
		}); err != nil {
			return fmt.Errorf("updating transaction: %w", err)
		}

		if r, err = recompute(ctx, tx, r); err != nil {
			return err
		}
		if err := tx.UpdateReconciliation(ctx, r); err != nil {
			return fmt.Errorf("saving reconciliation: %w", err)
		}
		bal = Balances{ClearedBalance: r.ClearedBalance, Difference: r.Difference}

		s.log.Debug().
			Str("reconciliation_id", r.ID).
			Str("transaction_id", t.ID).
			Bool("claimed", claim != "").
			Str("difference", r.Difference.StringFixed(2)).
			Msg("transaction toggled")
		return nil
	})
	if err != nil {
		return Balances{}, err
	}
	return bal, nil
}

// Complete closes the reconciliation when its recomputed difference is
// within tolerance. Claimed transactions become reconciled and the account's
// last reconciled date and balance advance to the statement.
func (s *Service) Complete(ctx context.Context, reconciliationID string) (model.Reconciliation, error) {
	var done model.Reconciliation
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		r, err := openReconciliation(ctx, tx, reconciliationID)
		if err != nil {
			return err
		}
		if r, err = recompute(ctx, tx, r); err != nil {
			return err
		}

		if r.Difference.Abs().GreaterThan(s.tolerance) {
			return &ValidationError{
				Message: fmt.Sprintf("cannot complete reconciliation: difference of $%s must be within $%s",
					r.Difference.StringFixed(2), s.tolerance.StringFixed(2)),
				Difference: r.Difference,
			}
		}

		if _, err := tx.UpdateTransactions(ctx,
			store.TransactionFilter{ReconciliationID: r.ID},
			store.TransactionUpdate{IsReconciled: store.Bool(true)},
		); err != nil {
			return fmt.Errorf("marking transactions reconciled: %w", err)
		}

		r.Status = model.ReconciliationCompleted
		r.CompletedAt = s.now().UTC()
		r.Difference = decimal.Zero
		if err := tx.UpdateReconciliation(ctx, r); err != nil {
			return fmt.Errorf("saving reconciliation: %w", err)
		}
		if err := tx.SetLastReconciled(ctx, r.BankAccountID, r.StatementDate, r.StatementBalance); err != nil {
			return fmt.Errorf("advancing bank account: %w", err)
		}
		done = r
		return nil
	})
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			s.log.Info().
				Str("reconciliation_id", reconciliationID).
				Str("difference", verr.Difference.StringFixed(2)).
				Msg("completion refused")
		}
		return model.Reconciliation{}, err
	}

	s.log.Info().
		Str("reconciliation_id", done.ID).
		Str("account_id", done.BankAccountID).
		Str("statement_balance", done.StatementBalance.StringFixed(2)).
		Msg("reconciliation completed")
	return done, nil
}

// Delete unclaims every transaction of the reconciliation and removes it.
// The account's last reconciled fields are left as they are.
func (s *Service) Delete(ctx context.Context, reconciliationID string) error {
	var unlinked int
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		r, err := tx.GetReconciliation(ctx, reconciliationID)
		if err != nil {
			return fmt.Errorf("loading reconciliation: %w", err)
		}

		unlinked, err = tx.UpdateTransactions(ctx,
			store.TransactionFilter{ReconciliationID: r.ID},
			store.TransactionUpdate{ReconciliationID: store.String(""), IsReconciled: store.Bool(false)},
		)
		if err != nil {
			return fmt.Errorf("unlinking transactions: %w", err)
		}
		if err := tx.DeleteReconciliation(ctx, r.ID); err != nil {
			return fmt.Errorf("deleting reconciliation: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("reconciliation_id", reconciliationID).
		Int("unlinked", unlinked).
		Msg("reconciliation deleted")
	return nil
}

// Get returns a reconciliation by ID.
func (s *Service) Get(ctx context.Context, reconciliationID string) (model.Reconciliation, error) {
	r, err := s.store.GetReconciliation(ctx, reconciliationID)
	if err != nil {
		return model.Reconciliation{}, fmt.Errorf("loading reconciliation: %w", err)
	}
	return r, nil
}

// List returns the account's reconciliations by statement date. An empty accountID lists all.
func (s *Service) List(ctx context.Context, accountID string) ([]model.Reconciliation, error) {
	rs, err := s.store.ListReconciliations(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing reconciliations: %w", err)
	}
	return rs, nil
}

func openReconciliation(ctx context.Context, tx store.Store, reconciliationID string) (model.Reconciliation, error) {
	r, err := tx.GetReconciliation(ctx, reconciliationID)
	if err != nil {
		return model.Reconciliation{}, fmt.Errorf("loading reconciliation: %w", err)
	}
	if !r.Open() {
		return model.Reconciliation{}, &ValidationError{Message: fmt.Sprintf("reconciliation %s is %s", r.ID, r.Status)}
	}
	return r, nil
}

func recompute(ctx context.Context, tx store.Store, r model.Reconciliation) (model.Reconciliation, error) {
	claimed, err := tx.QueryTransactions(ctx, store.TransactionFilter{ReconciliationID: r.ID})
	if err != nil {
		return model.Reconciliation{}, fmt.Errorf("loading cleared transactions: %w", err)
	}
	r.ClearedBalance = ClearedBalance(r.OpeningBalance, claimed)
	r.Difference = r.StatementBalance.Sub(r.ClearedBalance)
	return r, nil
}
