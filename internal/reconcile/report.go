package reconcile

import (
	"context"
	"fmt"

	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// Report is a reconciliation with its cleared transactions and the
// account's remaining unreconciled candidates.
type Report struct {
	Reconciliation model.Reconciliation
	Account        model.BankAccount
	Cleared        []model.BankTransaction
	Candidates     []model.BankTransaction
}

// Counts returns how many cleared transactions are credits and debits.
func (r Report) Counts() (credits, debits int) {
	for _, t := range r.Cleared {
		if t.Type == model.TypeCredit {
			credits++
		} else {
			debits++
		}
	}
	return credits, debits
}

// Report loads a reconciliation and the transactions around it.
func (s *Service) Report(ctx context.Context, reconciliationID string) (Report, error) {
	r, err := s.store.GetReconciliation(ctx, reconciliationID)
	if err != nil {
		return Report{}, fmt.Errorf("loading reconciliation: %w", err)
	}
	acct, err := s.store.GetAccount(ctx, r.BankAccountID)
	if err != nil {
		return Report{}, fmt.Errorf("loading bank account: %w", err)
	}

	cleared, err := s.store.QueryTransactions(ctx, store.TransactionFilter{ReconciliationID: r.ID})
	if err != nil {
		return Report{}, fmt.Errorf("loading cleared transactions: %w", err)
	}

	rep := Report{Reconciliation: r, Account: acct, Cleared: cleared}
	if !r.Open() {
		return rep, nil
	}

	open, err := s.store.QueryTransactions(ctx, store.TransactionFilter{
		AccountID:    r.BankAccountID,
		IsReconciled: store.Bool(false),
	})
	if err != nil {
		return Report{}, fmt.Errorf("loading candidates: %w", err)
	}
	for _, t := range open {
		if t.ReconciliationID != r.ID {
			rep.Candidates = append(rep.Candidates, t)
		}
	}
	return rep, nil
}
