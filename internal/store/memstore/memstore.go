// Package memstore is an in-memory store.Store for tests and throwaway workspaces.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

type txnRecord struct {
	seq int
	txn model.BankTransaction
}

type state struct {
	accounts        map[string]model.BankAccount
	txns            map[string]txnRecord
	reconciliations map[string]model.Reconciliation
	seq             int
}

func (s *state) clone() *state {
	return &state{
		accounts:        maps.Clone(s.accounts),
		txns:            maps.Clone(s.txns),
		reconciliations: maps.Clone(s.reconciliations),
		seq:             s.seq,
	}
}

// Store keeps everything in maps guarded by a mutex.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex // serializes RunInTx
	st   *state
	now  func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		st: &state{
			accounts:        make(map[string]model.BankAccount),
			txns:            make(map[string]txnRecord),
			reconciliations: make(map[string]model.Reconciliation),
		},
		now: time.Now,
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// RunInTx snapshots the state, runs fn, and restores the snapshot if fn fails.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(&txStore{Store: s}); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// txStore joins the running transaction instead of starting a new one.
type txStore struct {
	*Store
}

func (t *txStore) RunInTx(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (s *Store) CreateAccount(ctx context.Context, a model.BankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.accounts[a.ID]; ok {
		return fmt.Errorf("account %s already exists", a.ID)
	}
	if _, err := store.Cents(a.CurrentBalance); err != nil {
		return fmt.Errorf("account %s balance: %w", a.ID, err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	s.st.accounts[a.ID] = a
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (model.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.st.accounts[id]
	if !ok {
		return model.BankAccount{}, fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]model.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.BankAccount, 0, len(s.st.accounts))
	for _, a := range s.st.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.st.accounts[id]
	if !ok {
		return fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	if _, err := store.Cents(delta); err != nil {
		return fmt.Errorf("adjusting balance of %s: %w", id, err)
	}
	balance := a.CurrentBalance.Add(delta)
	if _, err := store.Cents(balance); err != nil {
		return fmt.Errorf("adjusting balance of %s by %s: %w", id, delta.String(), err)
	}
	a.CurrentBalance = balance
	s.st.accounts[id] = a
	return nil
}

func (s *Store) SetLastReconciled(ctx context.Context, id string, date time.Time, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.st.accounts[id]
	if !ok {
		return fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	a.LastReconciledDate = date
	a.LastReconciledBalance = balance
	s.st.accounts[id] = a
	return nil
}

func (s *Store) InsertTransactions(ctx context.Context, txns []model.BankTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(txns))
	for _, t := range txns {
		if _, ok := s.st.txns[t.ID]; ok || seen[t.ID] {
			return fmt.Errorf("transaction %s already exists", t.ID)
		}
		if _, ok := s.st.accounts[t.BankAccountID]; !ok {
			return fmt.Errorf("transaction %s: account %s: %w", t.ID, t.BankAccountID, store.ErrNotFound)
		}
		if _, err := store.Cents(t.Amount); err != nil {
			return fmt.Errorf("inserting transaction %s: %w", t.ID, err)
		}
		seen[t.ID] = true
	}

	now := s.now().UTC()
	for _, t := range txns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		s.st.seq++
		s.st.txns[t.ID] = txnRecord{seq: s.st.seq, txn: t}
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (model.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.st.txns[id]
	if !ok {
		return model.BankTransaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return rec.txn, nil
}

func (s *Store) QueryTransactions(ctx context.Context, f store.TransactionFilter) ([]model.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recs []txnRecord
	for _, rec := range s.st.txns {
		if f.Match(rec.txn) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].txn.Date != recs[j].txn.Date {
			return recs[i].txn.Date < recs[j].txn.Date
		}
		return recs[i].seq < recs[j].seq
	})

	out := make([]model.BankTransaction, len(recs))
	for i, rec := range recs {
		out[i] = rec.txn
	}
	return out, nil
}

func (s *Store) UpdateTransactions(ctx context.Context, f store.TransactionFilter, u store.TransactionUpdate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, rec := range s.st.txns {
		if !f.Match(rec.txn) {
			continue
		}
		rec.txn = u.Apply(rec.txn)
		s.st.txns[id] = rec
		n++
	}
	return n, nil
}

func (s *Store) DeleteTransactions(ctx context.Context, f store.TransactionFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, rec := range s.st.txns {
		if f.Match(rec.txn) {
			delete(s.st.txns, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateReconciliation(ctx context.Context, r model.Reconciliation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.reconciliations[r.ID]; ok {
		return fmt.Errorf("reconciliation %s already exists", r.ID)
	}
	if _, ok := s.st.accounts[r.BankAccountID]; !ok {
		return fmt.Errorf("reconciliation %s: account %s: %w", r.ID, r.BankAccountID, store.ErrNotFound)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	s.st.reconciliations[r.ID] = r
	return nil
}

func (s *Store) GetReconciliation(ctx context.Context, id string) (model.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.st.reconciliations[id]
	if !ok {
		return model.Reconciliation{}, fmt.Errorf("reconciliation %s: %w", id, store.ErrNotFound)
	}
	return r, nil
}

func (s *Store) ListReconciliations(ctx context.Context, accountID string) ([]model.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Reconciliation
	for _, r := range s.st.reconciliations {
		if accountID == "" || r.BankAccountID == accountID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StatementDate.Equal(out[j].StatementDate) {
			return out[i].StatementDate.Before(out[j].StatementDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateReconciliation(ctx context.Context, r model.Reconciliation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.reconciliations[r.ID]; !ok {
		return fmt.Errorf("reconciliation %s: %w", r.ID, store.ErrNotFound)
	}
	s.st.reconciliations[r.ID] = r
	return nil
}

func (s *Store) DeleteReconciliation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.reconciliations[id]; !ok {
		return fmt.Errorf("reconciliation %s: %w", id, store.ErrNotFound)
	}
	delete(s.st.reconciliations, id)
	return nil
}

var _ store.Store = (*Store)(nil)
