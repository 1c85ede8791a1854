// Package accounts manages the bank accounts transactions are imported into.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/config"
	"github.com/cleared-dev/bankrec/internal/id"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// SnapshotFile is the workspace-relative CSV copy of the account list.
const SnapshotFile = "accounts/bank-accounts.csv"

// CreateRequest describes a new bank account. An empty ID gets a generated one.
type CreateRequest struct {
	ID             string
	Name           string
	OpeningBalance decimal.Decimal
}

// Service is the bank account registry.
type Service struct {
	store store.Store
	now   func() time.Time
	log   zerolog.Logger
}

// NewService creates a Service over s.
func NewService(s store.Store, log zerolog.Logger) *Service {
	return &Service{store: s, now: time.Now, log: log}
}

// Create registers a bank account. The opening balance seeds both the
// current balance and the balance the first reconciliation opens with.
func (s *Service) Create(ctx context.Context, req CreateRequest) (model.BankAccount, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.BankAccount{}, errors.New("account name is required")
	}
	acctID := strings.TrimSpace(req.ID)
	if acctID == "" {
		acctID = id.New(id.Account)
	}
	if strings.ContainsAny(acctID, " ,\t\n") {
		return model.BankAccount{}, fmt.Errorf("account id %q must not contain spaces or commas", acctID)
	}

	acct := model.BankAccount{
		ID:                    acctID,
		Name:                  name,
		CurrentBalance:        req.OpeningBalance.Round(2),
		LastReconciledBalance: req.OpeningBalance.Round(2),
		CreatedAt:             s.now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		return model.BankAccount{}, fmt.Errorf("creating bank account: %w", err)
	}

	s.log.Info().
		Str("account_id", acct.ID).
		Str("opening_balance", acct.CurrentBalance.StringFixed(2)).
		Msg("bank account created")
	return acct, nil
}

// Get returns a bank account by ID.
func (s *Service) Get(ctx context.Context, accountID string) (model.BankAccount, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return model.BankAccount{}, fmt.Errorf("loading bank account: %w", err)
	}
	return acct, nil
}

// List returns all bank accounts.
func (s *Service) List(ctx context.Context) ([]model.BankAccount, error) {
	accts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing bank accounts: %w", err)
	}
	return accts, nil
}

// Seed creates the configured accounts that do not exist yet.
func (s *Service) Seed(ctx context.Context, configured []config.BankAccount) ([]model.BankAccount, error) {
	var created []model.BankAccount
	for _, c := range configured {
		if c.ID != "" {
			if _, err := s.store.GetAccount(ctx, c.ID); err == nil {
				continue
			} else if !errors.Is(err, store.ErrNotFound) {
				return created, fmt.Errorf("checking bank account %s: %w", c.ID, err)
			}
		}
		acct, err := s.Create(ctx, CreateRequest{ID: c.ID, Name: c.Name, OpeningBalance: c.OpeningBalance})
		if err != nil {
			return created, err
		}
		created = append(created, acct)
	}
	return created, nil
}

// Load creates the accounts listed in a CSV written by WriteAccounts,
// skipping IDs that already exist. The current balance column becomes the
// opening balance.
func (s *Service) Load(ctx context.Context, r io.Reader) ([]model.BankAccount, error) {
	rows, err := ReadAccounts(r)
	if err != nil {
		return nil, err
	}
	configured := make([]config.BankAccount, 0, len(rows))
	for _, a := range rows {
		configured = append(configured, config.BankAccount{ID: a.ID, Name: a.Name, OpeningBalance: a.CurrentBalance})
	}
	return s.Seed(ctx, configured)
}

// Snapshot writes the account list to SnapshotFile under repoRoot.
func (s *Service) Snapshot(ctx context.Context, repoRoot string) error {
	accts, err := s.List(ctx)
	if err != nil {
		return err
	}

	path := filepath.Join(repoRoot, SnapshotFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating account snapshot: %w", err)
	}
	defer f.Close()

	if err := WriteAccounts(f, accts); err != nil {
		return fmt.Errorf("writing account snapshot: %w", err)
	}
	return nil
}
