// Package ingest imports bank CSV exports into a bank account.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/id"
	"github.com/cleared-dev/bankrec/internal/importer"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// DefaultBatchSize bounds how many rows go to the store per insert.
const DefaultBatchSize = 50

// sampleSize is how many rows a NeedsMappingError carries.
const sampleSize = 5

// Options tunes an import.
type Options struct {
	BatchSize   int
	StrictDates bool
	Detection   importer.DetectOptions
}

// Service imports CSV text into the store.
type Service struct {
	store store.Store
	opts  Options
	log   zerolog.Logger
}

// NewService creates an import Service.
func NewService(s store.Store, opts Options, log zerolog.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Service{store: s, opts: opts, log: log}
}

// Request is one CSV upload.
type Request struct {
	Text      string
	AccountID string
	// Mapping overrides inference when set. It is used as given.
	Mapping *importer.ColumnMapping
	// Source names the upload in logs, e.g. a file path.
	Source string
}

// Result summarizes an import. Imported + Skipped == Total.
type Result struct {
	ImportID string `json:"importId"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Total    int    `json:"total"`
}

// Import parses req.Text, normalizes every row, and persists the accepted
// rows in sub-batches. Each sub-batch and its balance effect commit
// together; when a later sub-batch fails, earlier ones stay committed and
// the returned Result counts only what was persisted.
func (s *Service) Import(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, &ValidationError{Field: "file", Message: "CSV file is required"}
	}
	if req.AccountID == "" {
		return Result{}, &ValidationError{Field: "bankAccountId", Message: "bank account is required"}
	}

	if _, err := s.store.GetAccount(ctx, req.AccountID); err != nil {
		return Result{}, fmt.Errorf("loading bank account: %w", err)
	}

	parsed := importer.ParseCSV(req.Text, s.opts.Detection)

	var mapping importer.ColumnMapping
	switch {
	case req.Mapping != nil:
		mapping = *req.Mapping
	case parsed.DetectedMapping.Usable():
		mapping = parsed.DetectedMapping
	default:
		return Result{}, &NeedsMappingError{
			Headers:         parsed.Headers,
			DetectedMapping: parsed.DetectedMapping,
			Confidence:      parsed.Confidence,
			Sample:          parsed.Sample(sampleSize),
		}
	}

	importID := id.New(id.Import)
	log := s.log.With().
		Str("import_id", importID).
		Str("account_id", req.AccountID).
		Str("source", req.Source).
		Logger()

	res := Result{ImportID: importID, Total: len(parsed.Rows)}
	rowOpts := importer.RowOptions{StrictDates: s.opts.StrictDates}

	var accepted []model.BankTransaction
	for _, row := range parsed.Rows {
		txn, ok := importer.BuildTransaction(row, mapping, importID, rowOpts)
		if !ok {
			res.Skipped++
			continue
		}
		accepted = append(accepted, model.BankTransaction{
			ID:                    id.New(id.Transaction),
			BankAccountID:         req.AccountID,
			NormalizedTransaction: txn,
		})
	}

	netChange := decimal.Zero
	for start := 0; start < len(accepted); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(accepted))
		batch := accepted[start:end]
		delta := NetChange(batch)

		err := s.store.RunInTx(ctx, func(tx store.Store) error {
			if err := tx.InsertTransactions(ctx, batch); err != nil {
				return err
			}
			return tx.AdjustBalance(ctx, req.AccountID, delta)
		})
		if err != nil {
			// Rows that never reached the store are neither imported nor skipped.
			log.Error().Err(err).
				Int("imported", res.Imported).
				Int("failed_at_row", start).
				Msg("import aborted")
			return res, fmt.Errorf("inserting rows %d-%d: %w", start+1, end, err)
		}
		res.Imported += len(batch)
		netChange = netChange.Add(delta)
	}

	log.Info().
		Int("imported", res.Imported).
		Int("skipped", res.Skipped).
		Int("total", res.Total).
		Str("net_change", netChange.StringFixed(2)).
		Msg("import complete")
	return res, nil
}

// NetChange returns Σcredit − Σdebit over txns.
func NetChange(txns []model.BankTransaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txns {
		sum = sum.Add(t.Signed())
	}
	return sum
}

// UndoResult summarizes a reverted import.
type UndoResult struct {
	ImportID  string          `json:"importId"`
	AccountID string          `json:"accountId"`
	Deleted   int             `json:"deleted"`
	NetChange decimal.Decimal `json:"netChange"` // balance effect that was reversed
}

// Undo deletes every transaction of an import batch and reverses its
// balance effect. It refuses when any of them is claimed by a
// reconciliation or already reconciled.
func (s *Service) Undo(ctx context.Context, importID string) (UndoResult, error) {
	if importID == "" {
		return UndoResult{}, &ValidationError{Field: "importId", Message: "import ID is required"}
	}

	res := UndoResult{ImportID: importID}
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		txns, err := tx.QueryTransactions(ctx, store.TransactionFilter{ImportID: importID})
		if err != nil {
			return fmt.Errorf("querying import: %w", err)
		}
		if len(txns) == 0 {
			return fmt.Errorf("import %s: %w", importID, store.ErrNotFound)
		}

		perAccount := map[string]decimal.Decimal{}
		var accountIDs []string
		for _, t := range txns {
			if t.Cleared() || t.IsReconciled {
				return &ValidationError{
					Field:   "importId",
					Message: fmt.Sprintf("transaction %s is part of a reconciliation; delete the reconciliation first", t.ID),
				}
			}
			if _, ok := perAccount[t.BankAccountID]; !ok {
				accountIDs = append(accountIDs, t.BankAccountID)
			}
			perAccount[t.BankAccountID] = perAccount[t.BankAccountID].Add(t.Signed())
		}

		n, err := tx.DeleteTransactions(ctx, store.TransactionFilter{ImportID: importID})
		if err != nil {
			return fmt.Errorf("deleting import: %w", err)
		}
		for _, acct := range accountIDs {
			if err := tx.AdjustBalance(ctx, acct, perAccount[acct].Neg()); err != nil {
				return fmt.Errorf("reversing balance: %w", err)
			}
			res.NetChange = res.NetChange.Add(perAccount[acct])
		}
		res.AccountID = accountIDs[0]
		res.Deleted = n
		return nil
	})
	if err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) && !errors.Is(err, store.ErrNotFound) {
			s.log.Error().Err(err).Str("import_id", importID).Msg("import undo failed")
		}
		return UndoResult{}, err
	}

	s.log.Info().
		Str("import_id", importID).
		Str("account_id", res.AccountID).
		Int("deleted", res.Deleted).
		Str("net_change", res.NetChange.StringFixed(2)).
		Msg("import undone")
	return res, nil
}
