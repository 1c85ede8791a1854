package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/accounts"
	"github.com/cleared-dev/bankrec/internal/activitylog"
	"github.com/cleared-dev/bankrec/internal/config"
	"github.com/cleared-dev/bankrec/internal/gitops"
	"github.com/cleared-dev/bankrec/internal/importer"
	"github.com/cleared-dev/bankrec/internal/ingest"
	"github.com/cleared-dev/bankrec/internal/logger"
	"github.com/cleared-dev/bankrec/internal/reconcile"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/store/memstore"
	"github.com/cleared-dev/bankrec/internal/store/sqlitestore"
)

// workspace is an opened bankrec directory: its config, store and logs.
type workspace struct {
	root     string
	cfg      *config.Config
	store    store.Store
	log      zerolog.Logger
	activity *activitylog.Recorder
}

// openWorkspace loads bankrec.yaml under the --repo directory, opens the
// configured store and attaches the logger to the command context.
func openWorkspace(cmd *cobra.Command, opts *globalOptions) (*workspace, error) {
	root, err := filepath.Abs(opts.repoDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.LoadRepo(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s is not a bankrec workspace (run bankrec init): %w", root, err)
		}
		return nil, err
	}
	return newWorkspace(cmd, root, cfg)
}

func newWorkspace(cmd *cobra.Command, root string, cfg *config.Config) (*workspace, error) {
	log, err := logger.NewWithOptions(logger.Options{
		Level:  cfg.Log.Level,
		Format: logger.Format(cfg.Log.Format),
		Out:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}
	cmd.SetContext(logger.WithContext(cmd.Context(), log))

	s, err := openStore(cfg, root)
	if err != nil {
		return nil, err
	}

	return &workspace{
		root:     root,
		cfg:      cfg,
		store:    s,
		log:      log,
		activity: activitylog.NewRecorder(root, cfg.Log.ActivityLog),
	}, nil
}

func openStore(cfg *config.Config, root string) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memstore.New(), nil
	case "sqlite":
		path := cfg.StorePath(root)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
		s, err := sqlitestore.New(path)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (w *workspace) Close() error {
	return w.store.Close()
}

func (w *workspace) accounts() *accounts.Service {
	return accounts.NewService(w.store, w.log)
}

func (w *workspace) ingest() *ingest.Service {
	return ingest.NewService(w.store, ingest.Options{
		BatchSize:   w.cfg.Import.BatchSize,
		StrictDates: w.cfg.Import.StrictDates,
		Detection:   w.detectOptions(),
	}, w.log)
}

func (w *workspace) reconcile() *reconcile.Service {
	return reconcile.NewService(w.store, reconcile.Options{Tolerance: w.cfg.Reconcile.Tolerance}, w.log)
}

func (w *workspace) detectOptions() importer.DetectOptions {
	d := w.cfg.Import.Detection
	return importer.DetectOptions{
		SampleRows:           d.SampleRows,
		DateThreshold:        d.DateThreshold,
		AmountThreshold:      d.AmountThreshold,
		DescriptionThreshold: d.DescriptionThreshold,
		DescriptionMinLen:    d.DescriptionMinLen,
	}
}

// record appends to the activity log. Failures are logged, not returned:
// the store change has already happened.
func (w *workspace) record(action activitylog.Action, accountID, recordID, details string) {
	if err := w.activity.Record(action, accountID, recordID, details); err != nil {
		w.log.Warn().Err(err).Str("action", string(action)).Msg("activity log append failed")
	}
}

// finish refreshes the account snapshot and, with git.auto_commit, commits the workspace.
func (w *workspace) finish(ctx context.Context, message string) error {
	if err := w.accounts().Snapshot(ctx, w.root); err != nil {
		return err
	}
	if !w.cfg.Git.AutoCommit || !gitops.IsRepo(w.root) {
		return nil
	}
	repo := gitops.Repo{Dir: w.root, AuthorName: w.cfg.Git.AuthorName, AuthorEmail: w.cfg.Git.AuthorEmail}
	hash, err := repo.CommitAll(ctx, message)
	if err != nil {
		return fmt.Errorf("committing workspace: %w", err)
	}
	if hash != "" {
		w.log.Debug().Str("commit", hash).Str("message", message).Msg("workspace committed")
	}
	return nil
}
