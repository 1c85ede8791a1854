package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/activitylog"
	"github.com/cleared-dev/bankrec/internal/config"
	"github.com/cleared-dev/bankrec/internal/gitops"
)

func newInitCommand() *cobra.Command {
	var (
		name        string
		accountList []string
		useGit      bool
		driver      string
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new bankrec workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			cfg := config.Default(name)
			cfg.Git.AutoCommit = useGit
			cfg.Store.Driver = driver
			for _, a := range accountList {
				cfg.BankAccounts = append(cfg.BankAccounts, config.BankAccount{Name: a})
			}
			return runInit(cmd, absDir, cfg)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringArrayVar(&accountList, "account", nil, "bank account to create (repeatable)")
	cmd.Flags().BoolVar(&useGit, "git", false, "initialize a git repository and commit every change")
	cmd.Flags().StringVar(&driver, "store", "sqlite", "store driver: sqlite or memory")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", cfgPath, err)
	}

	// Create directory structure.
	dirs := []string{
		"accounts",
		"data",
		"logs",
		cfg.Import.InboxDir,
		filepath.Join(cfg.Import.InboxDir, "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// The database is rebuilt from nothing; the CSV snapshots and logs are what gets versioned.
	gitignore := "data/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, cfg.Import.InboxDir, ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	if cfg.Git.AutoCommit {
		if err := gitops.Init(cmd.Context(), dir); err != nil {
			return fmt.Errorf("git init: %w", err)
		}
	}

	ws, err := newWorkspace(cmd, dir, cfg)
	if err != nil {
		return err
	}
	defer ws.Close()

	created, err := ws.accounts().Seed(cmd.Context(), cfg.BankAccounts)
	if err != nil {
		return fmt.Errorf("creating bank accounts: %w", err)
	}
	// Init accounts carry no IDs, so every one is created and created lines up with cfg.BankAccounts.
	for i, a := range created {
		cfg.BankAccounts[i].ID = a.ID
		ws.record(activitylog.ActionAccountCreate, a.ID, a.ID, a.Name)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if err := ws.finish(cmd.Context(), "init: Initialize "+cfg.Business.Name); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized bankrec workspace at %s\n", dir)
	for _, a := range created {
		fmt.Fprintf(out, "  %s  %s\n", a.ID, a.Name)
	}
	return nil
}
