package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default("Test Biz")
	cfg.BankAccounts = []BankAccount{
		{ID: "checking", Name: "Chase Checking", OpeningBalance: decimal.RequireFromString("1250.75"), Preset: "chase"},
	}
	cfg.Import.StrictDates = true
	cfg.Import.Detection.DateThreshold = 0.8
	cfg.Warehouse = WarehouseConfig{Project: "acme", Dataset: "books", Table: "bank_transactions"}

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Business.Name, got.Business.Name)
	assert.Equal(t, cfg.Store, got.Store)
	assert.Equal(t, 50, got.Import.BatchSize)
	assert.True(t, got.Import.StrictDates)
	assert.InDelta(t, 0.8, got.Import.Detection.DateThreshold, 0.001)
	assert.True(t, got.Reconcile.Tolerance.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, cfg.Log, got.Log)
	assert.Equal(t, cfg.Warehouse, got.Warehouse)
	assert.Equal(t, cfg.Git, got.Git)
	require.Len(t, got.BankAccounts, 1)
	assert.Equal(t, "Chase Checking", got.BankAccounts[0].Name)
	assert.Equal(t, "1250.75", got.BankAccounts[0].OpeningBalance.StringFixed(2))
	assert.Equal(t, "chase", got.BankAccounts[0].Preset)
}

func TestDefaults(t *testing.T) {
	cfg := Default("My Company")

	assert.Equal(t, "My Company", cfg.Business.Name)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, filepath.Join("data", "bankrec.db"), cfg.Store.Path)
	assert.Equal(t, 50, cfg.Import.BatchSize)
	assert.False(t, cfg.Import.StrictDates)
	assert.Equal(t, "import", cfg.Import.InboxDir)
	assert.Equal(t, "0.01", cfg.Reconcile.Tolerance.String())
	assert.True(t, cfg.Log.ActivityLog)
	assert.False(t, cfg.Git.AutoCommit)
	assert.Empty(t, cfg.BankAccounts)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("business:\n  name: Tiny\nreconcile:\n  tolerance: 0.05\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Tiny", cfg.Business.Name)
	assert.Equal(t, 50, cfg.Import.BatchSize)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "0.05", cfg.Reconcile.Tolerance.String())
}

func TestLoadNotFound(t *testing.T) {
	_, err := LoadRepo(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }},
		{"zero batch", func(c *Config) { c.Import.BatchSize = 0 }},
		{"negative tolerance", func(c *Config) { c.Reconcile.Tolerance = decimal.RequireFromString("-0.01") }},
		{"unnamed account", func(c *Config) { c.BankAccounts = []BankAccount{{ID: "a"}} }},
		{"duplicate account", func(c *Config) {
			c.BankAccounts = []BankAccount{{ID: "a", Name: "A"}, {ID: "a", Name: "B"}}
		}},
	}
	for _, tt := range tests {
		cfg := Default("x")
		tt.mutate(cfg)
		assert.Error(t, cfg.Validate(), tt.name)
	}

	cfg := Default("x")
	cfg.Store = StoreConfig{Driver: "memory"}
	assert.NoError(t, cfg.Validate())
}

func TestPaths(t *testing.T) {
	cfg := Default("x")
	assert.Equal(t, filepath.Join("/work", "data", "bankrec.db"), cfg.StorePath("/work"))
	assert.Equal(t, filepath.Join("/work", "import"), cfg.InboxPath("/work"))

	cfg.Store.Path = "/var/lib/bankrec.db"
	cfg.Import.InboxDir = "/srv/inbox"
	assert.Equal(t, "/var/lib/bankrec.db", cfg.StorePath("/work"))
	assert.Equal(t, "/srv/inbox", cfg.InboxPath("/work"))
}

func TestYAMLFormat(t *testing.T) {
	cfg := Default("Test Biz")
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: Test Biz")
	assert.Contains(t, contents, "driver: sqlite")
	assert.Contains(t, contents, "batch_size: 50")
	assert.Contains(t, contents, "activity_log: true")
	assert.NotContains(t, contents, "bank_accounts")
}
