package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FileName is the workspace configuration file.
const FileName = "bankrec.yaml"

// Config represents the top-level bankrec.yaml configuration.
type Config struct {
	Business     BusinessConfig  `yaml:"business"`
	Store        StoreConfig     `yaml:"store"`
	Import       ImportConfig    `yaml:"import"`
	Reconcile    ReconcileConfig `yaml:"reconcile"`
	Log          LogConfig       `yaml:"log"`
	BankAccounts []BankAccount   `yaml:"bank_accounts,omitempty"`
	Warehouse    WarehouseConfig `yaml:"warehouse,omitempty"`
	Git          GitConfig       `yaml:"git"`
}

// BusinessConfig identifies the business entity.
type BusinessConfig struct {
	Name string `yaml:"name"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	Path   string `yaml:"path"`   // relative to the workspace root
}

// ImportConfig controls CSV ingestion.
type ImportConfig struct {
	BatchSize   int             `yaml:"batch_size"`
	StrictDates bool            `yaml:"strict_dates"`
	InboxDir    string          `yaml:"inbox_dir"`
	Detection   DetectionConfig `yaml:"detection"`
}

// DetectionConfig tunes column-mapping inference. Zero values keep the built-in defaults.
type DetectionConfig struct {
	SampleRows           int     `yaml:"sample_rows,omitempty"`
	DateThreshold        float64 `yaml:"date_threshold,omitempty"`
	AmountThreshold      float64 `yaml:"amount_threshold,omitempty"`
	DescriptionThreshold float64 `yaml:"description_threshold,omitempty"`
	DescriptionMinLen    int     `yaml:"description_min_len,omitempty"`
}

// ReconcileConfig controls the completion gate.
type ReconcileConfig struct {
	Tolerance decimal.Decimal `yaml:"tolerance"`
}

// LogConfig controls diagnostics and the activity log.
type LogConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"` // "console" or "json"
	ActivityLog bool   `yaml:"activity_log"`
}

// BankAccount is seeded into the store by init.
type BankAccount struct {
	ID             string          `yaml:"id,omitempty"`
	Name           string          `yaml:"name"`
	OpeningBalance decimal.Decimal `yaml:"opening_balance,omitempty"`
	Preset         string          `yaml:"preset,omitempty"`
}

// WarehouseConfig points the BigQuery export at a table.
type WarehouseConfig struct {
	Project         string `yaml:"project,omitempty"`
	Dataset         string `yaml:"dataset,omitempty"`
	Table           string `yaml:"table,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a bankrec.yaml file from disk. Missing settings fall back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// LoadRepo reads <repoRoot>/bankrec.yaml.
func LoadRepo(repoRoot string) (*Config, error) {
	return Load(filepath.Join(repoRoot, FileName))
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new workspace.
func Default(businessName string) *Config {
	return &Config{
		Business: BusinessConfig{
			Name: businessName,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   filepath.Join("data", "bankrec.db"),
		},
		Import: ImportConfig{
			BatchSize: 50,
			InboxDir:  "import",
		},
		Reconcile: ReconcileConfig{
			Tolerance: decimal.New(1, -2),
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			ActivityLog: true,
		},
		Git: GitConfig{
			AutoCommit:  false,
			AuthorName:  "bankrec",
			AuthorEmail: "bankrec@localhost",
		},
	}
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("import.batch_size must be positive, got %d", c.Import.BatchSize)
	}
	if c.Reconcile.Tolerance.IsNegative() {
		return fmt.Errorf("reconcile.tolerance must not be negative, got %s", c.Reconcile.Tolerance)
	}
	seen := map[string]bool{}
	for i, a := range c.BankAccounts {
		if a.Name == "" {
			return fmt.Errorf("bank_accounts[%d]: name is required", i)
		}
		if a.ID != "" {
			if seen[a.ID] {
				return fmt.Errorf("bank_accounts[%d]: duplicate id %q", i, a.ID)
			}
			seen[a.ID] = true
		}
	}
	return nil
}

// StorePath resolves the store path against the workspace root.
func (c *Config) StorePath(repoRoot string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(repoRoot, c.Store.Path)
}

// InboxPath resolves the import inbox against the workspace root.
func (c *Config) InboxPath(repoRoot string) string {
	if filepath.IsAbs(c.Import.InboxDir) {
		return c.Import.InboxDir
	}
	return filepath.Join(repoRoot, c.Import.InboxDir)
}
