package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Preset is a known bank export layout with an explicit column mapping.
type Preset struct {
	Name    string
	Bank    string
	Mapping ColumnMapping
}

// Registry holds named presets.
type Registry struct {
	presets map[string]Preset
}

// FileInfo describes a CSV file in the import inbox.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty preset registry.
func NewRegistry() *Registry {
	return &Registry{presets: make(map[string]Preset)}
}

// Register adds a preset. Panics on duplicate name.
func (r *Registry) Register(p Preset) {
	key := strings.ToLower(p.Name)
	if _, ok := r.presets[key]; ok {
		panic("duplicate preset: " + key)
	}
	r.presets[key] = p
}

// Get returns the preset for name.
func (r *Registry) Get(name string) (Preset, bool) {
	p, ok := r.presets[strings.ToLower(name)]
	return p, ok
}

// Names returns the registered preset names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.presets))
	for k := range r.presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with the built-in bank presets.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// Chase checking: "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #".
	// Name matching alone would take "Details" (DEBIT/CREDIT) as the description.
	r.Register(Preset{
		Name: "chase",
		Bank: "Chase",
		Mapping: ColumnMapping{
			Date:        "Posting Date",
			Description: "Description",
			Amount:      "Amount",
			CheckNumber: "Check or Slip #",
			Category:    "Type",
		},
	})
	// Capital One cards: "Transaction Date,Posted Date,Card No.,Description,Category,Debit,Credit".
	r.Register(Preset{
		Name: "capitalone",
		Bank: "Capital One",
		Mapping: ColumnMapping{
			Date:        "Transaction Date",
			Description: "Description",
			Debit:       "Debit",
			Credit:      "Credit",
			Category:    "Category",
		},
	})
	r.Register(Preset{
		Name: "generic-debit-credit",
		Mapping: ColumnMapping{
			Date:        "Date",
			Description: "Description",
			Debit:       "Debit",
			Credit:      "Credit",
			Reference:   "Reference",
		},
	})
	return r
}

// processedDir is the inbox subdirectory for imported CSVs.
const processedDir = "processed"

// Scan returns CSV files directly under inboxDir.
func Scan(inboxDir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(inboxDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(inboxDir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from the inbox to its processed/ subdirectory.
func MarkProcessed(inboxDir, fileName string) error {
	src := filepath.Join(inboxDir, fileName)
	dstDir := filepath.Join(inboxDir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// ParseMappingSpec parses "date=Posted,amount=Amount" into a ColumnMapping.
func ParseMappingSpec(spec string) (ColumnMapping, error) {
	var m ColumnMapping
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return ColumnMapping{}, fmt.Errorf("mapping %q: expected field=header", part)
		}
		f, ok := ParseField(k)
		if !ok {
			return ColumnMapping{}, fmt.Errorf("mapping %q: unknown field %q", part, k)
		}
		m.Set(f, strings.TrimSpace(v))
	}
	return m, nil
}
