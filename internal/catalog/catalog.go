// Package catalog provides the selectable OS image catalog for vmctl.
//
// The catalog is static reference data: an ordered list of entries mapping
// a display label to the image source and first-boot defaults. It is loaded
// once at startup - either the built-in table or an operator-supplied YAML
// file - and never mutated afterwards.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry describes one selectable OS image.
type Entry struct {
	// Label is the unique display name operators select by, e.g. "ubuntu-24.04".
	Label string `yaml:"label"`

	// Family is the OS family, e.g. "ubuntu".
	Family string `yaml:"family"`

	// Codename is the release codename or version, e.g. "noble".
	Codename string `yaml:"codename"`

	// URL is the cloud image download source.
	URL string `yaml:"url"`

	// Hostname is the default guest hostname for new VMs.
	Hostname string `yaml:"hostname"`

	// Username is the default login account for new VMs.
	Username string `yaml:"username"`

	// Secret is the default login password for new VMs.
	Secret string `yaml:"secret"`
}

// Catalog is an immutable ordered list of image entries.
type Catalog struct {
	entries []Entry
}

// Load reads the catalog from path, falling back to the built-in table
// when path is empty or the file does not exist.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Builtin(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Builtin(), nil
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := validateEntries(entries); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}

	return &Catalog{entries: entries}, nil
}

// Builtin returns the compiled-in catalog.
func Builtin() *Catalog {
	return &Catalog{entries: builtinEntries()}
}

// Entries returns a copy of the catalog entries in order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Labels returns the entry labels in catalog order.
func (c *Catalog) Labels() []string {
	labels := make([]string, len(c.entries))
	for i, e := range c.entries {
		labels[i] = e.Label
	}
	return labels
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Lookup returns the entry with the given label.
func (c *Catalog) Lookup(label string) (Entry, error) {
	for _, e := range c.entries {
		if e.Label == label {
			return e, nil
		}
	}
	return Entry{}, &ErrUnknownImage{Label: label, Available: c.Labels()}
}

// Default returns the first catalog entry.
func (c *Catalog) Default() Entry {
	if len(c.entries) == 0 {
		return Entry{}
	}
	return c.entries[0]
}

func validateEntries(entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("catalog has no entries")
	}
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.Label == "" {
			return fmt.Errorf("entry %d: missing label", i)
		}
		if seen[e.Label] {
			return fmt.Errorf("entry %d: duplicate label %q", i, e.Label)
		}
		seen[e.Label] = true
		if e.URL == "" {
			return fmt.Errorf("entry %q: missing url", e.Label)
		}
		if e.Family == "" {
			return fmt.Errorf("entry %q: missing family", e.Label)
		}
	}
	return nil
}

// ErrUnknownImage is returned when a catalog label is not found.
type ErrUnknownImage struct {
	Label     string
	Available []string
}

func (e *ErrUnknownImage) Error() string {
	return fmt.Sprintf("unknown image %q, available: %v", e.Label, e.Available)
}
