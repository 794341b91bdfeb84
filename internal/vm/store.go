package vm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// Store persists one YAML record file per VM under a single directory.
// Each save replaces exactly one record atomically; sibling records are
// never touched, so a crash mid-write cannot corrupt the store.
type Store struct {
	dir string
}

// NewStore creates a record store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".yaml")
}

// List returns all VM names in lexicographic order. Names absent from the
// store never appear.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}

// Load reads one record. An absent, unreadable, or unparseable entry fails
// with ErrNotFound; a partially populated record is never returned.
func (s *Store) Load(name string) (*VMRecord, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("load %q: %w", name, ErrNotFound)
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, ErrNotFound)
	}

	var record VMRecord
	if err := yaml.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("load %s: unparseable record: %w", name, ErrNotFound)
	}
	return &record, nil
}

// Exists reports whether a record is present for name.
func (s *Store) Exists(name string) bool {
	if !ValidName(name) {
		return false
	}
	_, err := os.Stat(s.path(name))
	return err == nil
}

// Save writes the whole record, replacing any previous version. The write
// goes to a temp file first and is renamed into place, and an advisory
// lock serializes two processes saving the same VM.
func (s *Store) Save(record *VMRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	path := s.path(record.Name)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock record %s: %w", record.Name, err)
	}
	defer lock.Unlock()

	data, err := yaml.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	// Write atomically
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Delete removes the record only; artifacts are the caller's concern.
func (s *Store) Delete(name string) error {
	if !ValidName(name) {
		return fmt.Errorf("delete %q: %w", name, ErrNotFound)
	}
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete %s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("delete record %s: %w", name, err)
	}
	os.Remove(s.path(name) + ".lock")
	return nil
}
