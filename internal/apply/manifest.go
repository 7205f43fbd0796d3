package apply

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// manifestEntry records what was last written to one target path.
type manifestEntry struct {
	Sha256    string `yaml:"sha256"`
	Template  string `yaml:"template"`
	AppliedAt string `yaml:"applied_at"`
}

// Manifest tracks the checksum of every artifact applied to a target so
// unchanged artifacts can be skipped and outside edits reported.
type Manifest struct {
	path    string
	entries map[string]manifestEntry
}

// NewManifest returns an empty manifest that is never saved.
func NewManifest() *Manifest {
	return &Manifest{entries: map[string]manifestEntry{}}
}

// LoadManifest reads the manifest of a target from dir. A missing file
// yields an empty manifest.
func LoadManifest(dir, target string) (*Manifest, error) {
	m := &Manifest{
		path:    filepath.Join(dir, target+".yml"),
		entries: map[string]manifestEntry{},
	}
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m.entries); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", m.path, err)
	}
	if m.entries == nil {
		m.entries = map[string]manifestEntry{}
	}
	return m, nil
}

// Sum returns the recorded checksum for a target path.
func (m *Manifest) Sum(path string) (string, bool) {
	e, ok := m.entries[path]
	return e.Sha256, ok
}

// Record stores the checksum written to path.
func (m *Manifest) Record(path, template, sum string, at time.Time) {
	m.entries[path] = manifestEntry{
		Sha256:    sum,
		Template:  template,
		AppliedAt: at.UTC().Format(time.RFC3339),
	}
}

// Paths lists recorded target paths in sorted order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.entries))
	for p := range m.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Save writes the manifest back to disk.
func (m *Manifest) Save() error {
	if m.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest dir: %w", err)
	}
	data, err := yaml.Marshal(m.entries)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
