// Package manifest reads and creates the per-directory vendorbin.json manifest.
package manifest

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"
)

// Filename is the manifest file name looked up in every project and namespace directory.
const Filename = "vendorbin.json"

// minimalContent is written to namespaces that have no manifest yet.
const minimalContent = "{}"

// ErrNotFound is returned by Load when the directory has no manifest.
var ErrNotFound = errors.New("manifest not found")

// Manifest is the subset of a project manifest vendorbin understands.
type Manifest struct {
	Name    string            `json:"name,omitempty"`
	Require map[string]string `json:"require,omitempty"`
	Scripts map[string]Script `json:"scripts,omitempty"`
	Extra   map[string]any    `json:"extra,omitempty"`

	// Path is the absolute manifest path.
	Path string `json:"-"`
	// Fingerprint is the BLAKE3 hash of the file content at load time.
	Fingerprint string `json:"-"`
}

// Script is a manifest script: one shell line, or a list run in order.
//
// Accepted formats:
//   - "lint": "phpcs src"
//   - "lint": ["phpcs src", "phpstan analyse"]
type Script []string

// UnmarshalJSON accepts a string or an array of strings.
func (s *Script) UnmarshalJSON(data []byte) error {
	var line string
	if err := json.Unmarshal(data, &line); err == nil {
		*s = Script{line}
		return nil
	}

	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("script must be a string or an array of strings")
	}
	*s = Script(lines)
	return nil
}

// Path returns the manifest path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, Filename)
}

// Load reads the manifest in dir.
func Load(dir string) (*Manifest, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest directory %q: %w", dir, err)
	}
	path := Path(absDir)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.Path = path
	m.Fingerprint = Fingerprint(data)
	return &m, nil
}

// EnsureMinimal writes an empty-object manifest into dir unless one exists.
// It reports whether a file was created.
func EnsureMinimal(dir string) (bool, error) {
	path := Path(dir)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create manifest %s: %w", path, err)
	}

	if _, err := f.WriteString(minimalContent); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("write manifest %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close manifest %s: %w", path, err)
	}
	return true, nil
}

// Fingerprint returns the hex BLAKE3 hash of data.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ScriptNames returns the declared script names in sorted order.
func (m *Manifest) ScriptNames() []string {
	names := make([]string, 0, len(m.Scripts))
	for name := range m.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Section returns extra[key] as an object. ok is false when the key is absent;
// err is set when it is present but not an object.
func (m *Manifest) Section(key string) (section map[string]any, ok bool, err error) {
	raw, ok := m.Extra[key]
	if !ok {
		return nil, false, nil
	}
	section, isMap := raw.(map[string]any)
	if !isMap {
		return nil, true, fmt.Errorf("extra.%s must be an object, got %T", key, raw)
	}
	return section, true, nil
}
