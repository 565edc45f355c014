package namespace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattjoyce/vendorbin/internal/manifest"
)

// All is the selector that expands to every namespace under the root.
const All = "all"

var (
	// ErrDirectoryCreationFailed is returned by Ensure when the namespace
	// directory could not be created and does not exist.
	ErrDirectoryCreationFailed = errors.New("namespace directory creation failed")

	// ErrManifestCreationFailed is returned by Ensure when the minimal manifest
	// could not be written.
	ErrManifestCreationFailed = errors.New("namespace manifest creation failed")

	// ErrInvalidName is returned for empty names and names that leave the root.
	ErrInvalidName = errors.New("invalid namespace name")
)

// Namespace is an isolated sub-project directory under the target root.
type Namespace struct {
	Name string
	Path string
}

// Manager resolves and prepares namespaces under a single target root on local disk.
type Manager struct {
	root string
}

// NewManager creates a manager rooted at root. The root does not need to exist.
func NewManager(root string) (*Manager, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return nil, fmt.Errorf("namespace root directory is empty")
	}

	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve namespace root %q: %w", root, err)
	}
	return &Manager{root: abs}, nil
}

// Root returns the absolute target root.
func (m *Manager) Root() string {
	return m.root
}

// Get returns the namespace called name, whether or not it exists yet.
func (m *Manager) Get(name string) (Namespace, error) {
	path, err := m.namespacePath(name)
	if err != nil {
		return Namespace{}, err
	}
	return Namespace{Name: name, Path: path}, nil
}

// Resolve expands selector into the namespaces to operate on.
//
// A concrete name yields exactly that namespace. All yields a snapshot of the
// root's immediate subdirectories, sorted by path; dot-prefixed entries are
// skipped. A missing or empty root yields an empty list and no error.
func (m *Manager) Resolve(ctx context.Context, selector string) ([]Namespace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if selector != All {
		ns, err := m.Get(selector)
		if err != nil {
			return nil, err
		}
		return []Namespace{ns}, nil
	}

	entries, err := os.ReadDir(m.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read namespace root: %w", err)
	}

	var out []Namespace
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		path := filepath.Join(m.root, name)
		isDir := entry.IsDir()
		if !isDir && entry.Type()&os.ModeSymlink != 0 {
			if info, err := os.Stat(path); err == nil {
				isDir = info.IsDir()
			}
		}
		if !isDir {
			continue
		}
		out = append(out, Namespace{Name: name, Path: path})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Ensure creates the namespace directory (with parents) and a minimal manifest
// when they are missing. It never removes anything.
func (m *Manager) Ensure(ctx context.Context, ns Namespace) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(ns.Path, 0o755); err != nil {
		info, statErr := os.Stat(ns.Path)
		if statErr != nil || !info.IsDir() {
			return fmt.Errorf("%w: %s: %w", ErrDirectoryCreationFailed, ns.Path, err)
		}
	}

	if _, err := manifest.EnsureMinimal(ns.Path); err != nil {
		return fmt.Errorf("%w: %w", ErrManifestCreationFailed, err)
	}
	return nil
}

func (m *Manager) namespacePath(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	path := filepath.Join(m.root, name)

	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q resolves outside %s", ErrInvalidName, name, m.root)
	}
	return path, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("%w: %q is absolute", ErrInvalidName, name)
	}
	return nil
}
