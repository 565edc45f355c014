package namespace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mattjoyce/vendorbin/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "vendor-bin")
	mgr, err := NewManager(root)
	require.NoError(t, err)
	return mgr, root
}

func TestNewManagerRejectsEmptyRoot(t *testing.T) {
	_, err := NewManager("  ")
	assert.Error(t, err)
}

func TestResolveConcrete(t *testing.T) {
	mgr, root := newManager(t)

	got, err := mgr.Resolve(context.Background(), "phpstan")
	require.NoError(t, err)
	assert.Equal(t, []Namespace{{Name: "phpstan", Path: filepath.Join(root, "phpstan")}}, got)

	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err), "resolving must not create anything")
}

func TestResolveConcreteNested(t *testing.T) {
	mgr, root := newManager(t)

	got, err := mgr.Resolve(context.Background(), "qa/phpstan")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join(root, "qa", "phpstan"), got[0].Path)
}

func TestResolveInvalidNames(t *testing.T) {
	mgr, _ := newManager(t)

	for _, name := range []string{"", " ", "..", "../escape", "a/../../b", "/abs"} {
		_, err := mgr.Resolve(context.Background(), name)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}

func TestResolveAll(t *testing.T) {
	mgr, root := newManager(t)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "b"), 0o755))

	got, err := mgr.Resolve(context.Background(), All)
	require.NoError(t, err)
	assert.Equal(t, []Namespace{
		{Name: "a", Path: filepath.Join(root, "a")},
		{Name: "b", Path: filepath.Join(root, "b")},
	}, got)
}

func TestResolveAllSortedAndFiltered(t *testing.T) {
	mgr, root := newManager(t)

	for _, name := range []string{"zeta", "alpha", "Mid", ".cache"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0o644))

	target := filepath.Join(t.TempDir(), "linked")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.Symlink(target, filepath.Join(root, "linked")))

	got, err := mgr.Resolve(context.Background(), All)
	require.NoError(t, err)

	var names []string
	for _, ns := range got {
		names = append(names, ns.Name)
	}
	assert.Equal(t, []string{"Mid", "alpha", "linked", "zeta"}, names)
}

func TestResolveAllMissingOrEmptyRoot(t *testing.T) {
	mgr, root := newManager(t)

	got, err := mgr.Resolve(context.Background(), All)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, os.MkdirAll(root, 0o755))
	got, err = mgr.Resolve(context.Background(), All)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveCancelled(t *testing.T) {
	mgr, _ := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mgr.Resolve(ctx, All)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnsureCreatesDirectoryAndManifest(t *testing.T) {
	mgr, root := newManager(t)
	ns, err := mgr.Get("ns1")
	require.NoError(t, err)

	require.NoError(t, mgr.Ensure(context.Background(), ns))

	info, err := os.Stat(filepath.Join(root, "ns1"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	data, err := os.ReadFile(filepath.Join(root, "ns1", manifest.Filename))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestEnsureKeepsExistingManifest(t *testing.T) {
	mgr, root := newManager(t)
	dir := filepath.Join(root, "ns1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.Filename), []byte(`{"name":"x"}`), 0o644))

	require.NoError(t, mgr.Ensure(context.Background(), Namespace{Name: "ns1", Path: dir}))

	data, err := os.ReadFile(filepath.Join(dir, manifest.Filename))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"x"}`, string(data))
}

func TestEnsureDirectoryCreationFailed(t *testing.T) {
	mgr, root := newManager(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(root), 0o755))
	// A regular file where the root should be blocks every namespace below it.
	require.NoError(t, os.WriteFile(root, []byte("not a dir"), 0o644))

	ns, err := mgr.Get("ns1")
	require.NoError(t, err)

	err = mgr.Ensure(context.Background(), ns)
	assert.ErrorIs(t, err, ErrDirectoryCreationFailed)
}

func TestEnsureManifestCreationFailed(t *testing.T) {
	mgr, root := newManager(t)
	dir := filepath.Join(root, "ns1")
	// A directory in place of the manifest file cannot be replaced.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, manifest.Filename, "x"), 0o755))

	err := mgr.Ensure(context.Background(), Namespace{Name: "ns1", Path: dir})
	assert.NoError(t, err, "an existing entry at the manifest path counts as present")

	require.NoError(t, os.RemoveAll(filepath.Join(dir, manifest.Filename)))
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	err = mgr.Ensure(context.Background(), Namespace{Name: "ns1", Path: dir})
	assert.ErrorIs(t, err, ErrManifestCreationFailed)
}
