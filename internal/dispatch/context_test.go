package dispatch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/mattjoyce/vendorbin/internal/invocation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEntryPoint is an in-memory entry point whose commands can be polluted by runs.
type fakeEntryPoint struct {
	commands []string
	resets   int
	runs     []invocation.Invocation
	run      func(ctx context.Context, inv invocation.Invocation, out io.Writer) (int, error)
}

func (f *fakeEntryPoint) Run(ctx context.Context, inv invocation.Invocation, out io.Writer) (int, error) {
	f.runs = append(f.runs, inv)
	if f.run == nil {
		return ExitSuccess, nil
	}
	return f.run(ctx, inv, out)
}

func (f *fakeEntryPoint) Reset() { f.resets++ }

func (f *fakeEntryPoint) Commands() []string { return slices.Clone(f.commands) }

func (f *fakeEntryPoint) RestoreCommands(names []string) { f.commands = slices.Clone(names) }

// cwd returns the symlink-free working directory.
func cwd(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	return realpath(t, dir)
}

func realpath(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return resolved
}

func TestExecutionContextEnterRelease(t *testing.T) {
	origin := t.TempDir()
	t.Chdir(origin)
	target := t.TempDir()

	entry := &fakeEntryPoint{commands: []string{"install", "update"}}
	ec := NewExecutionContext(OSProcess{}, entry)

	scope, err := ec.Enter(target)
	require.NoError(t, err)
	assert.Equal(t, realpath(t, target), cwd(t))

	entry.commands = append(entry.commands, "lint")

	require.NoError(t, scope.Release())
	assert.Equal(t, realpath(t, origin), cwd(t))
	assert.Equal(t, []string{"install", "update"}, entry.commands)
	assert.Equal(t, 1, entry.resets)

	require.NoError(t, scope.Release(), "second release is a no-op")
	assert.Equal(t, 1, entry.resets)
}

func TestExecutionContextEnterFailureChangesNothing(t *testing.T) {
	origin := t.TempDir()
	t.Chdir(origin)

	entry := &fakeEntryPoint{commands: []string{"install"}}
	ec := NewExecutionContext(OSProcess{}, entry)

	scope, err := ec.Enter(filepath.Join(origin, "missing"))
	require.Error(t, err)
	assert.Nil(t, scope)
	assert.Equal(t, realpath(t, origin), cwd(t))
	assert.Zero(t, entry.resets)
	assert.NoError(t, scope.Release(), "releasing a nil scope is a no-op")
}

func TestExecutionContextReleaseResetsEvenWhenChdirFails(t *testing.T) {
	base := t.TempDir()
	origin := filepath.Join(base, "origin")
	require.NoError(t, os.MkdirAll(origin, 0o755))
	t.Chdir(origin)
	target := t.TempDir()

	entry := &fakeEntryPoint{commands: []string{"install"}}
	ec := NewExecutionContext(OSProcess{}, entry)

	scope, err := ec.Enter(target)
	require.NoError(t, err)

	entry.commands = append(entry.commands, "lint")
	require.NoError(t, os.RemoveAll(origin))

	err = scope.Release()
	require.Error(t, err)
	assert.Equal(t, 1, entry.resets)
	assert.Equal(t, []string{"install"}, entry.commands)
}
