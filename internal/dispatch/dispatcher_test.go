package dispatch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/mattjoyce/vendorbin/internal/dispatch/mocks"
	"github.com/mattjoyce/vendorbin/internal/invocation"
	"github.com/mattjoyce/vendorbin/internal/log"
	"github.com/mattjoyce/vendorbin/internal/manifest"
	"github.com/mattjoyce/vendorbin/internal/namespace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.SetupWriter(io.Discard, "ERROR", "text") // Suppress logs in tests
	os.Exit(m.Run())
}

type recordingObserver struct {
	started []string
	skipped []string
	empty   []string
}

func (o *recordingObserver) NamespaceStarted(ns namespace.Namespace) {
	o.started = append(o.started, ns.Name)
}

func (o *recordingObserver) NamespaceSkipped(ns namespace.Namespace, _ error) {
	o.skipped = append(o.skipped, ns.Name)
}

func (o *recordingObserver) NoNamespaces(root string) {
	o.empty = append(o.empty, root)
}

type harness struct {
	entry    *mocks.MockEntryPoint
	root     string
	origin   string
	out      *bytes.Buffer
	observer *recordingObserver
	disp     *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	base := t.TempDir()
	t.Chdir(base)

	root := filepath.Join(base, "vendor-bin")
	mgr, err := namespace.NewManager(root)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	entry := mocks.NewMockEntryPoint(ctrl)
	out := &bytes.Buffer{}
	observer := &recordingObserver{}

	return &harness{
		entry:    entry,
		root:     root,
		origin:   cwd(t),
		out:      out,
		observer: observer,
		disp:     New(mgr, NewExecutionContext(OSProcess{}, entry), out, observer),
	}
}

func (h *harness) mkNamespaces(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(h.root, name), 0o755))
	}
}

func TestDispatchConcreteCreatesNamespaceBeforeRunning(t *testing.T) {
	h := newHarness(t)
	nsPath := filepath.Join(h.root, "ns1")

	gomock.InOrder(
		h.entry.EXPECT().Commands().Return([]string{"install", "bin"}),
		h.entry.EXPECT().Run(gomock.Any(), invocation.New("install", "--working-dir=."), h.out).
			DoAndReturn(func(_ context.Context, _ invocation.Invocation, _ io.Writer) (int, error) {
				data, err := os.ReadFile(manifest.Path(nsPath))
				require.NoError(t, err)
				assert.Equal(t, "{}", string(data))
				assert.Equal(t, realpath(t, nsPath), cwd(t))
				return ExitSuccess, nil
			}),
		h.entry.EXPECT().Reset(),
		h.entry.EXPECT().RestoreCommands([]string{"install", "bin"}),
	)

	report, err := h.disp.Dispatch(context.Background(), "ns1", invocation.New("install"))
	require.NoError(t, err)

	assert.Equal(t, ExitSuccess, report.ExitCode())
	require.Len(t, report.Results, 1)
	assert.Equal(t, nsPath, report.Results[0].Namespace.Path)
	assert.Equal(t, h.origin, cwd(t))
	assert.Equal(t, []string{"ns1"}, h.observer.started)
}

func TestDispatchConcreteReturnsNamespaceCode(t *testing.T) {
	h := newHarness(t)

	h.entry.EXPECT().Commands().Return(nil)
	h.entry.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).Return(3, nil)
	h.entry.EXPECT().Reset()
	h.entry.EXPECT().RestoreCommands(gomock.Any())

	report, err := h.disp.Dispatch(context.Background(), "ns1", invocation.New("run", "lint"))
	require.NoError(t, err)
	assert.Equal(t, 3, report.ExitCode())
}

func TestDispatchAllRunsEachNamespaceOnceAndRestoresBetweenRuns(t *testing.T) {
	h := newHarness(t)
	h.mkNamespaces(t, "a", "b")

	var runDirs, restoredDirs []string
	h.entry.EXPECT().Commands().Return([]string{"install"}).Times(2)
	h.entry.EXPECT().Run(gomock.Any(), invocation.New("show", "--tree", "--working-dir=."), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ invocation.Invocation, _ io.Writer) (int, error) {
			runDirs = append(runDirs, cwd(t))
			return ExitSuccess, nil
		}).Times(2)
	h.entry.EXPECT().Reset().Times(2)
	h.entry.EXPECT().RestoreCommands([]string{"install"}).
		Do(func(_ []string) { restoredDirs = append(restoredDirs, cwd(t)) }).
		Times(2)

	report, err := h.disp.Dispatch(context.Background(), namespace.All, invocation.New("show", "--tree"))
	require.NoError(t, err)

	assert.Equal(t, ExitSuccess, report.ExitCode())
	assert.Equal(t, []string{
		realpath(t, filepath.Join(h.root, "a")),
		realpath(t, filepath.Join(h.root, "b")),
	}, runDirs)
	assert.Equal(t, []string{h.origin, h.origin}, restoredDirs)
	assert.Equal(t, []string{"a", "b"}, h.observer.started)
	assert.Equal(t, h.origin, cwd(t))
}

func TestDispatchAllAggregatesFailures(t *testing.T) {
	h := newHarness(t)
	h.mkNamespaces(t, "a", "b", "c")

	codes := map[string]int{"a": 1, "b": 0, "c": 2}
	h.entry.EXPECT().Commands().Return(nil).Times(3)
	h.entry.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ invocation.Invocation, _ io.Writer) (int, error) {
			return codes[filepath.Base(cwd(t))], nil
		}).Times(3)
	h.entry.EXPECT().Reset().Times(3)
	h.entry.EXPECT().RestoreCommands(gomock.Any()).Times(3)

	report, err := h.disp.Dispatch(context.Background(), namespace.All, invocation.New("update"))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total())
	assert.Equal(t, 3, report.ExitCode())
	require.Len(t, report.Failed(), 2)
	assert.Equal(t, "a", report.Failed()[0].Namespace.Name)
	assert.Equal(t, "c", report.Failed()[1].Namespace.Name)
}

func TestDispatchAllWithoutNamespacesWarnsAndSucceeds(t *testing.T) {
	h := newHarness(t)

	report, err := h.disp.Dispatch(context.Background(), namespace.All, invocation.New("install"))
	require.NoError(t, err)

	assert.Equal(t, ExitSuccess, report.ExitCode())
	assert.Empty(t, report.Results)
	assert.Equal(t, []string{h.root}, h.observer.empty)

	_, err = os.Stat(h.root)
	assert.True(t, os.IsNotExist(err), "an empty dispatch must not create the root")
}

func TestDispatchEntryPointErrorPropagatesAfterCleanup(t *testing.T) {
	h := newHarness(t)
	h.mkNamespaces(t, "a", "b")

	errBoom := errors.New("boom")
	gomock.InOrder(
		h.entry.EXPECT().Commands().Return([]string{"install"}),
		h.entry.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).Return(ExitFailure, errBoom),
		h.entry.EXPECT().Reset(),
		h.entry.EXPECT().RestoreCommands([]string{"install"}),
	)

	report, err := h.disp.Dispatch(context.Background(), namespace.All, invocation.New("install"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), `namespace "a"`)

	assert.Equal(t, h.origin, cwd(t))
	require.Len(t, report.Results, 1, "namespace b must not run after a raised")
	assert.Equal(t, []string{"a"}, h.observer.started)
}

func TestDispatchPanicRestoresExecutionContext(t *testing.T) {
	h := newHarness(t)

	gomock.InOrder(
		h.entry.EXPECT().Commands().Return([]string{"install"}),
		h.entry.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ invocation.Invocation, _ io.Writer) (int, error) {
				panic("entry point exploded")
			}),
		h.entry.EXPECT().Reset(),
		h.entry.EXPECT().RestoreCommands([]string{"install"}),
	)

	assert.Panics(t, func() {
		_, _ = h.disp.Dispatch(context.Background(), "ns1", invocation.New("install"))
	})
	assert.Equal(t, h.origin, cwd(t))
}

func TestDispatchDirectoryCreationFailureSkipsNamespace(t *testing.T) {
	h := newHarness(t)
	// A regular file where the root should be makes every namespace uncreatable.
	require.NoError(t, os.WriteFile(h.root, []byte("x"), 0o644))

	report, err := h.disp.Dispatch(context.Background(), "ns1", invocation.New("install"))
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.True(t, res.Skipped())
	assert.ErrorIs(t, res.Err, namespace.ErrDirectoryCreationFailed)
	assert.Equal(t, ExitFailure, res.Code)
	assert.Equal(t, ExitFailure, report.ExitCode())
	assert.Equal(t, []string{"ns1"}, h.observer.skipped)
}

// chdirFailingProcess refuses to enter one directory.
type chdirFailingProcess struct {
	OSProcess
	deny string
}

func (p chdirFailingProcess) Chdir(dir string) error {
	if dir == p.deny {
		return os.ErrPermission
	}
	return p.OSProcess.Chdir(dir)
}

func TestDispatchAllContinuesAfterPreparationFailure(t *testing.T) {
	h := newHarness(t)
	h.disp.executor.ec.process = chdirFailingProcess{deny: filepath.Join(h.root, "a")}
	h.mkNamespaces(t, "a", "b")

	h.entry.EXPECT().Commands().Return(nil).Times(2)
	h.entry.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).Return(ExitSuccess, nil)
	h.entry.EXPECT().Reset()
	h.entry.EXPECT().RestoreCommands(gomock.Any())

	report, err := h.disp.Dispatch(context.Background(), namespace.All, invocation.New("install"))
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[0].Skipped())
	assert.ErrorIs(t, report.Results[0].Err, os.ErrPermission)
	assert.False(t, report.Results[1].Skipped())
	assert.Equal(t, ExitFailure, report.ExitCode())
	assert.Equal(t, []string{"a"}, h.observer.skipped)
	assert.Equal(t, h.origin, cwd(t))
}

func TestDispatchInvalidSelector(t *testing.T) {
	h := newHarness(t)

	_, err := h.disp.Dispatch(context.Background(), "../escape", invocation.New("install"))
	assert.ErrorIs(t, err, namespace.ErrInvalidName)
}

func TestNestedDispatchRestoresToEnclosingNamespace(t *testing.T) {
	base := t.TempDir()
	t.Chdir(base)
	origin := cwd(t)

	outerMgr, err := namespace.NewManager(filepath.Join(base, "vendor-bin"))
	require.NoError(t, err)

	entry := &fakeEntryPoint{commands: []string{"bin", "install"}}
	ec := NewExecutionContext(OSProcess{}, entry)
	outer := New(outerMgr, ec, io.Discard, nil)

	var innerRunDir string
	entry.run = func(ctx context.Context, inv invocation.Invocation, out io.Writer) (int, error) {
		if innerRunDir != "" {
			t.Fatalf("unexpected extra run: %v", inv.Tokens())
		}
		outerDir := cwd(t)
		entry.commands = append(entry.commands, "outer-script")

		innerMgr, err := namespace.NewManager(filepath.Join(outerDir, "vendor-bin"))
		require.NoError(t, err)
		inner := New(innerMgr, ec, out, nil)

		entry.run = func(context.Context, invocation.Invocation, io.Writer) (int, error) {
			innerRunDir = cwd(t)
			entry.commands = append(entry.commands, "inner-script")
			return 2, nil
		}
		report, err := inner.Dispatch(ctx, "tools", invocation.New("install"))
		require.NoError(t, err)

		assert.Equal(t, outerDir, cwd(t), "nested dispatch restores to the enclosing namespace")
		assert.Equal(t, []string{"bin", "install", "outer-script"}, entry.commands)
		return report.ExitCode(), nil
	}

	report, err := outer.Dispatch(context.Background(), "qa", invocation.New("bin", "tools", "install"))
	require.NoError(t, err)

	assert.Equal(t, 2, report.ExitCode())
	assert.Equal(t, realpath(t, filepath.Join(base, "vendor-bin", "qa", "vendor-bin", "tools")), innerRunDir)
	assert.Equal(t, origin, cwd(t))
	assert.Equal(t, []string{"bin", "install"}, entry.commands)
	assert.Equal(t, 2, entry.resets)
}

func TestExecutorNormalizesCodes(t *testing.T) {
	for _, tt := range []struct{ in, want int }{{-1, ExitFailure}, {0, 0}, {7, 7}, {300, MaxExitCode}} {
		assert.Equal(t, tt.want, normalizeCode(tt.in))
	}
}

func TestReportExitCode(t *testing.T) {
	tests := []struct {
		name  string
		codes []int
		want  int
	}{
		{name: "none", codes: nil, want: 0},
		{name: "all succeed", codes: []int{0, 0}, want: 0},
		{name: "one fails", codes: []int{1, 0}, want: 1},
		{name: "two fail", codes: []int{1, 1}, want: 2},
		{name: "clamped", codes: []int{255, 1}, want: MaxExitCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Report
			for _, c := range tt.codes {
				r.Results = append(r.Results, Result{Code: c})
			}
			assert.Equal(t, tt.want, r.ExitCode())
		})
	}
}

func TestReportExitCodeMonotonicInFailures(t *testing.T) {
	prev := 0
	for failing := 0; failing <= 300; failing++ {
		var r Report
		for i := 0; i < failing; i++ {
			r.Results = append(r.Results, Result{Code: ExitFailure})
		}
		r.Results = append(r.Results, Result{Code: ExitSuccess})

		got := r.ExitCode()
		assert.GreaterOrEqual(t, got, prev)
		assert.LessOrEqual(t, got, MaxExitCode)
		assert.Equal(t, failing > 0, got != 0)
		prev = got
	}
}
