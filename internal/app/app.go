// Package app is the vendorbin host: a cobra command tree that is also the
// dispatch entry point, so one invocation can be replayed inside namespaces.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/mattjoyce/vendorbin/internal/config"
	"github.com/mattjoyce/vendorbin/internal/dispatch"
	"github.com/mattjoyce/vendorbin/internal/events"
	"github.com/mattjoyce/vendorbin/internal/forward"
	"github.com/mattjoyce/vendorbin/internal/invocation"
	"github.com/mattjoyce/vendorbin/internal/log"
	"github.com/mattjoyce/vendorbin/internal/manifest"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// VersionInfo describes the running binary.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Options configures an Application. Zero values use the real process.
type Options struct {
	Stdin   io.Reader
	Stderr  io.Writer
	Process dispatch.Process
	Version VersionInfo
}

// project is the manifest found in the working directory. A nil manifest
// means the directory has none.
type project struct {
	dir      string
	manifest *manifest.Manifest
}

func (p *project) script(name string) (manifest.Script, bool) {
	if p.manifest == nil {
		return nil, false
	}
	s, ok := p.manifest.Scripts[name]
	return s, ok
}

// Application owns the command registry, the cached project and the event bus.
// It is not safe for concurrent use.
type Application struct {
	root     *cobra.Command
	builtins map[string]bool
	// catalog remembers every command ever registered so RestoreCommands can
	// bring back one that was removed.
	catalog map[string]*cobra.Command

	process dispatch.Process
	ec      *dispatch.ExecutionContext
	bus     *events.Bus
	stdin   io.Reader
	stderr  io.Writer
	version VersionInfo
	logger  *slog.Logger

	// Per-run state, saved and restored around re-entrant runs.
	project *project
	current invocation.Invocation
	out     io.Writer
	ctx     context.Context
}

var _ dispatch.EntryPoint = (*Application)(nil)

// New builds the command tree and subscribes the forwarding hook.
func New(opts Options) *Application {
	a := &Application{
		builtins: make(map[string]bool),
		catalog:  make(map[string]*cobra.Command),
		process:  opts.Process,
		bus:      events.NewBus(),
		stdin:    opts.Stdin,
		stderr:   opts.Stderr,
		version:  opts.Version,
		logger:   log.WithComponent("app"),
		out:      io.Discard,
		ctx:      context.Background(),
	}
	if a.process == nil {
		a.process = dispatch.OSProcess{}
	}
	if a.stdin == nil {
		a.stdin = os.Stdin
	}
	if a.stderr == nil {
		a.stderr = os.Stderr
	}

	a.ec = dispatch.NewExecutionContext(a.process, a)
	a.root = a.newRootCommand()
	for _, c := range a.root.Commands() {
		a.builtins[c.Name()] = true
		a.catalog[c.Name()] = c
	}

	forward.New(a.dispatchSettings, a, a.output).Register(a.bus)
	return a
}

// Main runs args as a top-level invocation and returns the process exit code.
func (a *Application) Main(ctx context.Context, args []string, stdout io.Writer) int {
	code, err := a.Run(ctx, invocation.New(args...), stdout)
	if err != nil {
		fmt.Fprintln(a.stderr, errorStyle.Render("Error:")+" "+err.Error())
		if code == dispatch.ExitSuccess {
			code = dispatch.ExitFailure
		}
	}
	return min(code, dispatch.MaxExitCode)
}

// Run executes inv against the command tree with command output written to
// out. It may be called again from inside a running command; the caller's
// per-run state is restored on return.
func (a *Application) Run(ctx context.Context, inv invocation.Invocation, out io.Writer) (int, error) {
	prevInv, prevOut, prevCtx := a.current, a.out, a.ctx
	a.current, a.out, a.ctx = inv, out, ctx
	defer func() {
		a.current, a.out, a.ctx = prevInv, prevOut, prevCtx
		a.root.SetOut(prevOut)
	}()

	if dir, ok := inv.WorkingDir(); ok {
		restore, err := a.changeDir(dir)
		if err != nil {
			return dispatch.ExitFailure, err
		}
		defer restore()
	}

	if _, err := a.loadProject(); err != nil {
		return dispatch.ExitFailure, err
	}

	a.logger.Debug("running invocation", "command", inv.Command(), "invocation", inv.String())
	a.root.SetArgs(inv.Tokens())
	a.root.SetIn(a.stdin)
	a.root.SetOut(out)
	a.root.SetErr(a.stderr)

	err := a.root.ExecuteContext(ctx)
	if err == nil {
		return dispatch.ExitSuccess, nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(a.stderr, errorStyle.Render("Error:")+" "+exitErr.Err.Error())
		}
		return exitErr.Code, nil
	}
	return dispatch.ExitFailure, err
}

// Reset drops the cached project and returns every flag to its default.
func (a *Application) Reset() {
	a.project = nil
	resetFlags(a.root)
	for _, c := range a.catalog {
		resetFlags(c)
	}
}

// Commands returns the sorted names of the registered top-level commands.
func (a *Application) Commands() []string {
	var names []string
	for _, c := range a.root.Commands() {
		names = append(names, c.Name())
	}
	slices.Sort(names)
	return names
}

// RestoreCommands makes the registered top-level commands exactly names.
// Names never seen before are ignored.
func (a *Application) RestoreCommands(names []string) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	present := make(map[string]bool)
	for _, c := range a.root.Commands() {
		// Commands cobra adds itself, such as help, are first seen here.
		a.catalog[c.Name()] = c
		if !want[c.Name()] {
			a.root.RemoveCommand(c)
			a.logger.Debug("command unregistered", "command", c.Name())
			continue
		}
		present[c.Name()] = true
	}

	for _, n := range names {
		if present[n] {
			continue
		}
		if c, ok := a.catalog[n]; ok {
			a.root.AddCommand(c)
		}
	}
}

func (a *Application) changeDir(dir string) (func(), error) {
	prev, err := a.process.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	if err := a.process.Chdir(dir); err != nil {
		return nil, fmt.Errorf("invalid working directory %q: %w", dir, err)
	}
	return func() {
		if err := a.process.Chdir(prev); err != nil {
			a.logger.Error("failed to restore working directory", "dir", prev, "error", err)
		}
	}, nil
}

// loadProject returns the cached project, loading it from the working
// directory on first use. Loading registers the manifest scripts as commands.
func (a *Application) loadProject() (*project, error) {
	if a.project != nil {
		return a.project, nil
	}

	dir, err := a.process.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	m, err := manifest.Load(dir)
	if err != nil && !errors.Is(err, manifest.ErrNotFound) {
		return nil, err
	}

	a.project = &project{dir: dir, manifest: m}
	a.registerScripts(a.project)
	a.logger.Debug("project loaded", "dir", dir, "manifest", m != nil)
	return a.project, nil
}

// dispatchSettings returns the dispatch configuration of the current project.
func (a *Application) dispatchSettings(context.Context) (config.Config, error) {
	proj, err := a.loadProject()
	if err != nil {
		return config.Config{}, err
	}
	cfg, _, err := config.FromManifest(proj.manifest)
	return cfg, err
}

// output returns the writer of the innermost running invocation.
func (a *Application) output() io.Writer { return a.out }

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(defaultSlice(f.DefValue))
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// defaultSlice parses pflag's "[a,b]" rendering of a slice default.
func defaultSlice(def string) []string {
	def = strings.TrimSuffix(strings.TrimPrefix(def, "["), "]")
	if def == "" {
		return []string{}
	}
	return strings.Split(def, ",")
}
