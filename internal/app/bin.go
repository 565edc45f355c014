package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/vendorbin/internal/config"
	"github.com/mattjoyce/vendorbin/internal/dispatch"
	"github.com/mattjoyce/vendorbin/internal/history"
	"github.com/mattjoyce/vendorbin/internal/invocation"
	"github.com/mattjoyce/vendorbin/internal/lock"
	"github.com/mattjoyce/vendorbin/internal/log"
	"github.com/mattjoyce/vendorbin/internal/namespace"
	"github.com/spf13/cobra"
)

func (a *Application) newBinCommand() *cobra.Command {
	return &cobra.Command{
		Use:   invocation.Verb + " <namespace|all> [command] [args...]",
		Short: "Run a command inside one namespace or all of them",
		Long: `Run a command inside one namespace or all of them.

The namespace directory and a minimal ` + "vendorbin.json" + ` are created on
first use. With "all" every directory under the target root is visited in
name order and the exit code is the sum of the namespace exit codes, capped
at 255.`,
		DisableFlagParsing: true,
		RunE:               a.runBin,
	}
}

func (a *Application) runBin(cmd *cobra.Command, args []string) error {
	if wantsHelp(args) {
		return cmd.Help()
	}

	selector, err := invocation.Selector(a.current)
	if err != nil {
		return err
	}
	inner, err := invocation.Inner(selector, a.current)
	if err != nil {
		return err
	}

	proj, err := a.loadProject()
	if err != nil {
		return err
	}
	// Invalid settings abort here, before any namespace is touched.
	cfg, notices, err := config.FromManifest(proj.manifest)
	if err != nil {
		return err
	}
	env, err := config.LoadEnvironment()
	if err != nil {
		return err
	}

	mgr, err := namespace.NewManager(filepath.Join(proj.dir, cfg.TargetDirectory()))
	if err != nil {
		return err
	}

	topLevel := env.DispatchDepth == 0
	if topLevel {
		for _, n := range notices {
			fmt.Fprintln(a.stderr, warningStyle.Render("Warning:")+" "+n.Message)
		}
		release, err := a.enterTopLevel(proj.dir, mgr.Root(), cfg, env)
		if err != nil {
			return err
		}
		defer release()
	}

	// Namespaces load their own manifests; nothing from this project may leak in.
	a.project = nil

	started := time.Now()
	observer := &consoleObserver{w: a.stderr, base: proj.dir}
	report, dispatchErr := dispatch.New(mgr, a.ec, cmd.OutOrStdout(), observer).Dispatch(a.ctx, selector, inner)

	if topLevel && env.HistoryPath != "" {
		a.recordHistory(env.HistoryPath, proj.dir, report, dispatchErr, started)
	}

	if dispatchErr != nil {
		return dispatchErr
	}
	if failed := report.Failed(); len(failed) > 0 && len(report.Results) > 1 {
		observer.summarize(failed, len(report.Results))
	}
	if code := report.ExitCode(); code != dispatch.ExitSuccess {
		return &ExitError{Code: code}
	}
	return nil
}

// enterTopLevel takes the dispatch lock and exports the dispatch environment
// for the namespaces. The returned function undoes both.
func (a *Application) enterTopLevel(projectDir, root string, cfg config.Config, env config.Environment) (func(), error) {
	lk, err := lock.Acquire(lock.PathFor(root))
	if err != nil {
		return nil, err
	}

	restores := []func(){
		setEnv(config.EnvDispatchDepth, strconv.Itoa(env.DispatchDepth+1)),
	}
	if cfg.LinksEnabled() {
		restores = append(restores, setEnv(config.EnvBinDir, filepath.Join(projectDir, "vendor", "bin")))
	}

	return func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		if err := lk.Release(); err != nil {
			a.logger.Warn("failed to release dispatch lock", "path", lk.Path(), "error", err)
		}
	}, nil
}

// setEnv sets key and returns a function restoring its previous state.
func setEnv(key, value string) func() {
	prev, had := os.LookupEnv(key)
	_ = os.Setenv(key, value)
	return func() {
		if had {
			_ = os.Setenv(key, prev)
		} else {
			_ = os.Unsetenv(key)
		}
	}
}

func (a *Application) recordHistory(path, projectDir string, report dispatch.Report, dispatchErr error, started time.Time) {
	// The journal outlives a cancelled dispatch.
	ctx := context.WithoutCancel(a.ctx)

	journal, err := history.Open(ctx, path)
	if err != nil {
		a.logger.Warn("history unavailable", "path", path, "error", err)
		return
	}
	defer func() { _ = journal.Close() }()

	run := history.Run{
		Selector:   report.Selector,
		Invocation: a.current.String(),
		ProjectDir: projectDir,
		ExitCode:   report.ExitCode(),
		Total:      report.Total(),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if dispatchErr != nil {
		run.Error = dispatchErr.Error()
		run.ExitCode = dispatch.ExitFailure
	}
	for _, res := range report.Results {
		nr := history.NamespaceRun{Name: res.Namespace.Name, Path: res.Namespace.Path, ExitCode: res.Code}
		if res.Err != nil {
			nr.SkippedReason = res.Err.Error()
		}
		run.Namespaces = append(run.Namespaces, nr)
	}

	run, err = journal.Record(ctx, run)
	if err != nil {
		a.logger.Warn("failed to record dispatch", "error", err)
		return
	}
	log.WithRun(run.ID).Debug("dispatch recorded", "selector", run.Selector, "exit_code", run.ExitCode)
}

// consoleObserver prints dispatch progress.
type consoleObserver struct {
	w    io.Writer
	base string
}

func (o *consoleObserver) rel(path string) string {
	if r, err := filepath.Rel(o.base, path); err == nil {
		return r
	}
	return path
}

func (o *consoleObserver) NamespaceStarted(ns namespace.Namespace) {
	fmt.Fprintf(o.w, "%s %s\n", subtitleStyle.Render("Checking namespace"), cmdStyle.Render(o.rel(ns.Path)))
}

func (o *consoleObserver) NamespaceSkipped(ns namespace.Namespace, err error) {
	fmt.Fprintf(o.w, "%s %s: %v\n", errorStyle.Render("Skipped namespace"), cmdStyle.Render(o.rel(ns.Path)), err)
}

// summarize lists the namespaces of a multi-namespace dispatch that failed.
func (o *consoleObserver) summarize(failed []dispatch.Result, total int) {
	parts := make([]string, 0, len(failed))
	for _, res := range failed {
		parts = append(parts, fmt.Sprintf("%s (exit %d)", res.Namespace.Name, res.Code))
	}
	fmt.Fprintf(o.w, "%s %s\n",
		errorStyle.Render(fmt.Sprintf("Failed in %d of %d namespaces:", len(failed), total)),
		strings.Join(parts, ", "))
}

func (o *consoleObserver) NoNamespaces(root string) {
	fmt.Fprintf(o.w, "%s %s\n", warningStyle.Render("Couldn't find any bin namespace in"), o.rel(root))
}
