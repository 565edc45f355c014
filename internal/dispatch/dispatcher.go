package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mattjoyce/vendorbin/internal/invocation"
	"github.com/mattjoyce/vendorbin/internal/log"
	"github.com/mattjoyce/vendorbin/internal/namespace"
)

// Observer is told about dispatch progress, typically to print it.
type Observer interface {
	NamespaceStarted(ns namespace.Namespace)
	NamespaceSkipped(ns namespace.Namespace, err error)
	NoNamespaces(root string)
}

type noopObserver struct{}

func (noopObserver) NamespaceStarted(namespace.Namespace)        {}
func (noopObserver) NamespaceSkipped(namespace.Namespace, error) {}
func (noopObserver) NoNamespaces(string)                         {}

// Report collects the per-namespace results of one dispatch.
type Report struct {
	Selector string
	Results  []Result
}

// Total is the raw sum of the per-namespace exit codes.
func (r Report) Total() int {
	total := 0
	for _, res := range r.Results {
		total += res.Code
	}
	return total
}

// ExitCode is Total clamped to MaxExitCode: zero iff every namespace succeeded.
func (r Report) ExitCode() int {
	return min(r.Total(), MaxExitCode)
}

// Failed returns the results with a non-zero code.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Code != ExitSuccess {
			out = append(out, res)
		}
	}
	return out
}

// Dispatcher resolves a selector and executes an invocation in each namespace, serially.
type Dispatcher struct {
	namespaces *namespace.Manager
	executor   *Executor
	observer   Observer
	logger     *slog.Logger
}

// New creates a Dispatcher. observer may be nil.
func New(namespaces *namespace.Manager, ec *ExecutionContext, out io.Writer, observer Observer) *Dispatcher {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Dispatcher{
		namespaces: namespaces,
		executor:   NewExecutor(namespaces, ec, out),
		observer:   observer,
		logger:     log.WithComponent("dispatch"),
	}
}

// Dispatch runs inner in every namespace selected by selector, in resolved
// order. It stops at the first error returned by the entry point and returns
// the partial report with it.
func (d *Dispatcher) Dispatch(ctx context.Context, selector string, inner invocation.Invocation) (Report, error) {
	report := Report{Selector: selector}

	namespaces, err := d.namespaces.Resolve(ctx, selector)
	if err != nil {
		return report, fmt.Errorf("resolve namespaces: %w", err)
	}
	if len(namespaces) == 0 {
		d.logger.Warn("no namespaces found", "root", d.namespaces.Root())
		d.observer.NoNamespaces(d.namespaces.Root())
		return report, nil
	}

	d.logger.Debug("dispatch started", "selector", selector, "namespaces", len(namespaces))
	for _, ns := range namespaces {
		d.observer.NamespaceStarted(ns)

		res, err := d.executor.Execute(ctx, ns, inner)
		report.Results = append(report.Results, res)
		if err != nil {
			return report, err
		}
		if res.Skipped() {
			d.observer.NamespaceSkipped(ns, res.Err)
		}
	}

	d.logger.Debug("dispatch finished", "selector", selector, "total", report.Total(), "exit_code", report.ExitCode())
	return report, nil
}
