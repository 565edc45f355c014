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

// Result is the outcome of one namespace run.
type Result struct {
	Namespace namespace.Namespace
	Code      int

	// Err is set when the namespace could not be prepared and the invocation
	// was not run. Code is ExitFailure in that case.
	Err error
}

// Skipped reports whether the invocation never ran in this namespace.
func (r Result) Skipped() bool { return r.Err != nil }

// Executor runs an invocation inside a single namespace.
type Executor struct {
	namespaces *namespace.Manager
	ec         *ExecutionContext
	out        io.Writer
}

// NewExecutor creates an Executor writing command output to out.
func NewExecutor(namespaces *namespace.Manager, ec *ExecutionContext, out io.Writer) *Executor {
	return &Executor{
		namespaces: namespaces,
		ec:         ec,
		out:        out,
	}
}

// Execute prepares ns, runs inner there with the working directory pinned to
// the namespace, and restores the execution context before returning.
//
// Preparation failures are reported in Result.Err with a nil error. An error
// from the entry point is returned after the execution context is restored.
func (e *Executor) Execute(ctx context.Context, ns namespace.Namespace, inner invocation.Invocation) (res Result, err error) {
	res = Result{Namespace: ns, Code: ExitFailure}
	logger := log.WithNamespace(ns.Name).With(slog.String("component", "executor"))

	if err := e.namespaces.Ensure(ctx, ns); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		logger.Error("namespace preparation failed", "path", ns.Path, "error", err)
		res.Err = err
		return res, nil
	}

	scope, err := e.ec.Enter(ns.Path)
	if err != nil {
		logger.Error("failed to enter namespace", "path", ns.Path, "error", err)
		res.Err = err
		return res, nil
	}
	defer func() {
		if releaseErr := scope.Release(); releaseErr != nil {
			logger.Error("failed to restore execution context", "error", releaseErr)
			if err == nil {
				err = releaseErr
			}
		}
	}()

	inv := invocation.Namespaced(inner)
	logger.Debug("running in namespace", "path", ns.Path, "invocation", inv.String())

	code, runErr := e.ec.entry.Run(ctx, inv, e.out)
	if runErr != nil {
		return res, fmt.Errorf("namespace %q: %w", ns.Name, runErr)
	}

	res.Code = normalizeCode(code)
	logger.Debug("namespace run finished", "exit_code", res.Code)
	return res, nil
}

func normalizeCode(code int) int {
	switch {
	case code < 0:
		return ExitFailure
	case code > MaxExitCode:
		return MaxExitCode
	default:
		return code
	}
}
