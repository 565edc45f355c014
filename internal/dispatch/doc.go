// Package dispatch runs an invocation inside one or all namespaces and
// aggregates the exit codes.
//
// The command-execution entry point and the process working directory are
// process-wide state. Every namespace run is bracketed by an ExecutionContext
// scope:
//   - Enter captures the working directory and the entry point's command set,
//     then changes into the namespace directory
//   - Release changes back, resets the entry point's cached project and
//     restores the command set, on every exit path including panics
//
// Namespaces run strictly one after another; namespace N+1 starts only after
// namespace N's scope has been released. A dispatch started from inside a
// namespace run nests naturally: its scopes restore to the namespace directory,
// not to the outermost caller's.
//
// Error handling:
//   - Namespace preparation failure (directory, manifest, chdir) → the
//     namespace is skipped with exit code 1 and the batch continues
//   - Error returned by the entry point → the batch stops and the error is
//     returned after the scope is released
//   - No namespaces under "all" → warning, exit code 0
//
// Aggregation sums per-namespace codes and clamps the sum to MaxExitCode.
package dispatch
