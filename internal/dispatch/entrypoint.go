package dispatch

import (
	"context"
	"io"
	"os"

	"github.com/mattjoyce/vendorbin/internal/invocation"
)

const (
	ExitSuccess = 0
	ExitFailure = 1

	// MaxExitCode is the largest exit code a process can report.
	MaxExitCode = 255
)

//go:generate mockgen -destination=mocks/mock_entrypoint.go -package=mocks github.com/mattjoyce/vendorbin/internal/dispatch EntryPoint

// EntryPoint is the command-execution entry point invocations are replayed through.
type EntryPoint interface {
	// Run executes inv and returns its exit code. A non-nil error means the
	// command could not be run at all and is propagated to the caller.
	Run(ctx context.Context, inv invocation.Invocation, out io.Writer) (int, error)

	// Reset drops any project state derived from the previous working directory.
	Reset()

	// Commands returns the names of the currently registered commands.
	Commands() []string

	// RestoreCommands makes the registered command set equal to names.
	RestoreCommands(names []string)
}

// Process is the process-wide working directory.
type Process interface {
	Getwd() (string, error)
	Chdir(dir string) error
}

// OSProcess is the real process.
type OSProcess struct{}

var _ Process = OSProcess{}

func (OSProcess) Getwd() (string, error) { return os.Getwd() }

func (OSProcess) Chdir(dir string) error { return os.Chdir(dir) }
