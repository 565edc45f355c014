// Package forward replays selected top-level commands in every namespace
// before the command itself runs in the root project.
package forward

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mattjoyce/vendorbin/internal/config"
	"github.com/mattjoyce/vendorbin/internal/events"
	"github.com/mattjoyce/vendorbin/internal/invocation"
	"github.com/mattjoyce/vendorbin/internal/log"
)

// ErrForwardingFailed matches every VetoError.
var ErrForwardingFailed = errors.New("forwarded command failed")

// Runner executes an invocation through the host entry point.
type Runner interface {
	Run(ctx context.Context, inv invocation.Invocation, out io.Writer) (int, error)
}

// SettingsFunc returns the dispatch configuration of the current project.
type SettingsFunc func(ctx context.Context) (config.Config, error)

// OutputFunc returns the writer of the command being run when the event fires.
type OutputFunc func() io.Writer

// VetoError stops the top-level command after a failed forward.
type VetoError struct {
	Command string
	Code    int
	Err     error
}

func (e *VetoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("forwarding %q to all namespaces: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("forwarding %q to all namespaces exited with code %d", e.Command, e.Code)
}

func (e *VetoError) Unwrap() error { return e.Err }

func (e *VetoError) Is(target error) bool { return target == ErrForwardingFailed }

// Hook listens for events.PreCommand.
type Hook struct {
	settings SettingsFunc
	runner   Runner
	out      OutputFunc
	logger   *slog.Logger
}

func New(settings SettingsFunc, runner Runner, out OutputFunc) *Hook {
	return &Hook{
		settings: settings,
		runner:   runner,
		out:      out,
		logger:   log.WithComponent("forward"),
	}
}

// Register subscribes the hook and returns the unsubscribe function.
func (h *Hook) Register(bus *events.Bus) func() {
	return bus.Subscribe(events.PreCommand, h.HandlePreCommand)
}

// HandlePreCommand runs "bin all <command> <args>" when the command is
// configured for forwarding. Commands already running inside a dispatch are
// never forwarded again.
func (h *Hook) HandlePreCommand(ctx context.Context, ev events.Event) error {
	env, err := config.LoadEnvironment()
	if err != nil {
		return err
	}
	if env.DispatchDepth > 0 {
		return nil
	}

	cfg, err := h.settings(ctx)
	if err != nil {
		return err
	}
	if !cfg.Forwards(ev.Command) {
		return nil
	}

	inv := invocation.Forwarding(ev.Command, ev.Args)
	h.logger.Info("forwarding command to all namespaces", "command", ev.Command, "invocation", inv.String())

	code, err := h.runner.Run(ctx, inv, h.out())
	if err != nil {
		return &VetoError{Command: ev.Command, Code: 1, Err: err}
	}
	if code != 0 {
		return &VetoError{Command: ev.Command, Code: code}
	}
	return nil
}
