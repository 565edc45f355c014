package dispatch

import "fmt"

// ExecutionContext is the process-wide state a namespace run mutates: the
// working directory and the entry point's cache and command registry.
type ExecutionContext struct {
	process Process
	entry   EntryPoint
}

// NewExecutionContext binds a process and an entry point.
func NewExecutionContext(process Process, entry EntryPoint) *ExecutionContext {
	return &ExecutionContext{process: process, entry: entry}
}

// Scope is an acquired execution context. Release must be called exactly once
// the namespace run is over; extra calls are no-ops.
type Scope struct {
	ec          *ExecutionContext
	previousDir string
	commands    []string
	released    bool
}

// Enter captures the current state and changes into dir. On error nothing has
// been changed and there is nothing to release.
func (c *ExecutionContext) Enter(dir string) (*Scope, error) {
	previous, err := c.process.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	commands := c.entry.Commands()

	if err := c.process.Chdir(dir); err != nil {
		return nil, fmt.Errorf("change directory to %s: %w", dir, err)
	}

	return &Scope{
		ec:          c,
		previousDir: previous,
		commands:    commands,
	}, nil
}

// Release restores the working directory captured by Enter, resets the entry
// point and restores its command set. The reset and the command restore happen
// even when changing back fails.
func (s *Scope) Release() error {
	if s == nil || s.released {
		return nil
	}
	s.released = true

	err := s.ec.process.Chdir(s.previousDir)
	s.ec.entry.Reset()
	s.ec.entry.RestoreCommands(s.commands)

	if err != nil {
		return fmt.Errorf("restore working directory %s: %w", s.previousDir, err)
	}
	return nil
}
