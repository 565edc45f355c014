package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattjoyce/vendorbin/internal/manifest"
	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// registerScripts adds a top-level command for every manifest script that is
// not already a command. Script commands look the script up in the current
// project when they run.
func (a *Application) registerScripts(p *project) {
	if p.manifest == nil {
		return
	}

	registered := make(map[string]bool)
	for _, c := range a.root.Commands() {
		registered[c.Name()] = true
	}

	for _, name := range p.manifest.ScriptNames() {
		if registered[name] || strings.ContainsAny(name, " \t") {
			continue
		}
		cmd, ok := a.catalog[name]
		if !ok {
			cmd = a.newScriptCommand(name)
			a.catalog[name] = cmd
		}
		a.root.AddCommand(cmd)
		a.logger.Debug("script registered", "script", name, "manifest", p.manifest.Path)
	}
}

func (a *Application) newScriptCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:                name + " [args...]",
		Short:              fmt.Sprintf("Run the %q script from %s", name, manifest.Filename),
		DisableFlagParsing: true,
		Annotations:        map[string]string{"source": "script"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if wantsHelp(args) {
				return cmd.Help()
			}
			return a.runNamedScript(cmd, name, passthroughArgs(args))
		},
	}
}

func (a *Application) runNamedScript(cmd *cobra.Command, name string, args []string) error {
	proj, err := a.loadProject()
	if err != nil {
		return err
	}
	script, ok := proj.script(name)
	if !ok {
		return &ExitError{Code: 1, Err: fmt.Errorf("script %q is not defined in %s", name, manifest.Path(proj.dir))}
	}
	return a.runScript(cmd, proj, name, script, args)
}

// runScript interprets each script line in the project directory, stopping at
// the first line that fails. args are the positional parameters of every line.
func (a *Application) runScript(cmd *cobra.Command, proj *project, name string, script manifest.Script, args []string) error {
	runner, err := interp.New(
		interp.Dir(proj.dir),
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(a.stdin, cmd.OutOrStdout(), cmd.ErrOrStderr()),
		interp.Params(append([]string{"--"}, args...)...),
	)
	if err != nil {
		return fmt.Errorf("create interpreter: %w", err)
	}

	parser := syntax.NewParser()
	for i, line := range script {
		prog, err := parser.Parse(strings.NewReader(line), fmt.Sprintf("%s[%d]", name, i))
		if err != nil {
			return &ExitError{Code: 1, Err: fmt.Errorf("parse script %q: %w", name, err)}
		}

		a.logger.Debug("running script line", "script", name, "line", line, "dir", proj.dir)
		if err := runner.Run(a.ctx, prog); err != nil {
			var status interp.ExitStatus
			if errors.As(err, &status) {
				return &ExitError{Code: int(status)}
			}
			return &ExitError{Code: 1, Err: fmt.Errorf("script %q: %w", name, err)}
		}
	}
	return nil
}
