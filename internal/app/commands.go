package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/mattjoyce/vendorbin/internal/config"
	"github.com/mattjoyce/vendorbin/internal/doctor"
	"github.com/mattjoyce/vendorbin/internal/events"
	"github.com/mattjoyce/vendorbin/internal/forward"
	"github.com/mattjoyce/vendorbin/internal/history"
	"github.com/mattjoyce/vendorbin/internal/invocation"
	"github.com/mattjoyce/vendorbin/internal/manifest"
	"github.com/spf13/cobra"
)

func (a *Application) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "vendorbin",
		Short: "Run commands inside isolated bin namespaces",
		Long: titleStyle.Render("vendorbin") + subtitleStyle.Render(" - isolated tool namespaces for a project") + `

Each directory under the target root (vendor-bin/ by default) is a namespace
with its own ` + manifest.Filename + `. "vendorbin bin <namespace> <command>"
runs the command inside one namespace, "vendorbin bin all <command>" runs it in
every namespace and sums the exit codes.

` + subtitleStyle.Render("Examples:") + `
  vendorbin bin phpstan install     Install the phpstan namespace
  vendorbin bin all update          Update every namespace
  vendorbin bin all run lint -- -q  Run the lint script everywhere`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	// Parsed so cobra accepts them anywhere; Run reads the working directory
	// from the raw invocation before cobra sees it.
	var (
		workingDir string
		verbose    bool
	)
	root.PersistentFlags().StringVarP(&workingDir, "working-dir", "d", "", "use the given directory as working directory")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.newBinCommand(),
		a.newPackageCommand("install", "Run the install script of the project", "Nothing to install"),
		a.newPackageCommand("update", "Run the update script of the project", "Nothing to update"),
		a.newRunCommand(),
		a.newShowCommand(),
		a.newConfigCommand(),
		a.newDoctorCommand(),
		a.newHistoryCommand(),
		a.newVersionCommand(),
	)
	return root
}

// newPackageCommand builds install and update: fire the pre-command event,
// which may forward the command to every namespace, then run the project
// script of the same name.
func (a *Application) newPackageCommand(name, short, nothing string) *cobra.Command {
	return &cobra.Command{
		Use:                name + " [args...]",
		Short:              short,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wantsHelp(args) {
				return cmd.Help()
			}
			args = passthroughArgs(args)

			if err := a.bus.Fire(a.ctx, events.PreCommand, name, args); err != nil {
				var veto *forward.VetoError
				if errors.As(err, &veto) {
					return &ExitError{Code: veto.Code, Err: err}
				}
				return err
			}

			proj, err := a.loadProject()
			if err != nil {
				return err
			}
			script, ok := proj.script(name)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), subtitleStyle.Render(nothing))
				return nil
			}
			return a.runScript(cmd, proj, name, script, args)
		},
	}
}

func (a *Application) newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "run <script> [args...]",
		Short:              "Run a script from " + manifest.Filename,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wantsHelp(args) {
				return cmd.Help()
			}
			args = passthroughArgs(args)
			if len(args) == 0 {
				return errors.New("missing script name")
			}
			return a.runNamedScript(cmd, args[0], args[1:])
		},
	}
}

func (a *Application) newShowCommand() *cobra.Command {
	var tree bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the project manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			proj, err := a.loadProject()
			if err != nil {
				return err
			}
			if proj.manifest == nil {
				return &ExitError{Code: 1, Err: fmt.Errorf("no %s found in %s", manifest.Filename, proj.dir)}
			}
			if tree {
				printRequireTree(cmd.OutOrStdout(), proj)
				return nil
			}
			printManifest(cmd.OutOrStdout(), proj)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&tree, "tree", "t", false, "list requirements as a tree")
	return cmd
}

func (a *Application) newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective bin configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			proj, err := a.loadProject()
			if err != nil {
				return err
			}
			cfg, notices, err := config.FromManifest(proj.manifest)
			if err != nil {
				return err
			}
			out, err := config.Render(cfg, notices)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func (a *Application) newDoctorCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the bin settings and every namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			proj, err := a.loadProject()
			if err != nil {
				return err
			}
			result := doctor.New(proj.dir, proj.manifest).Validate(a.ctx)

			if asJSON {
				out, err := doctor.FormatJSON(result)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
			} else {
				fmt.Fprint(cmd.OutOrStdout(), doctor.FormatHuman(result))
			}

			if !result.Valid {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the report as JSON")
	return cmd
}

func (a *Application) newHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent dispatches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := config.LoadEnvironment()
			if err != nil {
				return err
			}
			if env.HistoryPath == "" {
				return &ExitError{Code: 1, Err: errors.New("history is disabled; set VENDORBIN_HISTORY to a database path")}
			}

			journal, err := history.Open(a.ctx, env.HistoryPath)
			if err != nil {
				return err
			}
			defer func() { _ = journal.Close() }()

			runs, err := journal.Recent(a.ctx, limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "number of runs to list")
	return cmd
}

func (a *Application) newVersionCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(a.version)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vendorbin %s (commit %s, built %s)\n",
				a.version.Version, a.version.Commit, a.version.BuildTime)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output version metadata as JSON")
	return cmd
}

// wantsHelp reports whether a command that parses its own arguments was asked for help.
func wantsHelp(args []string) bool {
	return len(args) > 0 && (args[0] == "-h" || args[0] == "--help")
}

// passthroughArgs drops the global options and the first terminator from the
// arguments of a command that does its own parsing. args follow the command
// name, so "-dVALUE" is an argument there, not the working directory.
func passthroughArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		tok := args[i]
		switch {
		case tok == invocation.Terminator:
			return append(out, args[i+1:]...)
		case tok == invocation.WorkingDirFlag, tok == invocation.WorkingDirShortFlag:
			i++
		case strings.HasPrefix(tok, invocation.WorkingDirFlag+"="),
			tok == "-v", tok == "--verbose":
		default:
			out = append(out, tok)
		}
	}
	return out
}

func printManifest(w io.Writer, proj *project) {
	m := proj.manifest
	name := m.Name
	if name == "" {
		name = filepath.Base(proj.dir)
	}
	fmt.Fprintln(w, titleStyle.Render(name))
	fmt.Fprintf(w, "%s %s\n", subtitleStyle.Render("manifest:"), m.Path)
	fmt.Fprintf(w, "%s %s\n", subtitleStyle.Render("fingerprint:"), m.Fingerprint)

	if len(m.Require) > 0 {
		fmt.Fprintln(w, subtitleStyle.Render("requires:"))
		for _, pkg := range sortedKeys(m.Require) {
			fmt.Fprintf(w, "  %s %s\n", cmdStyle.Render(pkg), m.Require[pkg])
		}
	}
	if names := m.ScriptNames(); len(names) > 0 {
		fmt.Fprintln(w, subtitleStyle.Render("scripts:"))
		for _, s := range names {
			fmt.Fprintf(w, "  %s\n", cmdStyle.Render(s))
		}
	}
}

func printRequireTree(w io.Writer, proj *project) {
	m := proj.manifest
	name := m.Name
	if name == "" {
		name = filepath.Base(proj.dir)
	}
	fmt.Fprintln(w, titleStyle.Render(name))

	pkgs := sortedKeys(m.Require)
	for i, pkg := range pkgs {
		branch := "├── "
		if i == len(pkgs)-1 {
			branch = "└── "
		}
		fmt.Fprintf(w, "%s%s %s\n", branch, cmdStyle.Render(pkg), m.Require[pkg])
	}
}

func printHistory(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, subtitleStyle.Render("No dispatches recorded"))
		return
	}
	for _, run := range runs {
		status := successStyle.Render("ok")
		if run.ExitCode != 0 || run.Error != "" {
			status = errorStyle.Render(fmt.Sprintf("exit %d", run.ExitCode))
		}
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			subtitleStyle.Render(run.StartedAt.Local().Format("2006-01-02 15:04:05")),
			status, run.Invocation, subtitleStyle.Render(run.Duration().Round(time.Millisecond).String()))
		for _, ns := range run.Namespaces {
			switch {
			case ns.SkippedReason != "":
				fmt.Fprintf(w, "    %s skipped: %s\n", cmdStyle.Render(ns.Name), ns.SkippedReason)
			default:
				fmt.Fprintf(w, "    %s exit %d\n", cmdStyle.Render(ns.Name), ns.ExitCode)
			}
		}
		if run.Error != "" {
			fmt.Fprintf(w, "    %s %s\n", errorStyle.Render("error:"), run.Error)
		}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
