// Package doctor validates a project's bin settings and namespace layout.
package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/vendorbin/internal/config"
	"github.com/mattjoyce/vendorbin/internal/lock"
	"github.com/mattjoyce/vendorbin/internal/manifest"
	"github.com/mattjoyce/vendorbin/internal/namespace"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid      bool     `json:"valid"`
	Root       string   `json:"root,omitempty"`
	Namespaces []string `json:"namespaces,omitempty"`
	Errors     []Issue  `json:"errors,omitempty"`
	Warnings   []Issue  `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// forwardable lists the commands that fire the pre-command event.
var forwardable = map[string]bool{"install": true, "update": true}

// Doctor validates the project rooted at dir. A nil manifest means the
// directory has none.
type Doctor struct {
	dir      string
	manifest *manifest.Manifest
}

// New creates a Doctor for a project directory and its loaded manifest.
func New(dir string, m *manifest.Manifest) *Doctor {
	return &Doctor{dir: dir, manifest: m}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	if d.manifest == nil {
		d.addWarning(r, "manifest", "", fmt.Sprintf("no %s in %s, defaults apply", manifest.Filename, d.dir))
	}

	cfg, ok := d.validateSettings(r)
	if ok {
		d.warnUnforwardableCommands(r, cfg)
		d.validateNamespaces(ctx, r, cfg)
	}

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateSettings decodes extra.bin and reports invalid values and notices.
func (d *Doctor) validateSettings(r *Result) (config.Config, bool) {
	cfg, notices, err := config.FromManifest(d.manifest)
	if err != nil {
		field := settingsField("")
		var invalid *config.InvalidValueError
		if errors.As(err, &invalid) {
			field = settingsField(invalid.Key)
		}
		d.addError(r, "config", field, err.Error())
		return config.Config{}, false
	}
	for _, n := range notices {
		d.addWarning(r, "deprecated", settingsField(n.Key), n.Message)
	}
	return cfg, true
}

// warnUnforwardableCommands flags forward-command entries no command fires.
func (d *Doctor) warnUnforwardableCommands(r *Result, cfg config.Config) {
	for _, cmd := range cfg.ForwardedCommands() {
		if !forwardable[cmd] {
			d.addWarning(r, "config", settingsField(config.KeyForwardCommand),
				fmt.Sprintf("%q is never forwarded; only install and update are", cmd))
		}
	}
}

// validateNamespaces checks every directory under the target root.
func (d *Doctor) validateNamespaces(ctx context.Context, r *Result, cfg config.Config) {
	mgr, err := namespace.NewManager(filepath.Join(d.dir, cfg.TargetDirectory()))
	if err != nil {
		d.addError(r, "namespaces", settingsField(config.KeyTargetDirectory), err.Error())
		return
	}
	r.Root = mgr.Root()

	namespaces, err := mgr.Resolve(ctx, namespace.All)
	if err != nil {
		d.addError(r, "namespaces", "", err.Error())
		return
	}
	if len(namespaces) == 0 {
		d.addWarning(r, "namespaces", "", fmt.Sprintf("no namespaces in %s", mgr.Root()))
	}

	for _, ns := range namespaces {
		r.Namespaces = append(r.Namespaces, ns.Name)
		field := "namespaces." + ns.Name

		if ns.Name == namespace.All {
			d.addWarning(r, "namespaces", field,
				fmt.Sprintf("namespace %q can only be reached through the all selector", ns.Name))
		}

		_, err := manifest.Load(ns.Path)
		switch {
		case errors.Is(err, manifest.ErrNotFound):
			d.addWarning(r, "namespaces", field,
				fmt.Sprintf("no %s yet, one is created on the next dispatch", manifest.Filename))
		case err != nil:
			d.addError(r, "namespaces", field, err.Error())
		}
	}

	d.checkLock(r, mgr.Root())
}

// checkLock warns when another dispatch currently holds the root's lock.
func (d *Doctor) checkLock(r *Result, root string) {
	lk, err := lock.Acquire(lock.PathFor(root))
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			d.addWarning(r, "lock", "", err.Error())
			return
		}
		d.addError(r, "lock", "", err.Error())
		return
	}
	if err := lk.Release(); err != nil {
		d.addError(r, "lock", "", err.Error())
	}
}

func settingsField(key string) string {
	field := "extra." + config.SectionName
	switch {
	case key == "", key == field:
		return field
	default:
		return field + "." + key
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Configuration valid.\n")
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	if r.Root != "" {
		fmt.Fprintf(&b, "  root: %s (%d namespace(s))\n", r.Root, len(r.Namespaces))
	}
	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}

	return b.String()
}

func writeIssue(b *strings.Builder, level string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", level, i.Category, i.Field, i.Message)
	} else {
		fmt.Fprintf(b, "  %s [%s] %s\n", level, i.Category, i.Message)
	}
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
