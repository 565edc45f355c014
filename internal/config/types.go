package config

import "slices"

const (
	// SectionName is the manifest extra section holding dispatch settings.
	SectionName = "bin"

	KeyBinLinks        = "bin-links"
	KeyTargetDirectory = "target-directory"
	KeyForwardCommand  = "forward-command"

	// DefaultTargetDirectory is the namespace root used when none is configured.
	DefaultTargetDirectory = "vendor-bin"
)

// forwardAll is what "forward-command": true expands to.
var forwardAll = []string{"install", "update"}

// Config is the dispatch configuration. It is immutable once built; accessors
// return copies.
type Config struct {
	linksEnabled      bool
	targetDirectory   string
	forwardedCommands []string
}

// Defaults returns the configuration used for missing keys.
func Defaults() Config {
	return Config{
		linksEnabled:      true,
		targetDirectory:   DefaultTargetDirectory,
		forwardedCommands: []string{},
	}
}

// LinksEnabled reports whether namespaced installs should place their
// executables in the root project's bin directory.
func (c Config) LinksEnabled() bool { return c.linksEnabled }

// TargetDirectory is the namespace root, relative to the project directory.
func (c Config) TargetDirectory() string { return c.targetDirectory }

// ForwardedCommands returns the top-level commands that are replayed in every namespace.
func (c Config) ForwardedCommands() []string { return slices.Clone(c.forwardedCommands) }

// Forwards reports whether command is replayed in every namespace.
func (c Config) Forwards(command string) bool {
	return slices.Contains(c.forwardedCommands, command)
}

// Notice is a non-fatal message about a setting, e.g. a default that will change.
type Notice struct {
	Key     string
	Message string
}

func (n Notice) String() string { return n.Message }
