package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Environment variable names shared with commands running inside namespaces.
const (
	EnvBinDir        = "VENDORBIN_BIN_DIR"
	EnvDispatchDepth = "VENDORBIN_DISPATCH_DEPTH"
)

// Environment holds process-level settings read from environment variables.
type Environment struct {
	LogLevel  string `env:"VENDORBIN_LOG_LEVEL" envDefault:"warn"`
	LogFormat string `env:"VENDORBIN_LOG_FORMAT" envDefault:"text"`

	// HistoryPath is the SQLite dispatch journal. Empty disables the journal.
	HistoryPath string `env:"VENDORBIN_HISTORY"`

	// BinDir is set by an enclosing dispatch when bin links are enabled.
	BinDir string `env:"VENDORBIN_BIN_DIR"`

	// DispatchDepth counts enclosing dispatches, across processes.
	DispatchDepth int `env:"VENDORBIN_DISPATCH_DEPTH" envDefault:"0"`
}

// LoadEnvironment parses Environment from the current process environment.
func LoadEnvironment() (Environment, error) {
	var e Environment
	if err := env.Parse(&e); err != nil {
		return Environment{}, fmt.Errorf("parse env: %w", err)
	}
	if e.DispatchDepth < 0 {
		return Environment{}, fmt.Errorf("parse env: %s must not be negative", EnvDispatchDepth)
	}
	return e, nil
}
