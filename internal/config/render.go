package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type renderedConfig struct {
	BinLinks        bool     `yaml:"bin-links"`
	TargetDirectory string   `yaml:"target-directory"`
	ForwardCommand  []string `yaml:"forward-command"`
	Notices         []string `yaml:"notices,omitempty"`
}

// Render formats cfg and its notices as YAML for display.
func Render(cfg Config, notices []Notice) ([]byte, error) {
	out := renderedConfig{
		BinLinks:        cfg.LinksEnabled(),
		TargetDirectory: cfg.TargetDirectory(),
		ForwardCommand:  cfg.ForwardedCommands(),
	}
	if out.ForwardCommand == nil {
		out.ForwardCommand = []string{}
	}
	for _, n := range notices {
		out.Notices = append(out.Notices, n.Message)
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
