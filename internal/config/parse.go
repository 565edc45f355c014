package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/mattjoyce/vendorbin/internal/manifest"
	"github.com/mitchellh/mapstructure"
)

// Parse builds a Config from a loosely typed settings map (usually decoded
// JSON). Missing keys take their defaults; keys whose default is scheduled to
// change produce a Notice. A present key with the wrong type or an invalid
// value fails with an *InvalidValueError.
func Parse(settings map[string]any) (Config, []Notice, error) {
	cfg := Defaults()
	var notices []Notice

	var links bool
	found, err := decodeKey(settings, KeyBinLinks, "boolean", &links, nil)
	if err != nil {
		return Config{}, nil, err
	}
	if found {
		cfg.linksEnabled = links
	} else {
		notices = append(notices, Notice{
			Key: KeyBinLinks,
			Message: fmt.Sprintf("The setting %q defaults to true but will default to false in the next major version. "+
				"Set it explicitly to keep the current behaviour.", KeyBinLinks),
		})
	}

	var target string
	found, err = decodeKey(settings, KeyTargetDirectory, "string", &target, nil)
	if err != nil {
		return Config{}, nil, err
	}
	if found {
		if err := validateTargetDirectory(target); err != nil {
			return Config{}, nil, err
		}
		cfg.targetDirectory = filepath.Clean(target)
	}

	var forwarded []string
	found, err = decodeKey(settings, KeyForwardCommand, "boolean or list of strings", &forwarded, forwardCommandHook)
	if err != nil {
		return Config{}, nil, err
	}
	if found {
		commands, err := normalizeCommands(forwarded)
		if err != nil {
			return Config{}, nil, err
		}
		cfg.forwardedCommands = commands
	} else {
		notices = append(notices, Notice{
			Key: KeyForwardCommand,
			Message: fmt.Sprintf("The setting %q defaults to false but will default to true (%s) in the next major version. "+
				"Set it explicitly to keep the current behaviour.", KeyForwardCommand, strings.Join(forwardAll, ", ")),
		})
	}

	return cfg, notices, nil
}

// FromManifest parses the extra.bin section of m. A missing manifest section
// yields the defaults.
func FromManifest(m *manifest.Manifest) (Config, []Notice, error) {
	if m == nil {
		return Parse(nil)
	}
	section, _, err := m.Section(SectionName)
	if err != nil {
		return Config{}, nil, &InvalidValueError{
			Key:      "extra." + SectionName,
			Expected: "object",
			Actual:   typeName(m.Extra[SectionName]),
		}
	}
	return Parse(section)
}

// decodeKey decodes settings[key] into target with strict typing. found is
// false when the key is absent.
func decodeKey(settings map[string]any, key, expected string, target any, hook mapstructure.DecodeHookFunc) (found bool, err error) {
	raw, ok := settings[key]
	if !ok {
		return false, nil
	}
	invalid := &InvalidValueError{Key: key, Expected: expected, Actual: typeName(raw)}
	if raw == nil {
		return true, invalid
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     target,
		DecodeHook: hook,
	})
	if err != nil {
		return true, fmt.Errorf("create decoder for %q: %w", key, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return true, invalid
	}
	return true, nil
}

// forwardCommandHook expands the boolean form of forward-command.
func forwardCommandHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.Bool || to.Kind() != reflect.Slice {
		return data, nil
	}
	if data.(bool) {
		return slices.Clone(forwardAll), nil
	}
	return []string{}, nil
}

func validateTargetDirectory(dir string) error {
	trimmed := strings.TrimSpace(dir)
	invalid := &InvalidValueError{
		Key:      KeyTargetDirectory,
		Expected: "non-empty relative path inside the project",
		Actual:   fmt.Sprintf("%q", dir),
	}
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return invalid
	}
	cleaned := filepath.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return invalid
	}
	return nil
}

func normalizeCommands(commands []string) ([]string, error) {
	out := make([]string, 0, len(commands))
	for _, c := range commands {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, &InvalidValueError{
				Key:      KeyForwardCommand,
				Expected: "non-empty command names",
				Actual:   `""`,
			}
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, float32, int, int64, int32:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
