package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfigurationValue is matched by every InvalidValueError.
var ErrInvalidConfigurationValue = errors.New("invalid configuration value")

// InvalidValueError names the offending setting and what was expected of it.
type InvalidValueError struct {
	Key      string
	Expected string
	Actual   string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for %q: expected %s, got %s", e.Key, e.Expected, e.Actual)
}

// Is reports whether target is ErrInvalidConfigurationValue.
func (e *InvalidValueError) Is(target error) bool {
	return target == ErrInvalidConfigurationValue
}
