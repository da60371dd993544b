package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid is matched by every validation failure of a loaded
	// configuration.
	ErrInvalid = errors.New("config: invalid configuration")

	// ErrUnsupportedFormat is returned for configuration files whose
	// extension is not .yaml, .yml, .toml or .json.
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
)

// Error reports the stage at which loading a configuration failed.
type Error struct {
	Source    string // file path or "env"
	Operation string // "read", "parse", "decode", "validate" or "render"
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s %s: %v", e.Operation, e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
