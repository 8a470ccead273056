package grid

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrConfig matches any *ConfigError.
	ErrConfig = errors.New("config error")

	// ErrIndexOutOfRange matches any *IndexOutOfRangeError.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// ConfigError reports a malformed or unreadable configuration document.
// Key is empty when the problem is not tied to a single entry.
type ConfigError struct {
	Path string
	Key  string
	Err  error
}

func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Key != "" {
		msg += fmt.Sprintf(": key %q", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is reports whether target is ErrConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// IndexOutOfRangeError is returned when a grid index falls outside [0, Count).
type IndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index %d is out of range: only %d experiments available", e.Index, e.Count)
}

// Is reports whether target is ErrIndexOutOfRange.
func (e *IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }

func configErrorf(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Err: fmt.Errorf(format, args...)}
}
