package esp

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNotFound is matched by ConfigError when flow config could not be opened
	ErrConfigNotFound = errors.New("esp config not found")
	// ErrConfigMalformed is matched by ConfigError when flow config could not be parsed
	ErrConfigMalformed = errors.New("esp config malformed")
)

// ErrCode tells apart a missing config from a broken one
type ErrCode int

const (
	ErrCodeNotFound ErrCode = iota + 1
	ErrCodeMalformed
)

func (c ErrCode) String() string {
	switch c {
	case ErrCodeNotFound:
		return "not found"
	case ErrCodeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ConfigError is returned by flow table loaders
type ConfigError struct {
	Code ErrCode
	Path string
	// Line is 1-based, 0 when error is not tied to a line
	Line int
	// Column names the offending field, if any
	Column string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "esp config " + e.Code.String()
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	if e.Column != "" {
		msg += " column " + e.Column
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool {
	switch target {
	case ErrConfigNotFound:
		return e.Code == ErrCodeNotFound
	case ErrConfigMalformed:
		return e.Code == ErrCodeMalformed
	}
	return false
}

func malformed(line int, column string, err error) *ConfigError {
	return &ConfigError{Code: ErrCodeMalformed, Line: line, Column: column, Err: err}
}
