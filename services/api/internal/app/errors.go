package app

import (
	"errors"
	"sort"
	"strings"

	"termfolio/pkg/commands"
)

var (
	ErrUserNotFound       = errors.New("User not found")
	ErrSessionNotFound    = errors.New("User session not found")
	ErrFileNotFound       = errors.New("File not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminDisabled      = errors.New("admin api not configured")
	ErrStorageDisabled    = errors.New("asset storage not configured")
)

// ValidationError reports malformed request fields, keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "Validation failed: " + strings.Join(parts, ", ")
}

// validation collects field errors; err returns nil when there are none.
type validation map[string]string

func (v validation) add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

func (v validation) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Fields: map[string]string(v)}
}

// CommandNotFoundError is returned by Execute for unknown or inactive
// commands, after the failed attempt has been recorded.
type CommandNotFoundError struct {
	Outcome commands.NotFound
}

func (e *CommandNotFoundError) Error() string { return e.Outcome.Text() }
