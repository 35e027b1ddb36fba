package config

import (
	"fmt"
	"strings"
)

// Error is a configuration loading error.
type Error struct {
	Op  string // read, unmarshal
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError lists every invalid setting.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "config validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("config validation failed with %d errors:\n  - %s",
		len(e.Errors), strings.Join(e.Errors, "\n  - "))
}

// HasError reports whether any message mentions field.
func (e *ValidationError) HasError(field string) bool {
	for _, msg := range e.Errors {
		if strings.Contains(msg, field) {
			return true
		}
	}
	return false
}
