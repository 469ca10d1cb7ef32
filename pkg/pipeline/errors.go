package pipeline

import (
	"fmt"
	"strings"
)

// ConfigurationError is a problem with the project definition. It is fatal and reported before any record is read.
type ConfigurationError struct {
	Entity string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Entity == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error in entity '%s': %s", e.Entity, e.Reason)
}

// ConfigurationErrors collects every problem found in a project.
type ConfigurationErrors []*ConfigurationError

func (e ConfigurationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

func configErrorf(entity, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Entity: entity, Reason: fmt.Sprintf(format, args...)}
}
