package config

import (
	"errors"
	"fmt"

	"github.com/carbonmock/carbon/internal/script"
	"github.com/carbonmock/carbon/pkg/logging"
)

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks every field and returns all problems joined together.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Port < 0 || c.Port > 65535 {
		add("port", "must be between 0 and 65535, got %d", c.Port)
	}
	if c.DataDir == "" {
		add("dataDir", "is required")
	}
	if c.Workspace == "" {
		add("workspace", "is required")
	}
	if _, err := logging.LookupLevel(c.Log.Level); err != nil {
		add("log.level", "%v", err)
	}
	switch logging.Format(c.Log.Format) {
	case logging.FormatText, logging.FormatJSON, "":
	default:
		add("log.format", "must be %q or %q, got %q", logging.FormatText, logging.FormatJSON, c.Log.Format)
	}
	if _, err := script.New(c.Scripting.Engine); err != nil {
		add("scripting.engine", "%v", err)
	}
	if c.RequestLog.Capacity <= 0 {
		add("requestLog.capacity", "must be positive, got %d", c.RequestLog.Capacity)
	}
	if c.Proxy.Timeout < 0 {
		add("proxy.timeout", "must not be negative, got %s", c.Proxy.Timeout)
	}
	if c.Watch.Debounce < 0 {
		add("watch.debounce", "must not be negative, got %s", c.Watch.Debounce)
	}

	return errors.Join(errs...)
}
