package conf

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrConfiguration matches every *ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError is a fatal, non-retryable misconfiguration: a missing
// broadcast value, a parameter-count mismatch, an unknown policy and the like.
type ConfigurationError struct {
	Field  string // Offending field or component (e.g., "layers[1].gradientNormalization")
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Errorf returns a *ConfigurationError with a stack trace attached.
func Errorf(field, format string, args ...any) error {
	return errors.WithStack(&ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)})
}
