package errors

import (
	"errors"
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns a plain error, re-exported so callers need a single errors import.
func New(text string) error {
	return errors.New(text)
}

// FormatError renders err for terminal output, expanding suggestions when present.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var enhanced *EnhancedError
	if errors.As(err, &enhanced) {
		return enhanced.Error()
	}

	return "Error: " + err.Error()
}
