// Package errors provides the structured error type shared by every rwb
// command. Errors carry a category and a stable code so that callers can
// match on them with errors.Is without string comparisons.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeManifest ErrorType = "manifest"
	ErrorTypeSelector ErrorType = "selector"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeRuntime  ErrorType = "runtime"
)

// Error is a structured error type with context.
type Error struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	FilePath string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath+":")
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile records the file the error refers to.
func (e *Error) WithFile(path string) *Error {
	e.FilePath = path

	return e
}

// Error creation functions

// NewManifestError creates a manifest error.
func NewManifestError(code, message string) *Error {
	return &Error{
		Type:    ErrorTypeManifest,
		Code:    code,
		Message: message,
	}
}

// NewSelectorError creates a mount-point selector error.
func NewSelectorError(code, message string) *Error {
	return &Error{
		Type:    ErrorTypeSelector,
		Code:    code,
		Message: message,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *Error {
	return &Error{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewRuntimeError creates a runtime error.
func NewRuntimeError(code, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeRuntime,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrap wraps err as an *Error of the given type. It returns nil for a nil err.
func Wrap(err error, errType ErrorType, code, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapManifest wraps an error as a manifest error.
func WrapManifest(err error, code, message string) *Error {
	return Wrap(err, ErrorTypeManifest, code, message)
}

// WrapRuntime wraps an error as a runtime error.
func WrapRuntime(err error, code, message string) *Error {
	return Wrap(err, ErrorTypeRuntime, code, message)
}

// TypeOf returns the category of err, or "" when err is not an *Error.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}

	return ""
}

// IsManifestError checks if an error is manifest-related.
func IsManifestError(err error) bool {
	return TypeOf(err) == ErrorTypeManifest
}

// IsSelectorError checks if an error is a selector error.
func IsSelectorError(err error) bool {
	return TypeOf(err) == ErrorTypeSelector
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	return TypeOf(err) == ErrorTypeConfig
}

// IsRuntimeError checks if an error happened while running the server, bundler or render script.
func IsRuntimeError(err error) bool {
	return TypeOf(err) == ErrorTypeRuntime
}

// Common error codes.
const (
	ErrCodeManifestNotFound       = "ERR_MANIFEST_NOT_FOUND"
	ErrCodeManifestInvalid        = "ERR_MANIFEST_INVALID"
	ErrCodeManifestSectionMissing = "ERR_MANIFEST_SECTION_MISSING"
	ErrCodeManifestMainMissing    = "ERR_MANIFEST_MAIN_MISSING"
	ErrCodeManifestWrite          = "ERR_MANIFEST_WRITE"
	ErrCodeInvalidSelector        = "ERR_INVALID_SELECTOR"
	ErrCodeInvalidElement         = "ERR_INVALID_ELEMENT"
	ErrCodeUnsupportedTarget      = "ERR_UNSUPPORTED_TARGET"
	ErrCodeConfigInvalid          = "ERR_CONFIG_INVALID"
	ErrCodeServerBind             = "ERR_SERVER_BIND"
	ErrCodeTempDir                = "ERR_TEMP_DIR"
	ErrCodeBuildFailed            = "ERR_BUILD_FAILED"
	ErrCodeRenderFailed           = "ERR_RENDER_FAILED"
	ErrCodeIO                     = "ERR_IO"
)

// ErrUnsupportedTarget is returned by the config builder for unknown targets.
var ErrUnsupportedTarget = NewConfigError(
	ErrCodeUnsupportedTarget,
	"config builder only supports `client` and `server` targets",
)
