// Package errors defines the iconsprite error taxonomy.
//
// Only configuration-time failures propagate to callers; every other
// category is converted into a log line and a degraded result where it
// happens. The types here make that boundary explicit: IsRecoverable tells
// a caller whether to degrade or abort.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeSecurity  ErrorType = "security"
	ErrorTypeIO        ErrorType = "io"
	ErrorTypeParse     ErrorType = "parse"
	ErrorTypeOptimizer ErrorType = "optimizer"
	ErrorTypeBuild     ErrorType = "build"
	ErrorTypeConfig    ErrorType = "config"
)

// Common error codes.
const (
	ErrCodeInvalidPath     = "ERR_INVALID_PATH"
	ErrCodePathTraversal   = "ERR_PATH_TRAVERSAL"
	ErrCodeFileTooLarge    = "ERR_FILE_TOO_LARGE"
	ErrCodeFileEmpty       = "ERR_FILE_EMPTY"
	ErrCodeMissingRoot     = "ERR_MISSING_SVG_ROOT"
	ErrCodeMalformed       = "ERR_MALFORMED_SVG"
	ErrCodeParsePanic      = "ERR_PARSE_PANIC"
	ErrCodeOptimizerFailed = "ERR_OPTIMIZER_FAILED"
	ErrCodeRebuildFailed   = "ERR_REBUILD_FAILED"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeInvalidOrigin   = "ERR_INVALID_ORIGIN"
	ErrCodePageTransform   = "ERR_PAGE_TRANSFORM"
	ErrCodeOutputWrite     = "ERR_OUTPUT_WRITE"
	ErrCodeServerStart     = "ERR_SERVER_START"
)

// SpriteError is a structured error type with context.
type SpriteError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *SpriteError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}
	return result
}

// Unwrap returns the underlying cause error.
func (e *SpriteError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *SpriteError) Is(target error) bool {
	var t *SpriteError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithFile attaches the file the error relates to.
func (e *SpriteError) WithFile(path string) *SpriteError {
	e.FilePath = path
	return e
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *SpriteError {
	return &SpriteError{Type: ErrorTypeSecurity, Code: code, Message: message, Recoverable: false}
}

// NewIOError creates an I/O error. Per-file I/O failures are recoverable.
func NewIOError(code, message string, cause error) *SpriteError {
	return &SpriteError{Type: ErrorTypeIO, Code: code, Message: message, Cause: cause, Recoverable: true}
}

// NewParseError creates a per-file parse error.
func NewParseError(code, message string) *SpriteError {
	return &SpriteError{Type: ErrorTypeParse, Code: code, Message: message, Recoverable: true}
}

// NewOptimizerError creates an optimizer error.
func NewOptimizerError(message string, cause error) *SpriteError {
	return &SpriteError{Type: ErrorTypeOptimizer, Code: ErrCodeOptimizerFailed, Message: message, Cause: cause, Recoverable: true}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *SpriteError {
	return &SpriteError{Type: ErrorTypeBuild, Code: code, Message: message, Cause: cause, Recoverable: true}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SpriteError {
	return &SpriteError{Type: ErrorTypeConfig, Code: code, Message: message, Recoverable: false}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var te *SpriteError
	if errors.As(err, &te) {
		return te.Recoverable
	}
	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	var pt *PathTraversalError
	if errors.As(err, &pt) {
		return true
	}
	var te *SpriteError
	if errors.As(err, &te) {
		return te.Type == ErrorTypeSecurity
	}
	return false
}

// ErrInvalidOrigin creates an invalid origin security error.
func ErrInvalidOrigin(origin string) *SpriteError {
	return NewSecurityError(ErrCodeInvalidOrigin, "invalid origin: "+origin)
}
