package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeMissingRegistryEntry = "ERR_MISSING_REGISTRY_ENTRY"
	ErrCodeUnreadableSource     = "ERR_UNREADABLE_SOURCE"
	ErrCodeIDCollision          = "ERR_ID_COLLISION"
	ErrCodeInvalidPath          = "ERR_INVALID_PATH"
	ErrCodeConfigInvalid        = "ERR_CONFIG_INVALID"
	ErrCodeUnknownRuntime       = "ERR_UNKNOWN_RUNTIME"
	ErrCodeBuildCancelled       = "ERR_BUILD_CANCELLED"
	ErrCodeWriteFailed          = "ERR_WRITE_FAILED"
	ErrCodeInternal             = "ERR_INTERNAL"
)

// Sentinels for errors.Is. Matching compares Type and Code only.
var (
	ErrMissingRegistryEntry = &BundleError{Type: ErrorTypeInternal, Code: ErrCodeMissingRegistryEntry}
	ErrUnreadableSource     = &BundleError{Type: ErrorTypeIO, Code: ErrCodeUnreadableSource}
	ErrIDCollision          = &BundleError{Type: ErrorTypeBuild, Code: ErrCodeIDCollision}
)

// BundleError is a structured error carrying the module and file it
// relates to.
type BundleError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	ModuleID string
	FilePath string
}

// Error implements the error interface.
func (e *BundleError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.ModuleID != "" {
		parts = append(parts, "module:"+e.ModuleID)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *BundleError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a BundleError of the same type and code.
func (e *BundleError) Is(target error) bool {
	var t *BundleError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *BundleError) WithContext(key string, value interface{}) *BundleError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithModule records the registry id the error relates to.
func (e *BundleError) WithModule(id string) *BundleError {
	e.ModuleID = id

	return e
}

// WithFile records the file the error relates to.
func (e *BundleError) WithFile(path string) *BundleError {
	e.FilePath = path

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *BundleError {
	return &BundleError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *BundleError {
	return &BundleError{
		Type:    ErrorTypeBuild,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *BundleError {
	return &BundleError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *BundleError {
	return &BundleError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *BundleError {
	return &BundleError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// MissingRegistryEntry reports an attempt to finalise content for an id
// that was never registered.
func MissingRegistryEntry(id string) *BundleError {
	return NewInternalError(
		ErrCodeMissingRegistryEntry,
		fmt.Sprintf("no registry entry for %q", id),
		nil,
	).WithModule(id)
}

// UnreadableSource reports a source file that could not be opened or read.
func UnreadableSource(path string, cause error) *BundleError {
	return NewIOError(
		ErrCodeUnreadableSource,
		"cannot read source",
		cause,
	).WithFile(path)
}

// IDCollision reports two distinct files competing for one registry id.
func IDCollision(id, existing, incoming string) *BundleError {
	return NewBuildError(
		ErrCodeIDCollision,
		fmt.Sprintf("id %q already names %s", id, existing),
		nil,
	).WithModule(id).WithFile(incoming).WithContext("existing", existing)
}

// BuildCancelled wraps a context error that stopped a build.
func BuildCancelled(cause error) *BundleError {
	return NewBuildError(ErrCodeBuildCancelled, "build cancelled", cause)
}

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path, reason string) *BundleError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path "+path+": "+reason)
}

// IsMissingRegistryEntry reports whether err is a MissingRegistryEntry error.
func IsMissingRegistryEntry(err error) bool {
	return errors.Is(err, ErrMissingRegistryEntry)
}

// IsUnreadableSource reports whether err is an UnreadableSource error.
func IsUnreadableSource(err error) bool {
	return errors.Is(err, ErrUnreadableSource)
}

// IsIDCollision reports whether err is an id collision.
func IsIDCollision(err error) bool {
	return errors.Is(err, ErrIDCollision)
}

// ErrorHandler logs errors from long running commands that survive a
// failed build.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err with fields derived from its type.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var be *BundleError
	if !errors.As(err, &be) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	fields := []interface{}{"type", string(be.Type), "code", be.Code}
	if be.ModuleID != "" {
		fields = append(fields, "module", be.ModuleID)
	}
	if be.FilePath != "" {
		fields = append(fields, "file", be.FilePath)
	}

	switch be.Type {
	case ErrorTypeValidation, ErrorTypeBuild:
		h.logger.Warn(ctx, err, "Build failed", fields...)
	default:
		h.logger.Error(ctx, err, "Build failed", fields...)
	}
}
