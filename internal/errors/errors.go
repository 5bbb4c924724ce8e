// Package errors provides structured error handling for driftscan operations.
// It defines error codes, error types, and utilities for creating and
// classifying errors so the CLI can decide what aborts a run and what
// degrades to fewer results.
package errors

import (
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"
	CodePermission    ErrorCode = "PERMISSION"

	// Network and scanning errors.
	CodeTargetInvalid   ErrorCode = "TARGET_INVALID"
	CodeDiscoveryFailed ErrorCode = "DISCOVERY_FAILED"
	CodeProbeFailed     ErrorCode = "PROBE_FAILED"

	// Baseline and persistence errors.
	CodeBaselineUnreadable ErrorCode = "BASELINE_UNREADABLE"
	CodeStorage            ErrorCode = "STORAGE"
	CodeFileNotFound       ErrorCode = "FILE_NOT_FOUND"
)

// ScanError represents an error that occurred during scanning operations.
type ScanError struct {
	Code      ErrorCode
	Message   string
	Target    string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
	}
}

// NewScanErrorWithTarget creates a scan error for a specific target.
func NewScanErrorWithTarget(code ErrorCode, message, target string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
	}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
	}
}

// DiscoveryError represents host discovery errors.
type DiscoveryError struct {
	Code      ErrorCode
	Message   string
	Network   string
	Interface string
	Cause     error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	if e.Network != "" {
		return fmt.Sprintf("[%s] %s (network: %s)", e.Code, e.Message, e.Network)
	}
	if e.Interface != "" {
		return fmt.Sprintf("[%s] %s (interface: %s)", e.Code, e.Message, e.Interface)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// NewDiscoveryError creates a new discovery error.
func NewDiscoveryError(code ErrorCode, message string) *DiscoveryError {
	return &DiscoveryError{
		Code:    code,
		Message: message,
	}
}

// WrapDiscoveryError wraps an existing error as a discovery error.
func WrapDiscoveryError(code ErrorCode, message string, err error) *DiscoveryError {
	return &DiscoveryError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// BaselineError represents errors loading or parsing a baseline result set.
type BaselineError struct {
	Code    ErrorCode
	Message string
	Path    string
	Cause   error
}

// Error implements the error interface.
func (e *BaselineError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s (path: %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *BaselineError) Unwrap() error {
	return e.Cause
}

// WrapBaselineError wraps an existing error as a baseline error.
func WrapBaselineError(code ErrorCode, message, path string, err error) *BaselineError {
	return &BaselineError{
		Code:    code,
		Message: message,
		Path:    path,
		Cause:   err,
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *ScanError:
		return e.Code
	case *DiscoveryError:
		return e.Code
	case *BaselineError:
		return e.Code
	case *ConfigError:
		return e.Code
	}
	return CodeUnknown
}

// IsFatal determines if an error indicates a condition that should stop the
// run before any output is produced. Everything else degrades to fewer
// results.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodePermission, CodeConfiguration, CodeTargetInvalid:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrInvalidRange creates an error for malformed address range specifications.
func ErrInvalidRange(spec string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeTargetInvalid, "invalid address range", spec, err)
}

// ErrInvalidPorts creates an error for malformed port specifications.
func ErrInvalidPorts(spec string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeTargetInvalid, "invalid port specification", spec, err)
}

// ErrPrivilege creates an error for missing raw-socket privileges.
func ErrPrivilege(iface string, err error) *DiscoveryError {
	e := WrapDiscoveryError(CodePermission, "discovery requires raw socket privileges", err)
	e.Interface = iface
	return e
}

// ErrBaselineUnreadable creates an error for unreadable baseline files.
func ErrBaselineUnreadable(path string, err error) *BaselineError {
	return WrapBaselineError(CodeBaselineUnreadable, "baseline could not be read", path, err)
}
