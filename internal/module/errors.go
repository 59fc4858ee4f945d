package module

import (
	"errors"
	"fmt"
)

// LoadErrorCode categorizes module load errors.
type LoadErrorCode string

const (
	ErrCodeInvalidModule     LoadErrorCode = "INVALID_MODULE"
	ErrCodeDuplicateModule   LoadErrorCode = "DUPLICATE_MODULE"
	ErrCodeMissingDependency LoadErrorCode = "MISSING_DEPENDENCY"
	ErrCodeDependencyCycle   LoadErrorCode = "DEPENDENCY_CYCLE"
	ErrCodeSetupFailed       LoadErrorCode = "SETUP_FAILED"
)

// LoadError reports why modules could not be loaded.
type LoadError struct {
	Code       LoadErrorCode
	Module     string
	Dependency string
	Err        error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	switch {
	case e.Dependency != "":
		return fmt.Sprintf("%s: module %s depends on unknown module %s", e.Code, e.Module, e.Dependency)
	case e.Err != nil:
		return fmt.Sprintf("%s: module %s: %v", e.Code, e.Module, e.Err)
	default:
		return fmt.Sprintf("%s: module %s", e.Code, e.Module)
	}
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the LoadErrorCode of err, or "" when err is not a
// LoadError.
func ErrorCode(err error) LoadErrorCode {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
