package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a RemixureError if the input is not already one.
func Wrap(err error, errType ErrorType, code, message string) *RemixureError {
	if err == nil {
		return nil
	}

	var re *RemixureError
	if errors.As(err, &re) {
		return &RemixureError{
			Type:      errType,
			Code:      code,
			Message:   message,
			Cause:     re,
			Context:   re.Context,
			Component: re.Component,
			FilePath:  re.FilePath,
			Line:      re.Line,
			Column:    re.Column,
			Fatal:     re.Fatal,
		}
	}

	return &RemixureError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
		Fatal:   errType != ErrorTypeBuild,
	}
}

// WrapConfig wraps an error as a configuration error.
func WrapConfig(err error, code, message string) *RemixureError {
	return Wrap(err, ErrorTypeConfig, code, message)
}

// WrapBuild wraps an error as a build error for one target.
func WrapBuild(err error, code, message, component string) *RemixureError {
	re := Wrap(err, ErrorTypeBuild, code, message)
	if re != nil {
		re.Component = component
	}
	return re
}

// ExitCode maps an error returned from a command to a process exit status.
// Errors that were only surfaced, like compile errors in development, keep
// the status at zero.
func ExitCode(err error) int {
	if IsFatal(err) {
		return 1
	}
	return 0
}

// HasCode reports whether any RemixureError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var re *RemixureError
		if !errors.As(err, &re) {
			return false
		}
		if re.Code == code {
			return true
		}
		err = re.Cause
	}
	return false
}
