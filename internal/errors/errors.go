package errors

import (
	"fmt"
	"sync"
	"time"
)

// BuildError is one diagnostic reported by the bundling engine.
type BuildError struct {
	Target    string
	File      string
	Line      int
	Column    int
	Message   string
	Severity  ErrorSeverity
	Timestamp time.Time
}

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityFatal
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error implements the error interface
func (be *BuildError) Error() string {
	if be.File == "" {
		return fmt.Sprintf("%s: %s", be.Severity, be.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", be.File, be.Line, be.Column, be.Severity, be.Message)
}

// ErrorCollector keeps the diagnostics of the most recent build of each target.
// The dev server reads it to render the error overlay.
type ErrorCollector struct {
	byTarget map[string][]BuildError
	mutex    sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{byTarget: make(map[string][]BuildError)}
}

// Replace swaps the diagnostics recorded for target.
func (ec *ErrorCollector) Replace(target string, errs []BuildError) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	if len(errs) == 0 {
		delete(ec.byTarget, target)
		return
	}
	now := time.Now()
	stored := make([]BuildError, len(errs))
	for i, e := range errs {
		e.Target = target
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		stored[i] = e
	}
	ec.byTarget[target] = stored
}

// GetErrors returns a copy of every recorded diagnostic.
func (ec *ErrorCollector) GetErrors() []BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var result []BuildError
	for _, errs := range ec.byTarget {
		result = append(result, errs...)
	}
	return result
}

// HasErrors reports whether any diagnostic of error severity is recorded.
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	for _, errs := range ec.byTarget {
		for _, e := range errs {
			if e.Severity >= ErrorSeverityError {
				return true
			}
		}
	}
	return false
}
