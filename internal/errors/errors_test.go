package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorSeverityString(t *testing.T) {
	testCases := []struct {
		severity ErrorSeverity
		expected string
	}{
		{ErrorSeverityInfo, "info"},
		{ErrorSeverityWarning, "warning"},
		{ErrorSeverityError, "error"},
		{ErrorSeverityFatal, "fatal"},
		{ErrorSeverity(999), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.severity.String())
		})
	}
}

func TestBuildErrorError(t *testing.T) {
	err := BuildError{File: "src/home.js", Line: 10, Column: 5, Message: "Expected \";\"", Severity: ErrorSeverityError}
	assert.Equal(t, "src/home.js:10:5: error: Expected \";\"", err.Error())

	noFile := BuildError{Message: "Could not resolve", Severity: ErrorSeverityError}
	assert.Equal(t, "error: Could not resolve", noFile.Error())
}

func TestErrorCollectorReplace(t *testing.T) {
	ec := NewErrorCollector()
	assert.False(t, ec.HasErrors())

	ec.Replace("en", []BuildError{{Message: "boom", Severity: ErrorSeverityError}})
	ec.Replace("zh-CN", []BuildError{{Message: "careful", Severity: ErrorSeverityWarning}})

	require.Len(t, ec.GetErrors(), 2)
	assert.True(t, ec.HasErrors())

	ec.Replace("en", nil)
	errs := ec.GetErrors()
	require.Len(t, errs, 1)
	assert.Equal(t, "zh-CN", errs[0].Target)
	assert.False(t, errs[0].Timestamp.IsZero())
	assert.False(t, ec.HasErrors())
}

func TestRemixureErrorFormatting(t *testing.T) {
	cause := stderrors.New("no such file or directory")
	err := NewConfigError(ErrCodeConfigMissing, "base configuration not found", cause).
		WithLocation("config/config.default.yaml", 0, 0)

	assert.Equal(t,
		"[ERR_CONFIG_MISSING] config/config.default.yaml base configuration not found: no such file or directory",
		err.Error())
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.True(t, IsConfigError(err))
	assert.True(t, IsFatal(err))
}

func TestRemixureErrorIs(t *testing.T) {
	err := fmt.Errorf("loading: %w", NewValidationError(ErrCodeNoEntries, "no entries"))
	assert.ErrorIs(t, err, &RemixureError{Type: ErrorTypeValidation, Code: ErrCodeNoEntries})
	assert.NotErrorIs(t, err, &RemixureError{Type: ErrorTypeValidation, Code: ErrCodeReservedEntry})
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeIO, "X", "nothing"))

	build := WrapBuild(stderrors.New("1 error"), ErrCodeBuildFailed, "compile failed", "en")
	assert.Equal(t, ErrorTypeBuild, build.Type)
	assert.False(t, build.Fatal)
	assert.Equal(t, "en", build.Component)

	rewrapped := WrapConfig(NewIOError("IO", "read", stderrors.New("eof")).WithLocation("a.yaml", 3, 1), ErrCodeConfigInvalid, "bad config")
	assert.Equal(t, "a.yaml", rewrapped.FilePath)
	assert.True(t, rewrapped.Fatal)
}

func TestExitCode(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{"success", nil, 0},
		{"plain error", stderrors.New("unknown command"), 1},
		{"config error", NewConfigError(ErrCodeConfigMissing, "missing", nil), 1},
		{"surfaced build error", NewBuildError(ErrCodeBuildFailed, "dev build failed", nil), 0},
		{"failed production build", NewBuildError(ErrCodeBuildFailed, "Compile with errors!", nil).AsFatal(), 1},
		{"wrapped", fmt.Errorf("run: %w", NewIOError("IO", "read", nil)), 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExitCode(tc.err))
		})
	}
}

func TestIsFatalOnPlainErrors(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(stderrors.New("plain")))
	assert.False(t, IsFatal(NewBuildError(ErrCodeBuildFailed, "dev build failed", nil)))
}

func TestValidationErrorCollection(t *testing.T) {
	var vec ValidationErrorCollection
	assert.Nil(t, vec.ToRemixureError())

	vec.AddField("devServer.port", 70000, "port out of range")
	assert.Equal(t, "validation error in field 'devServer.port': port out of range", vec.Error())

	vec.AddField("i18n.defaultLanguage", "", "must not be empty")
	assert.Equal(t, "validation failed with 2 errors", vec.Error())

	re := vec.ToRemixureError()
	require.NotNil(t, re)
	assert.Equal(t, ErrCodeValidationFailed, re.Code)
	assert.Contains(t, re.Message, "port out of range; ")
	assert.Equal(t, 70000, re.Context["devServer.port"])
}
