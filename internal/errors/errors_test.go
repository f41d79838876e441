package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpriteErrorFormatting(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := NewParseError(ErrCodeMalformed, "could not extract inner markup").WithFile("/icons/home.svg")
	err.Cause = cause

	assert.Equal(t, "[ERR_MALFORMED_SVG] /icons/home.svg could not extract inner markup: unexpected EOF", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestSpriteErrorIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewParseError(ErrCodeFileEmpty, "file is empty"))

	assert.True(t, errors.Is(err, &SpriteError{Type: ErrorTypeParse, Code: ErrCodeFileEmpty}))
	assert.False(t, errors.Is(err, &SpriteError{Type: ErrorTypeParse, Code: ErrCodeFileTooLarge}))
}

func TestRecoverability(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		recoverable bool
		security    bool
	}{
		{"parse error", NewParseError(ErrCodeMissingRoot, "no <svg> root"), true, false},
		{"io error", NewIOError(ErrCodeInvalidPath, "read failed", errors.New("EACCES")), true, false},
		{"optimizer error", NewOptimizerError("svgo crashed", nil), true, false},
		{"config error", NewConfigError(ErrCodeConfigInvalid, "bad id"), false, false},
		{"path traversal", &PathTraversalError{Input: "../x", Resolved: "/x", Root: "/p"}, false, true},
		{"security error", ErrInvalidOrigin("http://evil.test"), false, true},
		{"plain error", errors.New("plain"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.recoverable, IsRecoverable(tt.err))
			assert.Equal(t, tt.security, IsSecurityError(tt.err))
		})
	}
}

func TestPathTraversalErrorMessage(t *testing.T) {
	err := &PathTraversalError{Input: "../../etc", Resolved: "/etc", Root: "/home/me/project"}

	msg := err.Error()
	assert.Contains(t, msg, `"../../etc"`)
	assert.Contains(t, msg, "/etc")
	assert.Contains(t, msg, "/home/me/project")
	assert.Contains(t, msg, "sprite.icon_dir: src/icons")
	assert.Equal(t, ErrCodePathTraversal, err.Code())

	wrapped := fmt.Errorf("configure: %w", err)
	assert.True(t, errors.Is(wrapped, &PathTraversalError{}))
	var target *PathTraversalError
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "/etc", target.Resolved)
}

func TestValidationErrorCollection(t *testing.T) {
	var collection ValidationErrorCollection
	assert.NoError(t, collection.ErrOrNil())
	assert.Equal(t, "no validation errors", collection.Error())

	collection.AddField("sprite.id", "1bad", "must start with a letter", "sprite.id: icon-sprite")
	collection.AddField("development.debounce_ms", -5, "must not be negative")

	err := collection.ErrOrNil()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "2 problems")
	assert.Contains(t, msg, "sprite.id")
	assert.Contains(t, msg, "hint: sprite.id: icon-sprite")
	assert.Contains(t, msg, "development.debounce_ms")

	fieldErr := collection.Errors[0]
	assert.Equal(t, "1bad", fieldErr.Value())
	assert.Equal(t, []string{"sprite.id: icon-sprite"}, fieldErr.Suggestions())
}
