// pkg/errors/errors_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test error creation, wrapping, and utility functions

package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/gregpriday/copytree/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    errors.ErrorCode
		message string
		wantStr string
	}{
		{
			name:    "profile_cycle_error",
			code:    errors.ErrProfileCycle,
			message: "circular extends chain",
			wantStr: "[PROFILE_CYCLE] circular extends chain",
		},
		{
			name:    "transform_failed_error",
			code:    errors.ErrTransformFailed,
			message: "converter exited non-zero",
			wantStr: "[TRANSFORM_FAILED] converter exited non-zero",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.New(tt.code, tt.message)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.NotNil(t, err.Details)
			assert.Equal(t, tt.wantStr, err.Error())
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("wraps_and_unwraps", func(t *testing.T) {
		inner := stderrors.New("disk on fire")
		err := errors.Wrap(inner, errors.ErrFileRead, "reading sample")
		require.NotNil(t, err)

		assert.Equal(t, "[FILE_READ] reading sample: disk on fire", err.Error())
		assert.True(t, stderrors.Is(err, inner))
	})

	t.Run("nil_error_returns_nil", func(t *testing.T) {
		assert.Nil(t, errors.Wrap(nil, errors.ErrFileRead, "ignored"))
		assert.Nil(t, errors.Wrapf(nil, errors.ErrFileRead, "ignored %d", 1))
	})
}

func TestIsErrorCode(t *testing.T) {
	err := errors.Newf(errors.ErrProfileNotFound, "profile %q not found", "frontend")

	assert.True(t, errors.IsErrorCode(err, errors.ErrProfileNotFound))
	assert.False(t, errors.IsErrorCode(err, errors.ErrProfileParse))
	assert.False(t, errors.IsErrorCode(stderrors.New("plain"), errors.ErrProfileNotFound))

	// Wrapped CopytreeError still reports its code through fmt wrapping
	wrapped := errors.Wrap(err, errors.ErrConfigLoad, "loading configuration")
	assert.True(t, errors.IsErrorCode(wrapped, errors.ErrConfigLoad))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, errors.ErrLimiterBudget, errors.GetErrorCode(errors.New(errors.ErrLimiterBudget, "budget below 1")))
	assert.Equal(t, errors.ErrUnknown, errors.GetErrorCode(stderrors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := errors.New(errors.ErrProfileCycle, "cycle detected").
		WithDetail("chain", []string{"a", "b", "a"})

	require.Contains(t, err.Details, "chain")
	assert.Equal(t, []string{"a", "b", "a"}, err.Details["chain"])
}
