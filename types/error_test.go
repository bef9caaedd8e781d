package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	err := NewError(ErrWorkflowNotFound, "workflow wf-1 not found")
	assert.Equal(t, "[WORKFLOW_NOT_FOUND] workflow wf-1 not found", err.Error())
}

func TestError_CauseChain(t *testing.T) {
	cause := errors.New("handler exploded")
	err := Errorf(ErrExecutionFailed, "step %s failed", "parse").WithCause(cause)

	assert.Contains(t, err.Error(), "handler exploded")
	assert.True(t, errors.Is(err, cause))
}

func TestGetErrorCode(t *testing.T) {
	err := NewError(ErrInvalidGraphStructure, "cycle detected")
	assert.Equal(t, ErrInvalidGraphStructure, GetErrorCode(err))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestHasCode(t *testing.T) {
	err := NewError(ErrNotInitialized, "coordinator not initialized")
	require.True(t, HasCode(err, ErrNotInitialized))
	require.False(t, HasCode(err, ErrExecutionFailed))
	require.False(t, HasCode(nil, ErrNotInitialized))
}
