package stave

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBase(t *testing.T) {
	t.Run("with builders return copies", func(t *testing.T) {
		base := CommandBase{}

		withIDs := base.WithCommandID("cmd-1").
			WithCorrelationID("corr-1").
			WithCausationID("cause-1")

		assert.Equal(t, "cmd-1", withIDs.GetCommandID())
		assert.Equal(t, "corr-1", withIDs.GetCorrelationID())
		assert.Equal(t, "cause-1", withIDs.GetCausationID())

		assert.Empty(t, base.GetCommandID())
	})
}

func TestCommandResult(t *testing.T) {
	t.Run("success result", func(t *testing.T) {
		result := NewSuccessResult("s1", 3)

		assert.True(t, result.IsSuccess())
		assert.False(t, result.IsError())
		assert.Equal(t, "s1", result.AggregateID)
		assert.Equal(t, int64(3), result.Version)
		assert.Empty(t, result.ErrorMessage())
	})

	t.Run("success result with data", func(t *testing.T) {
		payload := map[string]int{"bpm": 96}
		result := NewSuccessResultWithData("s1", 3, payload)

		assert.True(t, result.IsSuccess())
		assert.Equal(t, payload, result.Data)
	})

	t.Run("error result", func(t *testing.T) {
		result := NewErrorResult(ErrNothingToUndo)

		assert.False(t, result.IsSuccess())
		assert.True(t, result.IsError())
		assert.Zero(t, result.EventsGenerated)
		assert.Zero(t, result.UndoableRecorded)
		assert.Equal(t, ErrNothingToUndo.Error(), result.ErrorMessage())
	})

	t.Run("with counts", func(t *testing.T) {
		result := NewSuccessResult("s1", 5).WithCounts(2, 1)

		assert.Equal(t, 2, result.EventsGenerated)
		assert.Equal(t, 1, result.UndoableRecorded)
	})
}

func TestValidationError(t *testing.T) {
	t.Run("message includes command and field", func(t *testing.T) {
		err := NewValidationError("StartSession", "ownerId", "owner ID is required")

		assert.Contains(t, err.Error(), "StartSession")
		assert.Contains(t, err.Error(), "ownerId")
		assert.True(t, errors.Is(err, ErrValidationFailed))
	})

	t.Run("wraps a cause", func(t *testing.T) {
		cause := errors.New("parse failure")
		err := NewValidationErrorWithCause("StartSession", "bpm", "bad bpm", cause)

		assert.True(t, errors.Is(err, cause))

		var valErr *ValidationError
		require.True(t, errors.As(err, &valErr))
		assert.Equal(t, "bpm", valErr.Field)
	})
}
