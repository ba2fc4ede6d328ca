package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMatchesSentinels(t *testing.T) {
	err := NewInvalidParameterError("k", "must be at least 2")

	assert.True(t, errors.Is(err, ErrInvalidParameter))
	assert.False(t, errors.Is(err, ErrUnknownMethod))
	assert.Equal(t, "k", err.Context["parameter"])
	assert.Equal(t, "INVALID_PARAMETER: parameter k must be at least 2", err.Error())

	wrapped := fmt.Errorf("job 42: %w", NewMissingColumnError("zip", "quasi-identifier"))
	assert.True(t, errors.Is(wrapped, ErrMissingColumn))
	assert.Equal(t, CodeMissingColumn, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestTransformErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := NewTransformError("generalization", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrTransformFailure))
	assert.Contains(t, err.Error(), "generalization failed: boom")
}

func TestEmptyDatasetDetails(t *testing.T) {
	err := NewEmptyDatasetError("0 rows")
	assert.Equal(t, "EMPTY_DATASET: dataset is empty - 0 rows", err.Error())
	assert.True(t, errors.Is(err, ErrEmptyDataset))
}

func TestValidationErrors(t *testing.T) {
	ve := NewValidationErrors()
	assert.False(t, ve.HasErrors())

	ve.Add("k", CodeInvalidParameter, "k must be an integer", "x")
	assert.True(t, ve.HasErrors())
	assert.Equal(t, "Validation failed: k must be an integer", ve.Error())
}
