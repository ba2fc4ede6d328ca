package helpers

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IacopoSb/AnonimaData/pkg/errors"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

// AssertFloatEquals asserts that two floats are equal within tolerance
func AssertFloatEquals(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...interface{}) {
	t.Helper()

	if math.IsNaN(expected) && math.IsNaN(actual) {
		return
	}

	assert.InDelta(t, expected, actual, tolerance, msgAndArgs...)
}

// AssertWithinRange asserts all values are within the specified range
func AssertWithinRange(t *testing.T, data []float64, min, max float64) {
	t.Helper()

	for i, value := range data {
		assert.True(t, value >= min && value <= max,
			"value at index %d (%f) is outside range [%f, %f]", i, value, min, max)
	}
}

// AssertSameShape asserts that two datasets have the same columns in the
// same order and the same number of rows
func AssertSameShape(t *testing.T, expected, actual *models.Dataset) {
	t.Helper()

	require.NotNil(t, actual)
	assert.Equal(t, expected.Columns, actual.Columns, "column order changed")
	assert.Equal(t, expected.Len(), actual.Len(), "row count changed")
	for i, row := range actual.Rows {
		assert.Len(t, row, len(expected.Columns), "row %d has a different column count", i)
	}
}

// AssertColumnUnchanged asserts that a column holds the same values in both datasets
func AssertColumnUnchanged(t *testing.T, before, after *models.Dataset, column string) {
	t.Helper()

	require.Equal(t, before.Len(), after.Len())
	assert.Equal(t, before.Column(column), after.Column(column), "column %s was modified", column)
}

// AssertDatasetsEqual asserts deep equality and prints a diff on mismatch
func AssertDatasetsEqual(t *testing.T, expected, actual *models.Dataset) {
	t.Helper()

	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Errorf("dataset mismatch (-expected +actual):\n%s", diff)
	}
}

// AssertNoMissing asserts that a column has no missing cells
func AssertNoMissing(t *testing.T, ds *models.Dataset, column string) {
	t.Helper()

	for i, v := range ds.Column(column) {
		assert.False(t, models.IsMissing(v), "row %d of %s is missing", i, column)
	}
}

// NumericColumn returns a column as floats, failing on non-numeric cells
func NumericColumn(t *testing.T, ds *models.Dataset, column string) []float64 {
	t.Helper()

	values := ds.Column(column)
	out := make([]float64, len(values))
	for i, v := range values {
		f, ok := models.ToFloat(v)
		require.True(t, ok, "row %d of %s is not numeric: %v", i, column, v)
		out[i] = f
	}
	return out
}

// AssertErrorCode asserts that err carries the expected AppError code
func AssertErrorCode(t *testing.T, err error, expectedCode string) {
	t.Helper()

	require.Error(t, err)
	assert.Equal(t, expectedCode, errors.CodeOf(err), "unexpected error: %v", err)
}
