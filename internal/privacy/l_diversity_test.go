package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/tests/helpers"
)

func TestEnforceLSuppressesLowDiversityClasses(t *testing.T) {
	ds := helpers.BuildDataset([]string{"zip", "disease"},
		[]interface{}{"10001", "flu"},
		[]interface{}{"10001", "cold"},
		[]interface{}{"10001", nil},
		[]interface{}{"10002", "flu"},
		[]interface{}{"10002", "flu"},
		[]interface{}{"10002", nil},
	)
	processor := NewLDiversityProcessor(helpers.GetTestLogger(t))

	out, report := processor.EnforceL(ds, []string{"zip"}, "disease", 2)

	helpers.AssertSameShape(t, ds, out)
	assert.Equal(t, 2, report.Classes)
	assert.Equal(t, 1, report.ViolatingClasses)
	assert.Equal(t, 3, report.SuppressedRows)

	assert.Equal(t, []interface{}{"flu", "cold", nil,
		constants.DiversityMarker, constants.DiversityMarker, constants.DiversityMarker}, out.Column("disease"))
	helpers.AssertColumnUnchanged(t, ds, out, "zip")
}

func TestEnforceLSkipsAbsentAttribute(t *testing.T) {
	ds, _ := helpers.ZipDataset()

	out, report := NewLDiversityProcessor(helpers.GetTestLogger(t)).EnforceL(ds, []string{"zip"}, "salary", 2)

	assert.True(t, report.Skipped)
	helpers.AssertDatasetsEqual(t, ds, out)
}

func TestEnforceLIsIdempotent(t *testing.T) {
	ds, _ := helpers.ZipDataset()
	processor := NewLDiversityProcessor(helpers.GetTestLogger(t))

	once, _ := processor.EnforceL(ds, []string{"zip"}, "disease", 3)
	twice, report := processor.EnforceL(once, []string{"zip"}, "disease", 3)

	helpers.AssertDatasetsEqual(t, once, twice)
	assert.Zero(t, report.SuppressedRows)
}

func TestEnforceLLeavesSuppressedCellsAlone(t *testing.T) {
	ds := helpers.BuildDataset([]string{"zip", "salary"},
		[]interface{}{constants.SuppressedMarker, "[10.00-90.00]"},
		[]interface{}{constants.SuppressedMarker, "[10.00-90.00]"},
	)

	out, report := NewLDiversityProcessor(helpers.GetTestLogger(t)).EnforceL(ds, []string{"zip"}, "salary", 2)

	helpers.AssertDatasetsEqual(t, ds, out)
	assert.Equal(t, 1, report.ViolatingClasses)
	assert.Zero(t, report.SuppressedRows)
}

func TestVerifyLDiversity(t *testing.T) {
	ds, _ := helpers.ZipDataset()
	processor := NewLDiversityProcessor(helpers.GetTestLogger(t))

	// every zip group holds at most three distinct diseases
	require.Len(t, VerifyLDiversity(ds, []string{"zip"}, "disease", 3), 1)

	for l := 2; l <= 4; l++ {
		out, _ := processor.EnforceL(ds, []string{"zip"}, "disease", l)
		assert.Empty(t, VerifyLDiversity(out, []string{"zip"}, "disease", l), "l=%d", l)
	}
}
