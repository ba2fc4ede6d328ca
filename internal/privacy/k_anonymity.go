package privacy

import (
	"github.com/sirupsen/logrus"

	mathutil "github.com/IacopoSb/AnonimaData/internal/utils/math"
	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

const stageSuppression = "suppression"

// SuppressionReport summarises one suppression pass
type SuppressionReport struct {
	K                 int      `json:"k"`
	QuasiIdentifiers  []string `json:"quasi_identifiers"`
	Classes           int      `json:"classes"`
	ViolatingClasses  int      `json:"violating_classes"`
	SuppressedRows    int      `json:"suppressed_rows"`
	SuppressedCells   int      `json:"suppressed_cells"`
	SuppressedColumns []string `json:"suppressed_columns"`
}

// KAnonymityProcessor suppresses rows whose quasi-identifier tuple is shared
// by fewer than k rows.
type KAnonymityProcessor struct {
	logger *logrus.Logger
}

func NewKAnonymityProcessor(logger *logrus.Logger) *KAnonymityProcessor {
	if logger == nil {
		logger = logrus.New()
	}

	return &KAnonymityProcessor{
		logger: logger,
	}
}

// EnforceK returns a copy of ds where every row of an equivalence class
// smaller than k has its quasi-identifier and sensitive columns suppressed.
// Preserved columns are never touched. Quasi-identifiers missing from the
// dataset are ignored; when none remain the pass is a no-op.
func (p *KAnonymityProcessor) EnforceK(ds *models.Dataset, qis, sensitive, preserved []string, k int) (*models.Dataset, *SuppressionReport) {
	out := ds.Clone()

	validQIs, missing := presentColumns(out, qis)
	report := &SuppressionReport{
		K:                 k,
		QuasiIdentifiers:  validQIs,
		SuppressedColumns: make([]string, 0),
	}

	if len(missing) > 0 {
		p.logger.WithField("columns", missing).Warn("Quasi-identifiers not found in dataset")
	}
	if len(validQIs) == 0 {
		p.logger.Warn("No valid quasi-identifiers found, skipping k-anonymity enforcement")
		return out, report
	}

	classes := createEquivalenceClasses(out, validQIs)
	report.Classes = len(classes)

	violating := make([]int, 0)
	for _, class := range classes {
		if class.Size < k {
			report.ViolatingClasses++
			violating = append(violating, class.Rows...)
		}
	}

	p.logger.WithFields(logrus.Fields{
		"k":                 k,
		"classes":           report.Classes,
		"violating_classes": report.ViolatingClasses,
	}).Info("Computed equivalence classes")

	if len(violating) == 0 {
		return out, report
	}
	report.SuppressedRows = len(violating)

	qiSet := toSet(validQIs)
	sensitiveSet := toSet(sensitive)
	preservedSet := toSet(preserved)

	for _, col := range out.Columns {
		if preservedSet[col] {
			p.logger.WithField("column", col).Debug("Preserving column")
			continue
		}
		if !qiSet[col] && !sensitiveSet[col] {
			continue
		}

		marker := interface{}(constants.SuppressedMarker)
		if !qiSet[col] {
			if nums, ok := numericValues(out.Column(col)); ok {
				min, max, _ := mathutil.MinMax(nums)
				marker = rangeMarker(min, max)
			}
		}

		changed := 0
		for _, idx := range violating {
			row := out.Rows[idx]
			if isMarker(row[col]) {
				continue
			}
			row[col] = marker
			changed++
		}
		if changed > 0 {
			report.SuppressedCells += changed
			report.SuppressedColumns = append(report.SuppressedColumns, col)
		}
	}

	p.logger.WithFields(logrus.Fields{
		"stage":   stageSuppression,
		"rows":    report.SuppressedRows,
		"cells":   report.SuppressedCells,
		"columns": report.SuppressedColumns,
	}).Info("Suppressed small equivalence classes")

	return out, report
}

// VerifyKAnonymity returns the equivalence classes that have fewer than k
// rows while still exposing a quasi-identifier value. An empty result means
// ds is k-anonymous over qis.
func VerifyKAnonymity(ds *models.Dataset, qis []string, k int) []*EquivalenceClass {
	validQIs, _ := presentColumns(ds, qis)
	if len(validQIs) == 0 {
		return nil
	}

	var violations []*EquivalenceClass
	for _, class := range createEquivalenceClasses(ds, validQIs) {
		if class.Size >= k {
			continue
		}
		if classSuppressed(ds, class, validQIs) {
			continue
		}
		violations = append(violations, class)
	}
	return violations
}

func classSuppressed(ds *models.Dataset, class *EquivalenceClass, columns []string) bool {
	for _, idx := range class.Rows {
		for _, col := range columns {
			if !isMarker(ds.Rows[idx][col]) {
				return false
			}
		}
	}
	return true
}
