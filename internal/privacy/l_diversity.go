package privacy

import (
	"github.com/sirupsen/logrus"

	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

const stageDiversity = "l_diversity"

// DiversityReport summarises one l-diversity pass over a sensitive attribute
type DiversityReport struct {
	L                  int    `json:"l"`
	SensitiveAttribute string `json:"sensitive_attribute"`
	Skipped            bool   `json:"skipped,omitempty"`
	Classes            int    `json:"classes"`
	ViolatingClasses   int    `json:"violating_classes"`
	SuppressedRows     int    `json:"suppressed_rows"`
}

// LDiversityProcessor enforces distinct l-diversity on a k-anonymous dataset
type LDiversityProcessor struct {
	logger *logrus.Logger
}

func NewLDiversityProcessor(logger *logrus.Logger) *LDiversityProcessor {
	if logger == nil {
		logger = logrus.New()
	}

	return &LDiversityProcessor{
		logger: logger,
	}
}

// EnforceL returns a copy of ds where, in every equivalence class with fewer
// than l distinct values of sensitiveAttr, that attribute is replaced with
// the diversity marker. Cells already holding a marker are left alone, which
// makes the pass idempotent.
func (p *LDiversityProcessor) EnforceL(ds *models.Dataset, qis []string, sensitiveAttr string, l int) (*models.Dataset, *DiversityReport) {
	out := ds.Clone()
	report := &DiversityReport{L: l, SensitiveAttribute: sensitiveAttr}

	logger := p.logger.WithFields(logrus.Fields{
		"stage":     stageDiversity,
		"sensitive": sensitiveAttr,
		"l":         l,
	})

	if !out.HasColumn(sensitiveAttr) {
		logger.Warn("Sensitive attribute not found in dataset, skipping l-diversity")
		report.Skipped = true
		return out, report
	}

	validQIs, _ := presentColumns(out, qis)
	if len(validQIs) == 0 {
		logger.Warn("No valid quasi-identifiers found, skipping l-diversity")
		report.Skipped = true
		return out, report
	}

	classes := createEquivalenceClasses(out, validQIs)
	report.Classes = len(classes)

	for _, class := range classes {
		if distinctSensitiveValues(out, class, sensitiveAttr) >= l {
			continue
		}

		report.ViolatingClasses++
		for _, idx := range class.Rows {
			row := out.Rows[idx]
			if isMarker(row[sensitiveAttr]) {
				continue
			}
			row[sensitiveAttr] = constants.DiversityMarker
			report.SuppressedRows++
		}
	}

	if report.ViolatingClasses > 0 {
		logger.WithFields(logrus.Fields{
			"violating_classes": report.ViolatingClasses,
			"suppressed_rows":   report.SuppressedRows,
		}).Info("Suppressed sensitive attribute in low-diversity classes")
	} else {
		logger.Info("All equivalence classes satisfy l-diversity")
	}

	return out, report
}

// VerifyLDiversity returns the equivalence classes that have fewer than l
// distinct values of sensitiveAttr and still expose at least one of them.
func VerifyLDiversity(ds *models.Dataset, qis []string, sensitiveAttr string, l int) []*EquivalenceClass {
	validQIs, _ := presentColumns(ds, qis)
	if len(validQIs) == 0 || !ds.HasColumn(sensitiveAttr) {
		return nil
	}

	var violations []*EquivalenceClass
	for _, class := range createEquivalenceClasses(ds, validQIs) {
		if distinctSensitiveValues(ds, class, sensitiveAttr) >= l {
			continue
		}
		if classSuppressed(ds, class, []string{sensitiveAttr}) {
			continue
		}
		violations = append(violations, class)
	}
	return violations
}

// distinctSensitiveValues counts the distinct non-missing, non-marker values
// of column within a class.
func distinctSensitiveValues(ds *models.Dataset, class *EquivalenceClass, column string) int {
	seen := make(map[string]struct{})
	for _, idx := range class.Rows {
		v := ds.Rows[idx][column]
		if models.IsMissing(v) || isMarker(v) {
			continue
		}
		seen[valueKey(v)] = struct{}{}
	}
	return len(seen)
}
