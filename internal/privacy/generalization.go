package privacy

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	mathutil "github.com/IacopoSb/AnonimaData/internal/utils/math"
	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/errors"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

const stageGeneralization = "generalization"

// Maximum and minimum number of quantile bins for numeric columns
const (
	maxNumericBins = 10
	minNumericBins = 2
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"2006/01/02",
	"2006-01",
}

// Generalizer coarsens quasi-identifier values so that more rows share them.
type Generalizer struct {
	logger *logrus.Logger
}

// NewGeneralizer creates a generalizer
func NewGeneralizer(logger *logrus.Logger) *Generalizer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Generalizer{logger: logger}
}

// Generalize returns a copy of ds with every quasi-identifier column coarsened
// according to its type. Row count and order are kept. A column that fails to
// generalize is left as it was and reported in the diagnostics.
func (g *Generalizer) Generalize(ds *models.Dataset, qis, preserved []string, metadata models.Metadata, k int) (*models.Dataset, []Diagnostic) {
	out := ds.Clone()
	diags := newDiagnostics(g.logger, stageGeneralization)

	if len(qis) == 0 {
		diags.warn("", "no quasi-identifiers selected, skipping generalization")
		return out, diags.items
	}
	if len(qis) > constants.MaxRecommendedQuasiIdentifiers {
		diags.warn("", "%d quasi-identifiers selected, equivalence classes may become very sparse", len(qis))
	}

	skip := toSet(preserved)
	for _, col := range qis {
		if !out.HasColumn(col) {
			diags.warn(col, "column %s not found in dataset, skipping", col)
			continue
		}
		if skip[col] {
			diags.info(col, "column %s is preserved, skipping generalization", col)
			continue
		}

		values, err := g.generalizeColumn(out.Column(col), metadata.TypeOf(col), k)
		if err != nil {
			diags.add(DiagnosticError, col, errors.CodeTransformFailure,
				errors.NewTransformError(stageGeneralization, err).Error())
			continue
		}
		if values == nil {
			continue
		}
		if err := out.SetColumn(col, values); err != nil {
			diags.add(DiagnosticError, col, errors.CodeTransformFailure,
				errors.NewTransformError(stageGeneralization, err).Error())
		}
	}

	return out, diags.items
}

// generalizeColumn returns the new column values, or nil when the column is
// left untouched. Panics are turned into errors so one column cannot abort
// the others.
func (g *Generalizer) generalizeColumn(values []interface{}, semanticType models.SemanticType, k int) (result []interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if nums, ok := numericValues(values); ok {
		return g.generalizeNumeric(values, nums, k), nil
	}

	switch semanticType {
	case models.TypeDate:
		return generalizeDates(values), nil
	case models.TypeText, models.TypeAlphanumeric:
		return maskText(values), nil
	}
	return nil, nil
}

// generalizeNumeric replaces each number with the label of its quantile bin.
func (g *Generalizer) generalizeNumeric(values []interface{}, nums []float64, k int) []interface{} {
	distinct := mathutil.DistinctCount(nums)
	if distinct <= 1 {
		return nil
	}
	if k < 1 {
		k = 1
	}

	bins := distinct / k
	if bins < minNumericBins {
		bins = minNumericBins
	}
	if bins > maxNumericBins {
		bins = maxNumericBins
	}

	edges := mathutil.QuantileEdges(nums, bins)
	labels := make([]string, len(edges)-1)
	for i := range labels {
		labels[i] = fmt.Sprintf(constants.BinLabelFormat, edges[i], edges[i+1])
	}

	g.logger.WithFields(logrus.Fields{
		"requested_bins": bins,
		"bins":           len(labels),
		"distinct":       distinct,
	}).Debug("Generalizing numeric column")

	out := make([]interface{}, len(values))
	for i, v := range values {
		f, ok := models.ToFloat(v)
		if !ok {
			out[i] = v
			continue
		}
		out[i] = labels[mathutil.BinIndex(f, edges)]
	}
	return out
}

// generalizeDates truncates dates to year and month. Unparseable values
// become missing.
func generalizeDates(values []interface{}) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		if models.IsMissing(v) || isMarker(v) {
			out[i] = v
			continue
		}
		t, ok := parseDate(v)
		if !ok {
			out[i] = nil
			continue
		}
		out[i] = t.Format(constants.DateGeneralizationLayout)
	}
	return out
}

func parseDate(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// maskText keeps the first character of each value and masks the rest.
func maskText(values []interface{}) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		if models.IsMissing(v) || isMarker(v) {
			out[i] = v
			continue
		}
		runes := []rune(fmt.Sprint(v))
		if len(runes) <= 1 {
			out[i] = v
			continue
		}
		out[i] = string(runes[0]) + strings.Repeat(constants.MaskCharacter, len(runes)-1)
	}
	return out
}
