package privacy

import (
	"fmt"

	"github.com/sirupsen/logrus"

	mathutil "github.com/IacopoSb/AnonimaData/internal/utils/math"
	"github.com/IacopoSb/AnonimaData/pkg/errors"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

const stageNoise = "noise_injection"

// SensitivityFraction is the share of a column's range used as its sensitivity
const SensitivityFraction = 0.01

// DifferentialPrivacyEngine perturbs sensitive columns: Laplace noise for
// numbers, randomized response for categorical values.
type DifferentialPrivacyEngine struct {
	source NoiseSource
	logger *logrus.Logger
}

// NewDifferentialPrivacyEngine creates an engine drawing from source. A nil
// source falls back to the secure source.
func NewDifferentialPrivacyEngine(source NoiseSource, logger *logrus.Logger) *DifferentialPrivacyEngine {
	if source == nil {
		source = NewSecureNoiseSource()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &DifferentialPrivacyEngine{
		source: source,
		logger: logger,
	}
}

// ApplyDP returns a copy of ds with every target column perturbed under the
// epsilon budget. Preserved columns are skipped even when targeted. A column
// whose perturbation fails is left unchanged and reported.
func (dpe *DifferentialPrivacyEngine) ApplyDP(ds *models.Dataset, targets, preserved []string, metadata models.Metadata, epsilon float64) (*models.Dataset, []Diagnostic) {
	out := ds.Clone()
	diags := newDiagnostics(dpe.logger, stageNoise)

	if len(targets) == 0 {
		diags.warn("", "no columns selected for anonymization")
		return out, diags.items
	}

	dpe.logger.WithFields(logrus.Fields{
		"epsilon": epsilon,
		"targets": targets,
		"source":  dpe.source.GetName(),
	}).Info("Applying differential privacy")

	skip := toSet(preserved)
	for _, col := range targets {
		if skip[col] {
			diags.info(col, "column %s is preserved, skipping", col)
			continue
		}
		if !out.HasColumn(col) {
			diags.warn(col, "column %s not found in dataset", col)
			continue
		}

		values, err := dpe.perturbColumn(col, out.Column(col), metadata.TypeOf(col), epsilon, diags)
		if err != nil {
			diags.add(DiagnosticError, col, errors.CodeTransformFailure,
				errors.NewTransformError(stageNoise, err).Error())
			continue
		}
		if values == nil {
			continue
		}
		if err := out.SetColumn(col, values); err != nil {
			diags.add(DiagnosticError, col, errors.CodeTransformFailure,
				errors.NewTransformError(stageNoise, err).Error())
		}
	}

	return out, diags.items
}

func (dpe *DifferentialPrivacyEngine) perturbColumn(col string, values []interface{}, semanticType models.SemanticType, epsilon float64, diags *diagnostics) (result []interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if nums, ok := numericValues(values); ok {
		return dpe.addLaplaceNoise(col, values, nums, epsilon, diags)
	}

	if supportsRandomizedResponse(semanticType) {
		return dpe.applyRandomizedResponse(col, values, epsilon, diags), nil
	}

	diags.info(col, "column %s of type %s is not numeric or categorical, leaving it unchanged", col, semanticType)
	return nil, nil
}

func (dpe *DifferentialPrivacyEngine) addLaplaceNoise(col string, values []interface{}, nums []float64, epsilon float64, diags *diagnostics) ([]interface{}, error) {
	dataRange := mathutil.Range(nums)
	if dataRange == 0 {
		diags.info(col, "column %s has no variance, skipping noise addition", col)
		return nil, nil
	}

	sensitivity := dataRange * SensitivityFraction
	scale := sensitivity / epsilon
	decimals := noiseDecimals(scale)

	dpe.logger.WithFields(logrus.Fields{
		"column":      col,
		"sensitivity": sensitivity,
		"scale":       scale,
		"decimals":    decimals,
	}).Debug("Adding Laplace noise")

	out := make([]interface{}, len(values))
	for i, v := range values {
		f, ok := models.ToFloat(v)
		if !ok {
			out[i] = v
			continue
		}
		noisy, err := dpe.source.AddLaplace(f, sensitivity, epsilon)
		if err != nil {
			return nil, err
		}
		out[i] = mathutil.Round(noisy, decimals)
	}
	return out, nil
}

func (dpe *DifferentialPrivacyEngine) applyRandomizedResponse(col string, values []interface{}, epsilon float64, diags *diagnostics) []interface{} {
	domain := observedDomain(values)
	if len(domain) == 0 {
		diags.warn(col, "no values found for randomized response in %s", col)
		return nil
	}

	p := randomizedResponseProbability(epsilon)
	out := make([]interface{}, len(values))
	replaced := 0
	for i, v := range values {
		out[i] = v
		draw := dpe.source.Float64()
		if models.IsMissing(v) || isMarker(v) {
			continue
		}
		if draw < p {
			out[i] = domain[dpe.source.Intn(len(domain))]
			replaced++
		}
	}

	dpe.logger.WithFields(logrus.Fields{
		"column":      col,
		"probability": p,
		"domain_size": len(domain),
		"replaced":    replaced,
	}).Debug("Applied randomized response")

	return out
}

// observedDomain returns the distinct non-missing values of a column in
// first-seen order.
func observedDomain(values []interface{}) []interface{} {
	seen := make(map[string]bool)
	domain := make([]interface{}, 0)
	for _, v := range values {
		if models.IsMissing(v) || isMarker(v) {
			continue
		}
		key := valueKey(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		domain = append(domain, v)
	}
	return domain
}

func supportsRandomizedResponse(t models.SemanticType) bool {
	switch t {
	case models.TypeText, models.TypeAlphanumeric, models.TypeEmail, models.TypePhoneNumber, models.TypeCategorical:
		return true
	}
	return false
}
