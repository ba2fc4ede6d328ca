package privacy

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/errors"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

const stageDispatch = "anonymization"

// Config holds the engine settings shared by every invocation
type Config struct {
	// Seed makes noise and randomized response reproducible. Nil uses the
	// secure non-deterministic source.
	Seed             *int64           `json:"seed,omitempty" mapstructure:"seed"`
	UnassignedPolicy UnassignedPolicy `json:"unassigned_policy" mapstructure:"unassigned_policy"`
	SampleSize       int              `json:"sample_size" mapstructure:"sample_size"`
}

func getDefaultConfig() *Config {
	return &Config{
		UnassignedPolicy: PolicyHeuristic,
		SampleSize:       constants.DefaultSampleSize,
	}
}

// Request is a single anonymization call
type Request struct {
	Dataset  *models.Dataset         `json:"dataset"`
	Metadata models.Metadata         `json:"metadata"`
	Roles    []models.RoleAssignment `json:"roles,omitempty"`
	Method   string                  `json:"method"`
	Params   map[string]interface{}  `json:"params,omitempty"`
}

// Report gathers the per-stage summaries of an invocation
type Report struct {
	Suppression *SuppressionReport `json:"suppression,omitempty"`
	Diversity   []*DiversityReport `json:"diversity,omitempty"`
}

// Result is the outcome of a successful anonymization
type Result struct {
	Dataset     *models.Dataset `json:"dataset"`
	Sample      *models.Dataset `json:"sample"`
	Method      Method          `json:"method"`
	Parameters  *Parameters     `json:"parameters"`
	Roles       *ColumnRoles    `json:"roles"`
	Diagnostics []Diagnostic    `json:"diagnostics,omitempty"`
	Report      *Report         `json:"report"`
}

// invocation is the working state of one Anonymize call
type invocation struct {
	dataset  *models.Dataset
	metadata models.Metadata
	roles    *ColumnRoles
	params   *Parameters
	report   *Report
	diags    []Diagnostic
}

type pipeline func(a *Anonymizer, ctx context.Context, inv *invocation) error

var pipelines = map[Method]pipeline{
	MethodKAnonymity:          (*Anonymizer).runKAnonymity,
	MethodLDiversity:          (*Anonymizer).runLDiversity,
	MethodDifferentialPrivacy: (*Anonymizer).runDifferentialPrivacy,
}

// Anonymizer dispatches requests to the anonymization pipelines. It keeps no
// per-call state and is safe for concurrent use.
type Anonymizer struct {
	config *Config
	logger *logrus.Logger
}

func NewAnonymizer(config *Config, logger *logrus.Logger) *Anonymizer {
	if config == nil {
		config = getDefaultConfig()
	}
	if config.UnassignedPolicy == "" {
		config.UnassignedPolicy = PolicyHeuristic
	}
	if config.SampleSize <= 0 {
		config.SampleSize = constants.DefaultSampleSize
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Anonymizer{
		config: config,
		logger: logger,
	}
}

// Anonymize validates the request, resolves column roles and runs the
// requested pipeline on a copy of the dataset. On failure the result is nil.
func (a *Anonymizer) Anonymize(ctx context.Context, req *Request) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.WithField("panic", r).Error("Anonymization pipeline panicked")
			result = nil
			err = errors.NewTransformError(stageDispatch, fmt.Errorf("panic: %v", r))
		}
	}()

	if req == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidInput, "anonymization request is nil")
	}

	method, err := ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}
	params, err := ValidateParameters(string(method), req.Params)
	if err != nil {
		return nil, err
	}

	if req.Dataset.IsEmpty() {
		return nil, errors.NewEmptyDatasetError(fmt.Sprintf("%d columns, %d rows", datasetColumns(req.Dataset), req.Dataset.Len()))
	}
	if err := req.Dataset.Validate(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "invalid dataset")
	}

	metadata, diags, err := a.effectiveMetadata(req)
	if err != nil {
		return nil, err
	}

	roles, roleDiags := ResolveRoles(metadata, req.Roles, a.config.UnassignedPolicy)
	diags = append(diags, roleDiags...)
	if err := checkRoleColumns(req.Dataset, roles); err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"method":            method,
		"params":            params.AsMap(),
		"rows":              req.Dataset.Len(),
		"quasi_identifiers": roles.QuasiIdentifiers,
		"sensitive":         roles.Sensitive,
		"preserved":         roles.Preserved,
	}).Info("Starting anonymization")

	inv := &invocation{
		dataset:  req.Dataset.Clone(),
		metadata: metadata,
		roles:    roles,
		params:   params,
		report:   &Report{},
		diags:    diags,
	}

	if err := pipelines[method](a, ctx, inv); err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"method":      method,
		"diagnostics": len(inv.diags),
	}).Info("Anonymization completed")

	return &Result{
		Dataset:     inv.dataset,
		Sample:      inv.dataset.Head(a.config.SampleSize),
		Method:      method,
		Parameters:  params,
		Roles:       roles,
		Diagnostics: inv.diags,
		Report:      inv.report,
	}, nil
}

func (a *Anonymizer) runKAnonymity(ctx context.Context, inv *invocation) error {
	if err := checkContext(ctx, stageGeneralization); err != nil {
		return err
	}
	generalized, diags := NewGeneralizer(a.logger).Generalize(inv.dataset, inv.roles.QuasiIdentifiers, inv.roles.Preserved, inv.metadata, inv.params.K)
	inv.dataset = generalized
	inv.diags = append(inv.diags, diags...)

	if err := checkContext(ctx, stageSuppression); err != nil {
		return err
	}
	suppressed, report := NewKAnonymityProcessor(a.logger).EnforceK(inv.dataset, inv.roles.QuasiIdentifiers, inv.roles.Sensitive, inv.roles.Preserved, inv.params.K)
	inv.dataset = suppressed
	inv.report.Suppression = report
	return nil
}

func (a *Anonymizer) runLDiversity(ctx context.Context, inv *invocation) error {
	if err := a.runKAnonymity(ctx, inv); err != nil {
		return err
	}

	if len(inv.roles.Sensitive) == 0 {
		inv.diags = append(inv.diags, Diagnostic{
			Level:   DiagnosticWarning,
			Stage:   stageDiversity,
			Message: "no sensitive attributes selected, skipping l-diversity",
		})
		return nil
	}

	processor := NewLDiversityProcessor(a.logger)
	for _, attr := range inv.roles.Sensitive {
		if err := checkContext(ctx, stageDiversity); err != nil {
			return err
		}
		diverse, report := processor.EnforceL(inv.dataset, inv.roles.QuasiIdentifiers, attr, inv.params.L)
		inv.dataset = diverse
		inv.report.Diversity = append(inv.report.Diversity, report)
		if report.Skipped {
			inv.diags = append(inv.diags, Diagnostic{
				Level:   DiagnosticWarning,
				Stage:   stageDiversity,
				Column:  attr,
				Message: fmt.Sprintf("l-diversity skipped for %s", attr),
			})
		}
	}
	return nil
}

func (a *Anonymizer) runDifferentialPrivacy(ctx context.Context, inv *invocation) error {
	if err := checkContext(ctx, stageNoise); err != nil {
		return err
	}
	engine := NewDifferentialPrivacyEngine(a.newNoiseSource(), a.logger)
	noisy, diags := engine.ApplyDP(inv.dataset, inv.roles.Sensitive, inv.roles.Preserved, inv.metadata, inv.params.Epsilon)
	inv.dataset = noisy
	inv.diags = append(inv.diags, diags...)
	return nil
}

// newNoiseSource returns a fresh source per call so that a seeded engine
// gives the same output for the same input.
func (a *Anonymizer) newNoiseSource() NoiseSource {
	if a.config.Seed != nil {
		return NewSeededNoiseSource(*a.config.Seed)
	}
	return NewSecureNoiseSource()
}

// effectiveMetadata adds an unknown-typed entry for dataset columns that have a
// role assignment but no metadata, and rejects assignments naming columns
// that exist nowhere.
func (a *Anonymizer) effectiveMetadata(req *Request) (models.Metadata, []Diagnostic, error) {
	metadata := append(models.Metadata(nil), req.Metadata...)
	var diags []Diagnostic

	for _, name := range unknownAssignments(metadata, req.Roles) {
		if !req.Dataset.HasColumn(name) {
			return nil, nil, errors.NewMissingColumnError(name, "assigned")
		}
		metadata = append(metadata, models.ColumnMetadata{Name: name, SemanticType: models.TypeUnknown})
		diags = append(diags, Diagnostic{
			Level:   DiagnosticWarning,
			Stage:   "role_resolution",
			Column:  name,
			Message: fmt.Sprintf("column %s has no metadata, treating its type as unknown", name),
		})
	}

	return metadata, diags, nil
}

func checkRoleColumns(ds *models.Dataset, roles *ColumnRoles) error {
	if _, missing := presentColumns(ds, roles.QuasiIdentifiers); len(missing) > 0 {
		return errors.NewMissingColumnError(missing[0], "quasi-identifier")
	}
	if _, missing := presentColumns(ds, roles.Sensitive); len(missing) > 0 {
		return errors.NewMissingColumnError(missing[0], "sensitive")
	}
	return nil
}

func checkContext(ctx context.Context, stage string) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.WrapError(err, errors.ErrorTypePrivacy, errors.CodeTransformFailure, fmt.Sprintf("%s cancelled", stage))
	}
	return nil
}

func datasetColumns(ds *models.Dataset) int {
	if ds == nil {
		return 0
	}
	return len(ds.Columns)
}
