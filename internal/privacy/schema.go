package privacy

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/errors"
)

// Method identifies one of the supported anonymization pipelines
type Method string

const (
	MethodKAnonymity          Method = constants.MethodKAnonymity
	MethodLDiversity          Method = constants.MethodLDiversity
	MethodDifferentialPrivacy Method = constants.MethodDifferentialPrivacy
)

var methodAliases = map[string]Method{
	"k_anonymity":          MethodKAnonymity,
	"k-anonymity":          MethodKAnonymity,
	"l_diversity":          MethodLDiversity,
	"l-diversity":          MethodLDiversity,
	"differential_privacy": MethodDifferentialPrivacy,
	"differential-privacy": MethodDifferentialPrivacy,
}

// ParseMethod resolves a method name, accepting hyphenated spellings
func ParseMethod(name string) (Method, error) {
	if m, ok := methodAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return m, nil
	}
	return "", errors.NewUnknownMethodError(name)
}

// ParameterType is the declared type of a method parameter
type ParameterType string

const (
	ParameterInt   ParameterType = "int"
	ParameterFloat ParameterType = "float"
)

// ParameterSpec describes one parameter of a method
type ParameterSpec struct {
	Name         string        `json:"name"`
	Type         ParameterType `json:"type"`
	Default      float64       `json:"default"`
	Min          float64       `json:"min"`
	MinExclusive bool          `json:"min_exclusive,omitempty"`
	Max          float64       `json:"max,omitempty"`
	HasMax       bool          `json:"-"`
	Description  string        `json:"description"`
}

// MethodSchema lists the parameters accepted by a method
type MethodSchema struct {
	Method      Method          `json:"method"`
	Description string          `json:"description"`
	Parameters  []ParameterSpec `json:"parameters"`
}

var methodSchemas = []MethodSchema{
	{
		Method:      MethodKAnonymity,
		Description: "Generalize quasi-identifiers and suppress equivalence classes smaller than k",
		Parameters: []ParameterSpec{
			{Name: constants.ParamK, Type: ParameterInt, Default: constants.DefaultK, Min: constants.MinK, Max: constants.MaxK, HasMax: true,
				Description: "Minimum group size for k-anonymity"},
		},
	},
	{
		Method:      MethodLDiversity,
		Description: "k-anonymity followed by suppression of sensitive values in classes with fewer than l distinct values",
		Parameters: []ParameterSpec{
			{Name: constants.ParamK, Type: ParameterInt, Default: constants.DefaultK, Min: constants.MinK, Max: constants.MaxK, HasMax: true,
				Description: "Minimum group size for k-anonymity base"},
			{Name: constants.ParamL, Type: ParameterInt, Default: constants.DefaultL, Min: constants.MinL,
				Description: "Minimum distinct sensitive values in each group, at most k"},
		},
	},
	{
		Method:      MethodDifferentialPrivacy,
		Description: "Laplace noise on numeric columns and randomized response on categorical columns",
		Parameters: []ParameterSpec{
			{Name: constants.ParamEpsilon, Type: ParameterFloat, Default: constants.DefaultEpsilon, Min: 0, MinExclusive: true, Max: constants.MaxEpsilon, HasMax: true,
				Description: "Privacy budget (epsilon) for differential privacy"},
		},
	},
}

// Schemas returns a copy of the parameter schema table
func Schemas() []MethodSchema {
	out := make([]MethodSchema, len(methodSchemas))
	for i, s := range methodSchemas {
		out[i] = s
		out[i].Parameters = append([]ParameterSpec(nil), s.Parameters...)
	}
	return out
}

func schemaFor(method Method) (MethodSchema, bool) {
	for _, s := range methodSchemas {
		if s.Method == method {
			return s, true
		}
	}
	return MethodSchema{}, false
}

// Parameters is a validated, defaulted parameter set
type Parameters struct {
	Method  Method  `json:"method"`
	K       int     `json:"k,omitempty"`
	L       int     `json:"l,omitempty"`
	Epsilon float64 `json:"epsilon,omitempty"`
}

// AsMap returns the parameters that apply to the method
func (p *Parameters) AsMap() map[string]interface{} {
	switch p.Method {
	case MethodKAnonymity:
		return map[string]interface{}{constants.ParamK: p.K}
	case MethodLDiversity:
		return map[string]interface{}{constants.ParamK: p.K, constants.ParamL: p.L}
	case MethodDifferentialPrivacy:
		return map[string]interface{}{constants.ParamEpsilon: p.Epsilon}
	}
	return map[string]interface{}{}
}

// ValidateParameters checks params against the method schema, coercing
// string-encoded numbers and filling defaults. Unknown parameter names are
// ignored.
func ValidateParameters(method string, params map[string]interface{}) (*Parameters, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}
	schema, _ := schemaFor(m)

	values := make(map[string]float64, len(schema.Parameters))
	for _, spec := range schema.Parameters {
		raw, ok := params[spec.Name]
		if !ok || raw == nil {
			values[spec.Name] = spec.Default
			continue
		}

		v, err := coerceParameter(spec, raw)
		if err != nil {
			return nil, err
		}
		if err := checkRange(spec, v); err != nil {
			return nil, err
		}
		values[spec.Name] = v
	}

	result := &Parameters{Method: m}
	switch m {
	case MethodKAnonymity:
		result.K = int(values[constants.ParamK])
	case MethodLDiversity:
		result.K = int(values[constants.ParamK])
		result.L = int(values[constants.ParamL])
		if result.L > result.K {
			return nil, errors.NewInvalidParameterError(constants.ParamL,
				fmt.Sprintf("cannot be greater than k (l=%d, k=%d)", result.L, result.K))
		}
	case MethodDifferentialPrivacy:
		result.Epsilon = values[constants.ParamEpsilon]
	}

	return result, nil
}

func coerceParameter(spec ParameterSpec, raw interface{}) (float64, error) {
	var (
		v  float64
		ok bool
	)

	switch val := raw.(type) {
	case int:
		v, ok = float64(val), true
	case int32:
		v, ok = float64(val), true
	case int64:
		v, ok = float64(val), true
	case float32:
		v, ok = float64(val), true
	case float64:
		v, ok = val, true
	case json.Number:
		f, err := val.Float64()
		v, ok = f, err == nil
	case string:
		s := strings.TrimSpace(val)
		if spec.Type == ParameterInt {
			n, err := strconv.Atoi(s)
			v, ok = float64(n), err == nil
		} else {
			f, err := strconv.ParseFloat(s, 64)
			v, ok = f, err == nil
		}
	}

	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.NewInvalidParameterError(spec.Name, fmt.Sprintf("must be %s, got %v", typeNoun(spec.Type), raw))
	}
	if spec.Type == ParameterInt && v != math.Trunc(v) {
		return 0, errors.NewInvalidParameterError(spec.Name, fmt.Sprintf("must be an integer, got %v", raw))
	}
	return v, nil
}

func checkRange(spec ParameterSpec, v float64) error {
	if spec.MinExclusive && v <= spec.Min {
		return errors.NewInvalidParameterError(spec.Name, fmt.Sprintf("must be greater than %g", spec.Min))
	}
	if !spec.MinExclusive && v < spec.Min {
		return errors.NewInvalidParameterError(spec.Name, fmt.Sprintf("must be at least %g", spec.Min))
	}
	if spec.HasMax && v > spec.Max {
		return errors.NewInvalidParameterError(spec.Name, fmt.Sprintf("must be at most %g", spec.Max))
	}
	return nil
}

func typeNoun(t ParameterType) string {
	if t == ParameterInt {
		return "an integer"
	}
	return "a number"
}
