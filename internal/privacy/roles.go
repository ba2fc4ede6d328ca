package privacy

import (
	"fmt"
	"strings"

	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

// UnassignedPolicy decides the roles of columns the caller did not classify.
type UnassignedPolicy string

const (
	// PolicyHeuristic derives roles from the semantic type.
	PolicyHeuristic UnassignedPolicy = constants.UnassignedHeuristic
	// PolicyPreserve leaves unclassified columns untouched.
	PolicyPreserve UnassignedPolicy = constants.UnassignedPreserve
	// PolicyAnonymize treats unclassified columns as sensitive.
	PolicyAnonymize UnassignedPolicy = constants.UnassignedAnonymize
)

// ParseUnassignedPolicy maps a configuration value to a policy. Empty means heuristic.
func ParseUnassignedPolicy(value string) (UnassignedPolicy, error) {
	switch UnassignedPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyHeuristic:
		return PolicyHeuristic, nil
	case PolicyPreserve:
		return PolicyPreserve, nil
	case PolicyAnonymize:
		return PolicyAnonymize, nil
	default:
		return "", fmt.Errorf("unknown unassigned column policy %q", value)
	}
}

// ColumnRoles holds the resolved column sets, each in metadata order.
// A column may be both a quasi-identifier and sensitive, or a quasi-identifier
// and preserved.
type ColumnRoles struct {
	QuasiIdentifiers []string `json:"quasi_identifiers"`
	Sensitive        []string `json:"sensitive"`
	Preserved        []string `json:"preserved"`
}

// IsPreserved reports whether column is in the preserved set.
func (r *ColumnRoles) IsPreserved(column string) bool {
	for _, col := range r.Preserved {
		if col == column {
			return true
		}
	}
	return false
}

func isHeuristicQuasiIdentifier(t models.SemanticType) bool {
	switch t {
	case models.TypeText, models.TypeAlphanumeric, models.TypeDate, models.TypeNumeric:
		return true
	}
	return false
}

func isHeuristicSensitive(t models.SemanticType) bool {
	return t == models.TypeEmail || t == models.TypePhoneNumber
}

// ResolveRoles classifies every metadata column. Explicit assignments win;
// the rest follow policy and are reported in an info diagnostic.
func ResolveRoles(metadata models.Metadata, assignments []models.RoleAssignment, policy UnassignedPolicy) (*ColumnRoles, []Diagnostic) {
	if policy == "" {
		policy = PolicyHeuristic
	}

	explicit := make(map[string]models.RoleAssignment, len(assignments))
	for _, a := range assignments {
		explicit[a.ColumnName] = a
	}

	roles := &ColumnRoles{
		QuasiIdentifiers: make([]string, 0),
		Sensitive:        make([]string, 0),
		Preserved:        make([]string, 0),
	}
	var automatic []string

	for _, col := range metadata {
		if a, ok := explicit[col.Name]; ok {
			if a.IsQuasiIdentifier {
				roles.QuasiIdentifiers = append(roles.QuasiIdentifiers, col.Name)
			}
			if a.ShouldAnonymize {
				roles.Sensitive = append(roles.Sensitive, col.Name)
			} else {
				roles.Preserved = append(roles.Preserved, col.Name)
			}
			continue
		}

		automatic = append(automatic, col.Name)
		switch policy {
		case PolicyPreserve:
			roles.Preserved = append(roles.Preserved, col.Name)
		case PolicyAnonymize:
			if isHeuristicQuasiIdentifier(col.SemanticType) {
				roles.QuasiIdentifiers = append(roles.QuasiIdentifiers, col.Name)
			}
			roles.Sensitive = append(roles.Sensitive, col.Name)
		default:
			if isHeuristicQuasiIdentifier(col.SemanticType) {
				roles.QuasiIdentifiers = append(roles.QuasiIdentifiers, col.Name)
			}
			if isHeuristicSensitive(col.SemanticType) {
				roles.Sensitive = append(roles.Sensitive, col.Name)
			}
		}
	}

	var diags []Diagnostic
	if len(automatic) > 0 {
		diags = append(diags, Diagnostic{
			Level:   DiagnosticInfo,
			Stage:   "role_resolution",
			Message: fmt.Sprintf("roles detected automatically (%s policy) for: %s", policy, strings.Join(automatic, ", ")),
		})
	}

	return roles, diags
}

// unknownAssignments returns assigned column names that the metadata does not describe.
func unknownAssignments(metadata models.Metadata, assignments []models.RoleAssignment) []string {
	var unknown []string
	for _, a := range assignments {
		if !metadata.Has(a.ColumnName) {
			unknown = append(unknown, a.ColumnName)
		}
	}
	return unknown
}
