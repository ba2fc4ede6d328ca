package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IacopoSb/AnonimaData/pkg/models"
)

func testMetadata() models.Metadata {
	return models.Metadata{
		{Name: "name", SemanticType: models.TypeText},
		{Name: "age", SemanticType: models.TypeNumeric},
		{Name: "birth", SemanticType: models.TypeDate},
		{Name: "email", SemanticType: models.TypeEmail},
		{Name: "phone", SemanticType: models.TypePhoneNumber},
		{Name: "city", SemanticType: models.TypeCategorical},
	}
}

func TestResolveRolesExplicit(t *testing.T) {
	assignments := []models.RoleAssignment{
		{ColumnName: "name", IsQuasiIdentifier: true, ShouldAnonymize: true},
		{ColumnName: "age", IsQuasiIdentifier: true, ShouldAnonymize: false},
		{ColumnName: "birth", IsQuasiIdentifier: false, ShouldAnonymize: false},
		{ColumnName: "email", IsQuasiIdentifier: false, ShouldAnonymize: true},
		{ColumnName: "phone", IsQuasiIdentifier: false, ShouldAnonymize: true},
		{ColumnName: "city", IsQuasiIdentifier: true, ShouldAnonymize: true},
	}

	roles, diags := ResolveRoles(testMetadata(), assignments, PolicyHeuristic)

	assert.Equal(t, []string{"name", "age", "city"}, roles.QuasiIdentifiers)
	assert.Equal(t, []string{"name", "email", "phone", "city"}, roles.Sensitive)
	assert.Equal(t, []string{"age", "birth"}, roles.Preserved)
	assert.True(t, roles.IsPreserved("age"))
	assert.Empty(t, diags, "no automatic detection when every column is assigned")
}

func TestResolveRolesHeuristic(t *testing.T) {
	roles, diags := ResolveRoles(testMetadata(), nil, PolicyHeuristic)

	assert.Equal(t, []string{"name", "age", "birth"}, roles.QuasiIdentifiers)
	assert.Equal(t, []string{"email", "phone"}, roles.Sensitive)
	assert.Empty(t, roles.Preserved)

	require.Len(t, diags, 1)
	assert.Equal(t, DiagnosticInfo, diags[0].Level)
	assert.Contains(t, diags[0].Message, "city")
}

func TestResolveRolesPolicies(t *testing.T) {
	assignments := []models.RoleAssignment{
		{ColumnName: "email", IsQuasiIdentifier: false, ShouldAnonymize: true},
	}

	roles, _ := ResolveRoles(testMetadata(), assignments, PolicyPreserve)
	assert.Empty(t, roles.QuasiIdentifiers)
	assert.Equal(t, []string{"email"}, roles.Sensitive)
	assert.Equal(t, []string{"name", "age", "birth", "phone", "city"}, roles.Preserved)

	roles, _ = ResolveRoles(testMetadata(), assignments, PolicyAnonymize)
	assert.Equal(t, []string{"name", "age", "birth"}, roles.QuasiIdentifiers)
	assert.Equal(t, []string{"name", "age", "birth", "email", "phone", "city"}, roles.Sensitive)
	assert.Empty(t, roles.Preserved)
}

func TestResolveRolesDoesNotMutateInputs(t *testing.T) {
	metadata := testMetadata()
	before := append(models.Metadata(nil), metadata...)

	ResolveRoles(metadata, nil, "")
	assert.Equal(t, before, metadata)
}

func TestParseUnassignedPolicy(t *testing.T) {
	policy, err := ParseUnassignedPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyHeuristic, policy)

	policy, err = ParseUnassignedPolicy(" Preserve ")
	require.NoError(t, err)
	assert.Equal(t, PolicyPreserve, policy)

	_, err = ParseUnassignedPolicy("guess")
	assert.Error(t, err)
}

func TestUnknownAssignments(t *testing.T) {
	assignments := []models.RoleAssignment{
		{ColumnName: "age"},
		{ColumnName: "salary"},
	}
	assert.Equal(t, []string{"salary"}, unknownAssignments(testMetadata(), assignments))
}
