package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSemanticType(t *testing.T) {
	tests := map[string]SemanticType{
		"numeric":      TypeNumeric,
		"integer":      TypeNumeric,
		"Float":        TypeNumeric,
		"string":       TypeText,
		"alphanumeric": TypeAlphanumeric,
		"datetime":     TypeDate,
		"email":        TypeEmail,
		"phone":        TypePhoneNumber,
		"phone_number": TypePhoneNumber,
		"categorical":  TypeCategorical,
		"bool":         TypeBoolean,
		"geo":          TypeUnknown,
	}

	for name, expected := range tests {
		assert.Equal(t, expected, ParseSemanticType(name), name)
	}
}

func TestMetadataJSON(t *testing.T) {
	var metadata Metadata
	err := json.Unmarshal([]byte(`[
		{"column_name": "age", "data_type": "integer"},
		{"column_name": "mail", "data_type": "email"}
	]`), &metadata)
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "mail"}, metadata.Names())
	assert.Equal(t, TypeNumeric, metadata.TypeOf("age"))
	assert.Equal(t, TypeUnknown, metadata.TypeOf("missing"))
	assert.True(t, metadata.Has("mail"))
	assert.False(t, metadata.Has("missing"))
}

func TestRoleAssignmentJSON(t *testing.T) {
	var roles []RoleAssignment
	err := json.Unmarshal([]byte(`[{"column_name":"zip","is_quasi_identifier":true,"should_anonymize":false}]`), &roles)
	require.NoError(t, err)

	require.Len(t, roles, 1)
	assert.Equal(t, RoleAssignment{ColumnName: "zip", IsQuasiIdentifier: true}, roles[0])
}
