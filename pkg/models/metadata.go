package models

import "strings"

// SemanticType is the inferred meaning of a column, supplied by the analysis step.
type SemanticType string

const (
	TypeNumeric      SemanticType = "numeric"
	TypeText         SemanticType = "text"
	TypeAlphanumeric SemanticType = "alphanumeric"
	TypeDate         SemanticType = "date"
	TypeEmail        SemanticType = "email"
	TypePhoneNumber  SemanticType = "phone_number"
	TypeCategorical  SemanticType = "categorical"
	TypeBoolean      SemanticType = "boolean"
	TypeUnknown      SemanticType = "unknown"
)

// ParseSemanticType maps a type name to a SemanticType. The analyzer's
// vocabulary (integer, float, datetime, string) is accepted as well.
func ParseSemanticType(name string) SemanticType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "numeric", "integer", "int", "float", "number":
		return TypeNumeric
	case "text", "string":
		return TypeText
	case "alphanumeric":
		return TypeAlphanumeric
	case "date", "datetime":
		return TypeDate
	case "email":
		return TypeEmail
	case "phone_number", "phone":
		return TypePhoneNumber
	case "categorical":
		return TypeCategorical
	case "boolean", "bool":
		return TypeBoolean
	default:
		return TypeUnknown
	}
}

// UnmarshalText lets SemanticType decode from JSON and YAML through ParseSemanticType.
func (t *SemanticType) UnmarshalText(text []byte) error {
	*t = ParseSemanticType(string(text))
	return nil
}

// ColumnMetadata describes one column of a dataset.
type ColumnMetadata struct {
	Name         string       `json:"column_name" yaml:"column_name"`
	SemanticType SemanticType `json:"data_type" yaml:"data_type"`
}

// Metadata is the column metadata table of a dataset.
type Metadata []ColumnMetadata

// TypeOf returns the semantic type of a column, or TypeUnknown.
func (m Metadata) TypeOf(name string) SemanticType {
	for _, col := range m {
		if col.Name == name {
			return col.SemanticType
		}
	}
	return TypeUnknown
}

// Has reports whether the table describes name.
func (m Metadata) Has(name string) bool {
	for _, col := range m {
		if col.Name == name {
			return true
		}
	}
	return false
}

// Names returns the column names in table order.
func (m Metadata) Names() []string {
	names := make([]string, len(m))
	for i, col := range m {
		names[i] = col.Name
	}
	return names
}

// RoleAssignment is an explicit user selection for a single column.
type RoleAssignment struct {
	ColumnName        string `json:"column_name" yaml:"column_name"`
	IsQuasiIdentifier bool   `json:"is_quasi_identifier" yaml:"is_quasi_identifier"`
	ShouldAnonymize   bool   `json:"should_anonymize" yaml:"should_anonymize"`
}
