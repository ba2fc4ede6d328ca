package encoding

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/IacopoSb/AnonimaData/pkg/constants"
)

// SerializationFormat represents different serialization formats
type SerializationFormat int

const (
	JSON SerializationFormat = iota
	YAML
)

// Serializer interface for different serialization implementations
type Serializer interface {
	Serialize(data interface{}) ([]byte, error)
	Deserialize(data []byte, target interface{}) error
	Format() SerializationFormat
	ContentType() string
}

// JSONSerializer implements JSON serialization
type JSONSerializer struct {
	indent bool
}

// NewJSONSerializer creates a new JSON serializer
func NewJSONSerializer(indent bool) *JSONSerializer {
	return &JSONSerializer{indent: indent}
}

// Serialize serializes data to JSON
func (j *JSONSerializer) Serialize(data interface{}) ([]byte, error) {
	if j.indent {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

// Deserialize deserializes JSON data
func (j *JSONSerializer) Deserialize(data []byte, target interface{}) error {
	return json.Unmarshal(data, target)
}

// Format returns the serialization format
func (j *JSONSerializer) Format() SerializationFormat {
	return JSON
}

// ContentType returns the MIME content type
func (j *JSONSerializer) ContentType() string {
	return constants.MimeTypeJSON
}

// YAMLSerializer implements YAML serialization
type YAMLSerializer struct{}

// NewYAMLSerializer creates a new YAML serializer
func NewYAMLSerializer() *YAMLSerializer {
	return &YAMLSerializer{}
}

// Serialize serializes data to YAML
func (y *YAMLSerializer) Serialize(data interface{}) ([]byte, error) {
	return yaml.Marshal(data)
}

// Deserialize deserializes YAML data
func (y *YAMLSerializer) Deserialize(data []byte, target interface{}) error {
	return yaml.Unmarshal(data, target)
}

// Format returns the serialization format
func (y *YAMLSerializer) Format() SerializationFormat {
	return YAML
}

// ContentType returns the MIME content type
func (y *YAMLSerializer) ContentType() string {
	return "application/x-yaml"
}

// SerializerForPath picks a serializer from a file extension. JSON is the default.
func SerializerForPath(path string) Serializer {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAMLSerializer()
	default:
		return NewJSONSerializer(false)
	}
}

// ParseSerializationFormat maps a format name to a SerializationFormat
func ParseSerializationFormat(name string) (SerializationFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return JSON, fmt.Errorf("unsupported serialization format: %s", name)
	}
}
