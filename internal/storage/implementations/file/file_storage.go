package file

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/IacopoSb/AnonimaData/internal/utils/encoding"
	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/errors"
	"github.com/IacopoSb/AnonimaData/pkg/interfaces"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

// FileStorageConfig contains configuration for file-based dataset I/O
type FileStorageConfig struct {
	BasePath   string `json:"base_path" yaml:"base_path" mapstructure:"base_path"`
	Delimiter  string `json:"delimiter" yaml:"delimiter" mapstructure:"delimiter"`
	InferTypes bool   `json:"infer_types" yaml:"infer_types" mapstructure:"infer_types"`
	CreateDirs bool   `json:"create_dirs" yaml:"create_dirs" mapstructure:"create_dirs"`
	Compress   bool   `json:"compress" yaml:"compress" mapstructure:"compress"`
	MaxRows    int    `json:"max_rows" yaml:"max_rows" mapstructure:"max_rows"`
}

// FileStorage reads datasets, metadata tables and role files from disk, and
// writes anonymized datasets back.
type FileStorage struct {
	config *FileStorageConfig
	logger *logrus.Logger
	mu     sync.RWMutex
}

var _ interfaces.DatasetLoader = (*FileStorage)(nil)

func getDefaultFileStorageConfig() *FileStorageConfig {
	return &FileStorageConfig{
		Delimiter:  ",",
		InferTypes: true,
		CreateDirs: true,
	}
}

// NewFileStorage creates a new file storage instance. A nil config uses defaults.
func NewFileStorage(config *FileStorageConfig, logger *logrus.Logger) (*FileStorage, error) {
	if config == nil {
		config = getDefaultFileStorageConfig()
	}

	if config.Delimiter == "" {
		config.Delimiter = ","
	}
	if utf8.RuneCountInString(config.Delimiter) != 1 {
		return nil, errors.NewValidationError(errors.CodeInvalidConfig, "CSV delimiter must be a single character")
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &FileStorage{
		config: config,
		logger: logger,
	}, nil
}

// LoadDataset reads a CSV or JSON dataset, inferring numeric columns.
func (fs *FileStorage) LoadDataset(ctx context.Context, source string) (*models.Dataset, error) {
	return fs.LoadDatasetWithMetadata(ctx, source, nil)
}

// LoadDatasetWithMetadata reads a dataset and types its cells from the
// metadata table. Numeric columns are parsed, other described columns stay
// text, and undescribed columns are inferred.
func (fs *FileStorage) LoadDatasetWithMetadata(ctx context.Context, source string, metadata models.Metadata) (*models.Dataset, error) {
	path := fs.resolve(source)
	format := constants.FormatFromPath(path)
	if format == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidInput,
			fmt.Sprintf("unsupported dataset format: %s", filepath.Ext(path))).WithContext("path", path)
	}

	data, err := fs.readFile(path)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ds *models.Dataset
	switch format {
	case constants.FormatCSV:
		ds, err = fs.parseCSV(data, metadata)
	case constants.FormatJSON:
		ds, err = parseJSONDataset(data)
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput,
			fmt.Sprintf("Failed to parse %s dataset", format)).WithContext("path", path)
	}

	if fs.config.MaxRows > 0 && ds.Len() > fs.config.MaxRows {
		return nil, errors.NewValidationError(errors.CodeInvalidInput,
			fmt.Sprintf("dataset has %d rows, limit is %d", ds.Len(), fs.config.MaxRows))
	}

	if err := ds.Validate(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "Invalid dataset").
			WithContext("path", path)
	}

	fs.logger.WithFields(logrus.Fields{
		"path":    path,
		"format":  format,
		"rows":    ds.Len(),
		"columns": len(ds.Columns),
	}).Debug("Loaded dataset")

	return ds, nil
}

// LoadMetadata reads a metadata table. JSON and YAML files may hold either a
// list of {column_name, data_type} entries or a column -> type mapping.
func (fs *FileStorage) LoadMetadata(ctx context.Context, source string) (models.Metadata, error) {
	path := fs.resolve(source)
	data, err := fs.readFile(path)
	if err != nil {
		return nil, err
	}

	serializer := encoding.SerializerForPath(path)

	var metadata models.Metadata
	if err := serializer.Deserialize(data, &metadata); err != nil {
		var mapping map[string]string
		if mapErr := serializer.Deserialize(data, &mapping); mapErr != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "Failed to parse metadata").
				WithContext("path", path)
		}
		metadata = metadataFromMapping(data, mapping, serializer.Format())
	}

	ve := errors.NewValidationErrors()
	seen := make(map[string]bool, len(metadata))
	for i := range metadata {
		// YAML decodes type names verbatim
		metadata[i].SemanticType = models.ParseSemanticType(string(metadata[i].SemanticType))
		name := metadata[i].Name
		if name == "" {
			ve.Add(fmt.Sprintf("metadata[%d]", i), errors.CodeInvalidInput, "column_name is required", nil)
			continue
		}
		if seen[name] {
			ve.Add(name, errors.CodeInvalidInput, fmt.Sprintf("column %q is described twice", name), name)
		}
		seen[name] = true
	}
	if ve.HasErrors() {
		return nil, ve
	}

	return metadata, nil
}

// LoadRoles reads explicit role assignments from JSON or YAML
func (fs *FileStorage) LoadRoles(ctx context.Context, source string) ([]models.RoleAssignment, error) {
	path := fs.resolve(source)
	data, err := fs.readFile(path)
	if err != nil {
		return nil, err
	}

	var roles []models.RoleAssignment
	if err := encoding.SerializerForPath(path).Deserialize(data, &roles); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "Failed to parse role assignments").
			WithContext("path", path)
	}

	ve := errors.NewValidationErrors()
	for i, role := range roles {
		if role.ColumnName == "" {
			ve.Add(fmt.Sprintf("roles[%d]", i), errors.CodeInvalidInput, "column_name is required", nil)
		}
	}
	if ve.HasErrors() {
		return nil, ve
	}

	return roles, nil
}

// SaveDataset writes ds through writer to target. A ".gz" suffix, or the
// Compress option, gzips the output.
func (fs *FileStorage) SaveDataset(ctx context.Context, target string, ds *models.Dataset, writer interfaces.DatasetWriter) error {
	path := fs.resolve(target)
	compress := fs.config.Compress || strings.HasSuffix(strings.ToLower(path), constants.ExtensionGzip)
	if fs.config.Compress && !strings.HasSuffix(strings.ToLower(path), constants.ExtensionGzip) {
		path += constants.ExtensionGzip
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.config.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
				fmt.Sprintf("Failed to create directory: %s", filepath.Dir(path)))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to create output file").
			WithContext("path", path)
	}
	defer f.Close()

	var out io.Writer = f
	var gz io.WriteCloser
	if compress {
		gz, err = encoding.NewGZIPWriter(f, encoding.CompressionLevelDefault)
		if err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to create gzip writer")
		}
		out = gz
	}

	if err := writer.Write(ctx, out, ds); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("Failed to write %s output", writer.Format())).WithContext("path", path)
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to finish gzip stream")
		}
	}

	if err := f.Sync(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to sync output file")
	}

	fs.logger.WithFields(logrus.Fields{
		"path":   path,
		"format": writer.Format(),
		"rows":   ds.Len(),
	}).Info("Wrote dataset")

	return nil
}

func (fs *FileStorage) resolve(source string) string {
	if fs.config.BasePath == "" || filepath.IsAbs(source) {
		return source
	}
	return filepath.Join(fs.config.BasePath, source)
}

func (fs *FileStorage) readFile(path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeDataNotFound,
				fmt.Sprintf("File does not exist: %s", path))
		}
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("Failed to read file: %s", path))
	}

	if strings.HasSuffix(strings.ToLower(path), constants.ExtensionGzip) {
		data, err = encoding.NewGZIPCompressor(encoding.CompressionLevelDefault).Decompress(data)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "Failed to decompress file").
				WithContext("path", path)
		}
	}

	// Strip a UTF-8 byte order mark left by spreadsheet exports
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), nil
}

func (fs *FileStorage) parseCSV(data []byte, metadata models.Metadata) (*models.Dataset, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma, _ = utf8.DecodeRuneInString(fs.config.Delimiter)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header row")
	}

	header := make([]string, len(records[0]))
	for i, name := range records[0] {
		header[i] = strings.TrimSpace(name)
	}

	rows := make([]models.Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(models.Row, len(header))
		for i, name := range header {
			row[name] = fs.parseCell(record[i], metadata, name)
		}
		rows = append(rows, row)
	}

	return models.NewDataset(header, rows), nil
}

func (fs *FileStorage) parseCell(raw string, metadata models.Metadata, column string) interface{} {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}

	switch {
	case metadata.TypeOf(column) == models.TypeNumeric:
		if n, ok := parseNumber(value); ok {
			return n
		}
		return value
	case metadata.Has(column):
		return value
	case fs.config.InferTypes:
		if n, ok := inferNumber(value); ok {
			return n
		}
	}
	return value
}

// parseNumber accepts integers and floats, returning int64 for integral text.
func parseNumber(value string) (interface{}, bool) {
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && !isNonFinite(value) {
		return f, true
	}
	return nil, false
}

// inferNumber is parseNumber without identifiers that look numeric, such as
// zero-padded codes.
func inferNumber(value string) (interface{}, bool) {
	digits := strings.TrimLeft(value, "+-")
	if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
		return nil, false
	}
	return parseNumber(value)
}

func isNonFinite(value string) bool {
	v := strings.ToLower(strings.TrimLeft(value, "+-"))
	return v == "inf" || v == "infinity" || v == "nan"
}

// parseJSONDataset accepts {"columns": [...], "rows": [...]} or an array of
// records. Record arrays take their column order from the first record.
func parseJSONDataset(data []byte) (*models.Dataset, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	if trimmed[0] == '{' {
		var ds models.Dataset
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&ds); err != nil {
			return nil, err
		}
		for _, row := range ds.Rows {
			normalizeRow(row)
		}
		return models.NewDataset(ds.Columns, ds.Rows), nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, err
	}

	var columns []string
	known := make(map[string]bool)
	rows := make([]models.Row, 0, len(records))
	for i, raw := range records {
		keys, err := objectKeys(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		for _, k := range keys {
			if !known[k] {
				known[k] = true
				columns = append(columns, k)
			}
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		row := make(models.Row, len(keys))
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		normalizeRow(row)
		rows = append(rows, row)
	}

	// Records without a key leave that cell missing
	for _, row := range rows {
		for _, c := range columns {
			if _, ok := row[c]; !ok {
				row[c] = nil
			}
		}
	}

	return models.NewDataset(columns, rows), nil
}

// objectKeys returns the keys of a JSON object in document order
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected an object")
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		keys = append(keys, tok.(string))

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func normalizeRow(row models.Row) {
	for k, v := range row {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			row[k] = i
		} else if f, err := n.Float64(); err == nil {
			row[k] = f
		} else {
			row[k] = n.String()
		}
	}
}

// metadataFromMapping turns {"column": "type"} into a table. JSON objects keep
// document order; YAML mappings are decoded again as a node to keep theirs.
func metadataFromMapping(data []byte, mapping map[string]string, format encoding.SerializationFormat) models.Metadata {
	var order []string
	if format == encoding.JSON {
		order, _ = objectKeys(data)
	} else {
		order = yamlKeys(data)
	}
	if len(order) != len(mapping) {
		order = make([]string, 0, len(mapping))
		for name := range mapping {
			order = append(order, name)
		}
		sort.Strings(order)
	}

	metadata := make(models.Metadata, 0, len(order))
	for _, name := range order {
		metadata = append(metadata, models.ColumnMetadata{
			Name:         name,
			SemanticType: models.ParseSemanticType(mapping[name]),
		})
	}
	return metadata
}

func yamlKeys(data []byte) []string {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Content) == 0 {
		return nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}

	keys := make([]string, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keys = append(keys, root.Content[i].Value)
	}
	return keys
}
