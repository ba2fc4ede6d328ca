package export

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/IacopoSb/AnonimaData/pkg/errors"
	"github.com/IacopoSb/AnonimaData/pkg/interfaces"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

// ExportFormat defines supported export formats
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ExportOptions contains export-specific options
type ExportOptions struct {
	IncludeHeaders bool   `json:"include_headers" mapstructure:"include_headers"`
	DateFormat     string `json:"date_format" mapstructure:"date_format"`
	// Precision rounds floats to that many decimals; negative keeps them as is
	Precision int `json:"precision" mapstructure:"precision"`

	CSVOptions  CSVOptions  `json:"csv_options,omitempty" mapstructure:"csv_options"`
	JSONOptions JSONOptions `json:"json_options,omitempty" mapstructure:"json_options"`
}

// CSVOptions holds CSV-specific options
type CSVOptions struct {
	Delimiter string `json:"delimiter" mapstructure:"delimiter"`
	NullValue string `json:"null_value" mapstructure:"null_value"`
	UseCRLF   bool   `json:"use_crlf" mapstructure:"use_crlf"`
}

// JSONOptions holds JSON-specific options
type JSONOptions struct {
	Pretty bool `json:"pretty" mapstructure:"pretty"`
	// Records writes an array of row objects instead of {columns, rows}
	Records bool `json:"records" mapstructure:"records"`
}

// Exporter writes a dataset in one format
type Exporter interface {
	Name() string
	SupportedFormats() []ExportFormat
	Export(ctx context.Context, writer io.Writer, ds *models.Dataset, options ExportOptions) error
	ValidateOptions(options ExportOptions) error
}

// ExportEngine dispatches dataset exports to the registered exporters
type ExportEngine struct {
	logger    *logrus.Logger
	mu        sync.RWMutex
	exporters map[ExportFormat]Exporter
}

// DefaultExportOptions returns the options used by the CLI and the worker
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		IncludeHeaders: true,
		DateFormat:     "2006-01-02T15:04:05Z07:00",
		Precision:      -1,
		CSVOptions: CSVOptions{
			Delimiter: ",",
		},
	}
}

// NewExportEngine creates an engine with the CSV and JSON exporters registered
func NewExportEngine(logger *logrus.Logger) *ExportEngine {
	if logger == nil {
		logger = logrus.New()
	}

	ee := &ExportEngine{
		logger:    logger,
		exporters: make(map[ExportFormat]Exporter),
	}
	ee.registerDefaultExporters()
	return ee
}

// RegisterExporter registers an exporter for each of its formats
func (ee *ExportEngine) RegisterExporter(exporter Exporter) {
	ee.mu.Lock()
	defer ee.mu.Unlock()

	for _, format := range exporter.SupportedFormats() {
		ee.exporters[format] = exporter
	}

	ee.logger.WithFields(logrus.Fields{
		"exporter": exporter.Name(),
		"formats":  exporter.SupportedFormats(),
	}).Debug("Registered exporter")
}

// ParseFormat maps a format name to an ExportFormat supported by the engine
func (ee *ExportEngine) ParseFormat(name string) (ExportFormat, error) {
	format := ExportFormat(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := ee.findExporter(format); !ok {
		return "", errors.NewValidationError(errors.CodeInvalidInput,
			fmt.Sprintf("unsupported export format %q (supported: %s)", name, ee.formatList()))
	}
	return format, nil
}

// Export writes ds to writer in the given format
func (ee *ExportEngine) Export(ctx context.Context, ds *models.Dataset, format ExportFormat, writer io.Writer, options ExportOptions) error {
	if ds == nil {
		return errors.NewValidationError(errors.CodeInvalidInput, "dataset cannot be nil")
	}

	exporter, ok := ee.findExporter(format)
	if !ok {
		return errors.NewValidationError(errors.CodeInvalidInput, fmt.Sprintf("unsupported export format: %s", format))
	}

	if err := exporter.ValidateOptions(options); err != nil {
		return errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidConfig, "Invalid export options")
	}

	if err := exporter.Export(ctx, writer, ds, options); err != nil {
		return err
	}

	ee.logger.WithFields(logrus.Fields{
		"format": format,
		"rows":   ds.Len(),
	}).Debug("Dataset exported")

	return nil
}

// Writer binds a format and options into an interfaces.DatasetWriter
func (ee *ExportEngine) Writer(format ExportFormat, options ExportOptions) (interfaces.DatasetWriter, error) {
	if _, ok := ee.findExporter(format); !ok {
		return nil, errors.NewValidationError(errors.CodeInvalidInput, fmt.Sprintf("unsupported export format: %s", format))
	}
	return &datasetWriter{engine: ee, format: format, options: options}, nil
}

// GetSupportedFormats returns the registered formats in name order
func (ee *ExportEngine) GetSupportedFormats() []ExportFormat {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	formats := make([]ExportFormat, 0, len(ee.exporters))
	for format := range ee.exporters {
		formats = append(formats, format)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

func (ee *ExportEngine) findExporter(format ExportFormat) (Exporter, bool) {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	exporter, ok := ee.exporters[format]
	return exporter, ok
}

func (ee *ExportEngine) formatList() string {
	formats := ee.GetSupportedFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func (ee *ExportEngine) registerDefaultExporters() {
	ee.RegisterExporter(&CSVExporter{})
	ee.RegisterExporter(&JSONExporter{})
}

type datasetWriter struct {
	engine  *ExportEngine
	format  ExportFormat
	options ExportOptions
}

func (w *datasetWriter) Format() string {
	return string(w.format)
}

func (w *datasetWriter) Write(ctx context.Context, out io.Writer, ds *models.Dataset) error {
	return w.engine.Export(ctx, ds, w.format, out, w.options)
}
