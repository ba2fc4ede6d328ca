package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/IacopoSb/AnonimaData/pkg/models"
)

// JSONExporter implements JSON export functionality
type JSONExporter struct{}

// Name returns the exporter name
func (je *JSONExporter) Name() string {
	return "json"
}

// SupportedFormats returns supported formats
func (je *JSONExporter) SupportedFormats() []ExportFormat {
	return []ExportFormat{FormatJSON}
}

// Export writes {"columns": [...], "rows": [...]}, or a record array when
// JSONOptions.Records is set.
func (je *JSONExporter) Export(ctx context.Context, writer io.Writer, ds *models.Dataset, options ExportOptions) error {
	rows := make([]map[string]interface{}, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		out := make(map[string]interface{}, len(ds.Columns))
		for _, col := range ds.Columns {
			out[col] = jsonValue(row[col], options)
		}
		rows = append(rows, out)
	}

	var payload interface{} = struct {
		Columns []string                 `json:"columns"`
		Rows    []map[string]interface{} `json:"rows"`
	}{
		Columns: ds.Columns,
		Rows:    rows,
	}
	if options.JSONOptions.Records {
		payload = rows
	}

	encoder := json.NewEncoder(writer)
	if options.JSONOptions.Pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ValidateOptions validates JSON export options
func (je *JSONExporter) ValidateOptions(options ExportOptions) error {
	return nil
}

// jsonValue maps missing cells to null and renders values JSON cannot carry
func jsonValue(value interface{}, options ExportOptions) interface{} {
	if models.IsMissing(value) {
		return nil
	}

	switch v := value.(type) {
	case float64:
		if options.Precision >= 0 {
			return json.Number(formatFloat(v, options.Precision))
		}
		return v
	case float32:
		return jsonValue(float64(v), options)
	case time.Time:
		layout := options.DateFormat
		if layout == "" {
			layout = time.RFC3339
		}
		return v.Format(layout)
	default:
		return v
	}
}
