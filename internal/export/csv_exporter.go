package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/IacopoSb/AnonimaData/pkg/models"
)

// CSVExporter implements CSV export functionality
type CSVExporter struct{}

// Name returns the exporter name
func (ce *CSVExporter) Name() string {
	return "csv"
}

// SupportedFormats returns supported formats
func (ce *CSVExporter) SupportedFormats() []ExportFormat {
	return []ExportFormat{FormatCSV}
}

// Export writes the dataset as CSV in column order
func (ce *CSVExporter) Export(ctx context.Context, writer io.Writer, ds *models.Dataset, options ExportOptions) error {
	csvOptions := options.CSVOptions
	if csvOptions.Delimiter == "" {
		csvOptions.Delimiter = ","
	}

	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma, _ = utf8.DecodeRuneInString(csvOptions.Delimiter)
	csvWriter.UseCRLF = csvOptions.UseCRLF

	if options.IncludeHeaders {
		if err := csvWriter.Write(ds.Columns); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	record := make([]string, len(ds.Columns))
	for _, row := range ds.Rows {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for i, col := range ds.Columns {
			record[i] = formatCell(row[col], options, csvOptions.NullValue)
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// ValidateOptions validates CSV export options
func (ce *CSVExporter) ValidateOptions(options ExportOptions) error {
	delimiter := options.CSVOptions.Delimiter
	if delimiter != "" && utf8.RuneCountInString(delimiter) != 1 {
		return fmt.Errorf("CSV delimiter must be a single character")
	}
	if delimiter == "\"" || delimiter == "\n" || delimiter == "\r" {
		return fmt.Errorf("CSV delimiter %q is not allowed", delimiter)
	}
	return nil
}

func formatCell(value interface{}, options ExportOptions, nullValue string) string {
	if models.IsMissing(value) {
		return nullValue
	}

	switch v := value.(type) {
	case string:
		return v
	case float64:
		return formatFloat(v, options.Precision)
	case float32:
		return formatFloat(float64(v), options.Precision)
	case time.Time:
		layout := options.DateFormat
		if layout == "" {
			layout = time.RFC3339
		}
		return v.Format(layout)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(f float64, precision int) string {
	if precision >= 0 {
		pow := math.Pow(10, float64(precision))
		return strconv.FormatFloat(math.Round(f*pow)/pow, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
