package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IacopoSb/AnonimaData/pkg/models"
)

// GetTestLogger returns a test logger
func GetTestLogger(t *testing.T) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	logger.SetOutput(testWriter{t})
	return logger
}

// testWriter routes log output through t.Log so it only shows on failure
type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// GetTestContext returns a test context with timeout
func GetTestContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// SkipIfShort skips the test if testing.Short() is true
func SkipIfShort(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test in short mode")
	}
}

// BuildDataset creates a dataset from positional rows
func BuildDataset(columns []string, rows ...[]interface{}) *models.Dataset {
	ds := models.NewDataset(columns, nil)
	for _, values := range rows {
		row := make(models.Row, len(columns))
		for i, col := range columns {
			if i < len(values) {
				row[col] = values[i]
			} else {
				row[col] = nil
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds
}

// NumericDataset creates a single-column dataset of numbers
func NumericDataset(column string, values ...float64) *models.Dataset {
	rows := make([][]interface{}, len(values))
	for i, v := range values {
		rows[i] = []interface{}{v}
	}
	return BuildDataset([]string{column}, rows...)
}

// ZipDataset returns ten patients whose zip codes fall into groups of 4, 3 and 3
func ZipDataset() (*models.Dataset, models.Metadata) {
	ds := BuildDataset([]string{"zip", "age", "disease", "email"},
		[]interface{}{"10001", 34, "flu", "a@example.com"},
		[]interface{}{"10001", 45, "cold", "b@example.com"},
		[]interface{}{"10001", 29, "flu", "c@example.com"},
		[]interface{}{"10001", 52, "asthma", "d@example.com"},
		[]interface{}{"10002", 38, "flu", "e@example.com"},
		[]interface{}{"10002", 41, "flu", "f@example.com"},
		[]interface{}{"10002", 60, "cold", "g@example.com"},
		[]interface{}{"10003", 23, "asthma", "h@example.com"},
		[]interface{}{"10003", 31, "cold", "i@example.com"},
		[]interface{}{"10003", 47, "flu", "j@example.com"},
	)
	metadata := models.Metadata{
		{Name: "zip", SemanticType: models.TypeCategorical},
		{Name: "age", SemanticType: models.TypeNumeric},
		{Name: "disease", SemanticType: models.TypeCategorical},
		{Name: "email", SemanticType: models.TypeEmail},
	}
	return ds, metadata
}
