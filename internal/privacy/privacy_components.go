package privacy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

// DiagnosticLevel is the severity of a non-fatal engine diagnostic
type DiagnosticLevel string

const (
	DiagnosticInfo    DiagnosticLevel = "info"
	DiagnosticWarning DiagnosticLevel = "warning"
	DiagnosticError   DiagnosticLevel = "error"
)

// Diagnostic records something the engine noticed but recovered from
type Diagnostic struct {
	Level   DiagnosticLevel `json:"level"`
	Stage   string          `json:"stage"`
	Column  string          `json:"column,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message"`
}

// diagnostics collects diagnostics for one stage and mirrors them to the log
type diagnostics struct {
	logger *logrus.Logger
	stage  string
	items  []Diagnostic
}

func newDiagnostics(logger *logrus.Logger, stage string) *diagnostics {
	return &diagnostics{logger: logger, stage: stage}
}

func (d *diagnostics) add(level DiagnosticLevel, column, code, message string) {
	d.items = append(d.items, Diagnostic{
		Level:   level,
		Stage:   d.stage,
		Column:  column,
		Code:    code,
		Message: message,
	})

	entry := d.logger.WithField("stage", d.stage)
	if column != "" {
		entry = entry.WithField("column", column)
	}

	switch level {
	case DiagnosticError:
		entry.Error(message)
	case DiagnosticWarning:
		entry.Warn(message)
	default:
		entry.Info(message)
	}
}

func (d *diagnostics) warn(column, format string, args ...interface{}) {
	d.add(DiagnosticWarning, column, "", fmt.Sprintf(format, args...))
}

func (d *diagnostics) info(column, format string, args ...interface{}) {
	d.add(DiagnosticInfo, column, "", fmt.Sprintf(format, args...))
}

// EquivalenceClass is a set of rows sharing one quasi-identifier tuple
type EquivalenceClass struct {
	Identifier string `json:"identifier"`
	Rows       []int  `json:"rows"`
	Size       int    `json:"size"`
}

// createEquivalenceClasses groups row indices by their values on columns.
// Classes come back in order of first appearance.
func createEquivalenceClasses(ds *models.Dataset, columns []string) []*EquivalenceClass {
	classMap := make(map[string]*EquivalenceClass)
	classes := make([]*EquivalenceClass, 0)

	for i, row := range ds.Rows {
		classID := equivalenceClassID(row, columns)

		if class, exists := classMap[classID]; exists {
			class.Rows = append(class.Rows, i)
			class.Size++
			continue
		}

		class := &EquivalenceClass{
			Identifier: classID,
			Rows:       []int{i},
			Size:       1,
		}
		classMap[classID] = class
		classes = append(classes, class)
	}

	return classes
}

func equivalenceClassID(row models.Row, columns []string) string {
	values := make([]string, len(columns))
	for i, col := range columns {
		values[i] = valueKey(row[col])
	}
	return strings.Join(values, "\x1f")
}

// valueKey renders a cell so that equal values produce equal keys regardless
// of their numeric Go type. Missing values form their own key.
func valueKey(v interface{}) string {
	if models.IsMissing(v) {
		return "\x00"
	}
	if f, ok := models.ToFloat(v); ok {
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	if t, ok := v.(time.Time); ok {
		return "t:" + t.Format(time.RFC3339Nano)
	}
	return "s:" + fmt.Sprint(v)
}

var rangeMarkerPattern = regexp.MustCompile(`^\[-?\d+\.\d{2}--?\d+\.\d{2}\]$`)

// isMarker reports whether a cell already holds a suppression marker
func isMarker(v interface{}) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return s == constants.SuppressedMarker || s == constants.DiversityMarker || rangeMarkerPattern.MatchString(s)
}

// rangeMarker renders the population range of a numeric column
func rangeMarker(min, max float64) string {
	return fmt.Sprintf(constants.RangeMarkerFormat, min, max)
}

// numericValues returns the numeric values of a column. ok is false when the
// column holds any non-missing, non-marker value that is not a number, or
// holds no numbers at all.
func numericValues(values []interface{}) (nums []float64, ok bool) {
	nums = make([]float64, 0, len(values))
	for _, v := range values {
		if models.IsMissing(v) || isMarker(v) {
			continue
		}
		f, isNum := models.ToFloat(v)
		if !isNum {
			return nil, false
		}
		nums = append(nums, f)
	}
	return nums, len(nums) > 0
}

// presentColumns keeps the columns of cols that exist in the dataset
func presentColumns(ds *models.Dataset, cols []string) (present, missing []string) {
	for _, col := range cols {
		if ds.HasColumn(col) {
			present = append(present, col)
		} else {
			missing = append(missing, col)
		}
	}
	return present, missing
}

func toSet(cols []string) map[string]bool {
	set := make(map[string]bool, len(cols))
	for _, col := range cols {
		set[col] = true
	}
	return set
}
