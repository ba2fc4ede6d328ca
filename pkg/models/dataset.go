package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Row maps a column name to its value. A nil value is a missing cell.
type Row map[string]interface{}

// Dataset is an ordered collection of rows sharing a fixed, ordered column set.
type Dataset struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewDataset creates a dataset from columns and rows. Rows are used as given.
func NewDataset(columns []string, rows []Row) *Dataset {
	if rows == nil {
		rows = make([]Row, 0)
	}
	return &Dataset{
		Columns: columns,
		Rows:    rows,
	}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// IsEmpty reports whether the dataset has no rows or no columns.
func (d *Dataset) IsEmpty() bool {
	return d == nil || len(d.Columns) == 0 || len(d.Rows) == 0
}

// HasColumn reports whether name is one of the dataset columns.
func (d *Dataset) HasColumn(name string) bool {
	for _, col := range d.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Column returns the values of a column in row order.
func (d *Dataset) Column(name string) []interface{} {
	values := make([]interface{}, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[name]
	}
	return values
}

// SetColumn overwrites a column with values. len(values) must equal Len().
func (d *Dataset) SetColumn(name string, values []interface{}) error {
	if len(values) != len(d.Rows) {
		return fmt.Errorf("column %s: got %d values for %d rows", name, len(values), len(d.Rows))
	}
	for i, row := range d.Rows {
		row[name] = values[i]
	}
	return nil
}

// Clone returns an independent working copy. Row maps and the column slice are
// copied; scalar cell values are shared since they are immutable.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}

	columns := make([]string, len(d.Columns))
	copy(columns, d.Columns)

	rows := make([]Row, len(d.Rows))
	for i, row := range d.Rows {
		cloned := make(Row, len(columns))
		for _, col := range columns {
			cloned[col] = row[col]
		}
		rows[i] = cloned
	}

	return &Dataset{
		Columns: columns,
		Rows:    rows,
	}
}

// Head returns a copy of the first n rows.
func (d *Dataset) Head(n int) *Dataset {
	if d == nil {
		return nil
	}
	if n > d.Len() {
		n = d.Len()
	}
	if n < 0 {
		n = 0
	}
	head := &Dataset{Columns: d.Columns, Rows: d.Rows[:n]}
	return head.Clone()
}

// Validate checks that column names are non-empty and unique and that no row
// carries a column outside the column set.
func (d *Dataset) Validate() error {
	if d == nil {
		return fmt.Errorf("dataset is nil")
	}

	seen := make(map[string]bool, len(d.Columns))
	for _, col := range d.Columns {
		if col == "" {
			return fmt.Errorf("dataset has an empty column name")
		}
		if seen[col] {
			return fmt.Errorf("duplicate column %q", col)
		}
		seen[col] = true
	}

	for i, row := range d.Rows {
		for col := range row {
			if !seen[col] {
				return fmt.Errorf("row %d has unknown column %q", i, col)
			}
		}
	}

	return nil
}

// IsMissing reports whether a cell value counts as missing.
func IsMissing(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case float64:
		return val != val
	case float32:
		return val != val
	case time.Time:
		return val.IsZero()
	default:
		return false
	}
}

// ToFloat converts numeric cell values to float64. Strings are not numeric.
func ToFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, val == val
	case float32:
		return float64(val), val == val
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
