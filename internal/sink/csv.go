// Package sink serializes output rows. The row schema is fixed before the
// run starts: a record is a mapping of named fields, and each record becomes
// one CSV row with cells taken in the agreed column order. The sink is
// append-only and is written to only from the run loop's single timeline,
// so it carries no locking.
package sink

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/licdata/licmerge/internal/record"
)

// DefaultColumns is the agreed output schema for merged license rows, in
// emission order. Fields a record does not carry become empty cells.
var DefaultColumns = []string{
	"license_number",
	"business_name",
	"status",
	"classification",
	"city",
	"county",
	"zone",
	"issued",
	"expires",
	"bond_amount",
}

// CSV writes records as CSV rows with a fixed column order.
type CSV struct {
	w       *csv.Writer
	columns []string
	rows    int
}

// NewCSV creates a sink over w and writes the header row. columns fixes the
// cell order for every subsequent row; nil selects DefaultColumns. The
// column slice is copied so later caller mutation cannot skew cells.
func NewCSV(w io.Writer, columns []string) (*CSV, error) {
	if columns == nil {
		columns = DefaultColumns
	}
	s := &CSV{
		w:       csv.NewWriter(w),
		columns: append([]string(nil), columns...),
	}
	if err := s.w.Write(s.columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return s, nil
}

// WriteRow appends one row. Missing fields produce empty cells; fields not
// named in the column schema are dropped.
func (s *CSV) WriteRow(rec record.Fields) error {
	cells := make([]string, len(s.columns))
	for i, col := range s.columns {
		cells[i] = rec[col]
	}
	if err := s.w.Write(cells); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	s.rows++
	return nil
}

// Rows returns the number of data rows written (excluding the header).
func (s *CSV) Rows() int {
	return s.rows
}

// Flush writes buffered rows through to the underlying writer and reports
// any deferred write error.
func (s *CSV) Flush() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
