// Package table holds the in-memory tabular model plus XLSX and CSV codecs.
package table

import (
	"github.com/rotisserie/eris"
)

// Cell is a single table value. Null is distinct from the empty string:
// a cell absent from the source row is null, a present-but-blank cell is "".
type Cell struct {
	Value string
	Null  bool
}

// NullCell is the marker for an absent value.
var NullCell = Cell{Null: true}

// String returns the cell text, or "" for null cells.
func (c Cell) String() string {
	if c.Null {
		return ""
	}
	return c.Value
}

// Table is an ordered set of named columns over an ordered set of rows.
// Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]Cell
}

// New creates a table, padding or truncating each row to the column count.
// Padded positions are null.
func New(columns []string, rows [][]Cell) *Table {
	t := &Table{Columns: columns, Rows: make([][]Cell, len(rows))}
	for i, row := range rows {
		t.Rows[i] = fitRow(row, len(columns))
	}
	return t
}

func fitRow(row []Cell, width int) []Cell {
	if len(row) == width {
		return row
	}
	fitted := make([]Cell, width)
	for i := range fitted {
		if i < len(row) {
			fitted[i] = row[i]
		} else {
			fitted[i] = NullCell
		}
	}
	return fitted
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, col := range t.Columns {
		if col == name {
			return i, true
		}
	}
	return 0, false
}

// Cell returns the value at (row, column name).
func (t *Table) Cell(row int, column string) (Cell, error) {
	idx, ok := t.ColumnIndex(column)
	if !ok {
		return NullCell, eris.Errorf("table: no column %q", column)
	}
	if row < 0 || row >= len(t.Rows) {
		return NullCell, eris.Errorf("table: row %d out of range", row)
	}
	return t.Rows[row][idx], nil
}

// AppendColumn adds a column at the end of the table. values must have one
// entry per row.
func (t *Table) AppendColumn(name string, values []Cell) error {
	if _, exists := t.ColumnIndex(name); exists {
		return eris.Errorf("table: column %q already exists", name)
	}
	if len(values) != len(t.Rows) {
		return eris.Errorf("table: %d values for %d rows", len(values), len(t.Rows))
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
	return nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.Rows) }

// UnparseableFileError reports a malformed spreadsheet or delimited input.
// The underlying parse failure is preserved for the user-facing message.
type UnparseableFileError struct {
	Source string
	Err    error
}

func (e *UnparseableFileError) Error() string {
	return "unparseable file " + e.Source + ": " + e.Err.Error()
}

func (e *UnparseableFileError) Unwrap() error { return e.Err }
