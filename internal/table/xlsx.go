package table

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Workbook wraps a parsed XLSX file so callers can enumerate sheets before
// committing to one.
type Workbook struct {
	file   *xlsx.File
	source string
}

// SheetOptions selects one sheet of a workbook. SheetName wins over
// SheetIndex when set.
type SheetOptions struct {
	SheetName  string
	SheetIndex int
}

// OpenWorkbook parses an XLSX file from disk.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, &UnparseableFileError{Source: path, Err: err}
	}
	return &Workbook{file: f, source: path}, nil
}

// OpenWorkbookBytes parses an XLSX file from memory (uploads, remote fetches).
func OpenWorkbookBytes(data []byte, source string) (*Workbook, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, &UnparseableFileError{Source: source, Err: err}
	}
	return &Workbook{file: f, source: source}, nil
}

// SheetNames returns the workbook's sheet names in file order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.file.Sheets))
	for i, s := range w.file.Sheets {
		names[i] = s.Name
	}
	return names
}

// Table extracts the selected sheet. The first row supplies column names;
// rows are padded to the header width with null cells.
func (w *Workbook) Table(opts SheetOptions) (*Table, error) {
	sheet, err := w.sheet(opts)
	if err != nil {
		return nil, err
	}

	if len(sheet.Rows) == 0 {
		return New(nil, nil), nil
	}

	header := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		header[i] = cell.String()
	}

	rows := make([][]Cell, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		cells := make([]Cell, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = Cell{Value: cell.String()}
		}
		rows = append(rows, cells)
	}

	return New(header, rows), nil
}

func (w *Workbook) sheet(opts SheetOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := w.file.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found in %s", opts.SheetName, w.source)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(w.file.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(w.file.Sheets))
	}

	return w.file.Sheets[opts.SheetIndex], nil
}

// Sheet pairs a table with the sheet name it should be written under.
type Sheet struct {
	Name  string
	Table *Table
}

// WriteXLSX writes one or more tables to an XLSX workbook on disk.
// Null cells are written as empty strings; all values are written as text.
func WriteXLSX(path string, sheets ...Sheet) error {
	f, err := buildWorkbook(sheets)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

// EncodeXLSX writes one or more tables as an XLSX workbook to w.
func EncodeXLSX(w io.Writer, sheets ...Sheet) error {
	f, err := buildWorkbook(sheets)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: encode workbook")
	}
	return nil
}

func buildWorkbook(sheets []Sheet) (*xlsx.File, error) {
	f := xlsx.NewFile()
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.Name)
		if err != nil {
			return nil, eris.Wrapf(err, "xlsx: add sheet %q", s.Name)
		}

		header := sheet.AddRow()
		for _, col := range s.Table.Columns {
			header.AddCell().SetString(col)
		}

		for _, row := range s.Table.Rows {
			out := sheet.AddRow()
			for _, cell := range row {
				out.AddCell().SetString(cell.String())
			}
		}
	}
	return f, nil
}
