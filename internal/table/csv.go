package table

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// CSVOptions configures the delimited-text codec.
type CSVOptions struct {
	Delimiter  rune   // default ','
	Charset    string // IANA charset name; "" or "utf-8" reads raw
	LazyQuotes bool
	TrimSpace  bool
}

// ReadCSV parses delimited text into a table. The first record supplies
// column names; short records are padded with null cells.
func ReadCSV(r io.Reader, source string, opts CSVOptions) (*Table, error) {
	if opts.Charset != "" && !strings.EqualFold(opts.Charset, "utf-8") {
		enc, err := htmlindex.Get(opts.Charset)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: unsupported charset %q", opts.Charset)
		}
		r = enc.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields

	var header []string
	var rows [][]Cell
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &UnparseableFileError{Source: source, Err: err}
		}

		if opts.TrimSpace {
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}
		}

		if header == nil {
			header = record
			continue
		}

		cells := make([]Cell, len(record))
		for i, field := range record {
			cells[i] = Cell{Value: field}
		}
		rows = append(rows, cells)
	}

	return New(header, rows), nil
}

// WriteCSV writes a table as delimited text. Null cells are written as
// empty fields; all values are written as text.
func WriteCSV(w io.Writer, t *Table, opts CSVOptions) error {
	writer := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		writer.Comma = opts.Delimiter
	}

	if err := writer.Write(t.Columns); err != nil {
		return eris.Wrap(err, "csv: write header")
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, cell := range row {
			record[i] = cell.String()
		}
		if err := writer.Write(record); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}

	writer.Flush()
	return eris.Wrap(writer.Error(), "csv: flush")
}
