package table

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestOpenWorkbook_Table(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Style", "Qty"},
			{"AB12", "5"},
			{"CD34", "2"},
		},
	})

	wb, err := OpenWorkbook(path)
	require.NoError(t, err)

	tab, err := wb.Table(SheetOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Style", "Qty"}, tab.Columns)
	require.Equal(t, 2, tab.NumRows())
	assert.Equal(t, "AB12", tab.Rows[0][0].Value)
	assert.Equal(t, "2", tab.Rows[1][1].Value)
}

func TestOpenWorkbook_ShortRowsPadded(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Style", "Qty", "Notes"},
			{"AB12"},
		},
	})

	wb, err := OpenWorkbook(path)
	require.NoError(t, err)
	tab, err := wb.Table(SheetOptions{})
	require.NoError(t, err)

	require.Len(t, tab.Rows[0], 3)
	assert.True(t, tab.Rows[0][1].Null)
	assert.True(t, tab.Rows[0][2].Null)
}

func TestOpenWorkbook_SheetSelection(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"First":  {{"a"}},
		"Second": {{"x", "y"}, {"1", "2"}},
	})

	wb, err := OpenWorkbook(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"First", "Second"}, wb.SheetNames())

	tab, err := wb.Table(SheetOptions{SheetName: "Second"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, tab.Columns)

	_, err = wb.Table(SheetOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = wb.Table(SheetOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestOpenWorkbook_Unparseable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a workbook"), 0o644))

	_, err := OpenWorkbook(path)
	require.Error(t, err)

	var ufe *UnparseableFileError
	assert.ErrorAs(t, err, &ufe)
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	tab := New([]string{"Style", "LatestSubChassis"}, [][]Cell{
		{{Value: "AB12"}, {Value: "chassis-1"}},
		{{Value: "CD34"}, NullCell},
	})
	path := filepath.Join(t.TempDir(), "out.xlsx")

	require.NoError(t, WriteXLSX(path, Sheet{Name: "Mapped Data", Table: tab}))

	wb, err := OpenWorkbook(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mapped Data"}, wb.SheetNames())

	got, err := wb.Table(SheetOptions{})
	require.NoError(t, err)
	assert.Equal(t, tab.Columns, got.Columns)
	require.Equal(t, 2, got.NumRows())
	assert.Equal(t, "chassis-1", got.Rows[0][1].Value)
	// Null cells round-trip as empty text; nullness is not preserved.
	assert.Equal(t, "", got.Rows[1][1].Value)
}

func TestWriteXLSX_MultipleSheets(t *testing.T) {
	full := New([]string{"Style"}, [][]Cell{{{Value: "A"}}, {{Value: "B"}}})
	unmatched := New([]string{"Style"}, [][]Cell{{{Value: "B"}}})
	path := filepath.Join(t.TempDir(), "out.xlsx")

	require.NoError(t, WriteXLSX(path,
		Sheet{Name: "Mapped Data", Table: full},
		Sheet{Name: "Unmatched", Table: unmatched},
	))

	wb, err := OpenWorkbook(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mapped Data", "Unmatched"}, wb.SheetNames())

	um, err := wb.Table(SheetOptions{SheetName: "Unmatched"})
	require.NoError(t, err)
	assert.Equal(t, 1, um.NumRows())
}

func TestEncodeXLSX(t *testing.T) {
	tab := New([]string{"Style"}, [][]Cell{{{Value: "A"}}})

	var buf bytes.Buffer
	require.NoError(t, EncodeXLSX(&buf, Sheet{Name: "Mapped Data", Table: tab}))
	require.NotZero(t, buf.Len())

	wb, err := OpenWorkbookBytes(buf.Bytes(), "buffer")
	require.NoError(t, err)

	got, err := wb.Table(SheetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "A", got.Rows[0][0].Value)
}
