package join

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chassis-cli/internal/normalize"
	"github.com/sells-group/chassis-cli/internal/table"
)

func newTable(t *testing.T, columns []string, rows ...[]string) *table.Table {
	t.Helper()
	cells := make([][]table.Cell, len(rows))
	for i, row := range rows {
		cells[i] = make([]table.Cell, len(row))
		for j, v := range row {
			cells[i][j] = table.Cell{Value: v}
		}
	}
	return table.New(columns, cells)
}

func styleOnlyOpts(policy Policy) Options {
	return Options{
		LeftStyle:  "Style",
		RightStyle: "Style",
		RightValue: "LatestSubChassis",
		Norm:       normalize.Default(),
		Policy:     policy,
	}
}

func TestJoin_EveryLeftRowOnce(t *testing.T) {
	left := newTable(t, []string{"Style", "Qty"},
		[]string{"A", "1"},
		[]string{"A", "2"}, // duplicate left key, both rows preserved
		[]string{"B", "3"},
	)
	right := newTable(t, []string{"Style", "LatestSubChassis"},
		[]string{"A", "X"},
		[]string{"A", "Y"},
		[]string{"A", "Z"},
	)

	res, err := Join(left, right, styleOnlyOpts(PolicyFirstWins))
	require.NoError(t, err)
	assert.Equal(t, left.NumRows(), res.Table.NumRows())
	assert.Equal(t, 3, res.Total)
}

func TestJoin_FirstWins(t *testing.T) {
	left := newTable(t, []string{"Style"}, []string{"K"})
	right := newTable(t, []string{"Style", "LatestSubChassis"},
		[]string{"K", "a"},
		[]string{"K", "b"},
	)

	res, err := Join(left, right, styleOnlyOpts(PolicyFirstWins))
	require.NoError(t, err)

	cell, err := res.Table.Cell(0, "LatestSubChassis")
	require.NoError(t, err)
	assert.Equal(t, "a", cell.Value)
}

func TestJoin_SumFallbackFirst_Sums(t *testing.T) {
	left := newTable(t, []string{"Style"}, []string{"K"})
	right := newTable(t, []string{"Style", "LatestSubChassis"},
		[]string{"K", "5"},
		[]string{"K", "3"},
		[]string{"K", "x"},
	)

	res, err := Join(left, right, styleOnlyOpts(PolicySumFallbackFirst))
	require.NoError(t, err)

	cell, err := res.Table.Cell(0, "LatestSubChassis")
	require.NoError(t, err)
	assert.Equal(t, "8", cell.Value)
}

func TestJoin_SumFallbackFirst_FallsBack(t *testing.T) {
	left := newTable(t, []string{"Style"}, []string{"K"})
	right := newTable(t, []string{"Style", "LatestSubChassis"},
		[]string{"K", "a"},
		[]string{"K", "b"},
	)

	res, err := Join(left, right, styleOnlyOpts(PolicySumFallbackFirst))
	require.NoError(t, err)

	cell, err := res.Table.Cell(0, "LatestSubChassis")
	require.NoError(t, err)
	assert.Equal(t, "a", cell.Value)
}

func TestJoin_MatchAccounting(t *testing.T) {
	rows := [][]string{
		{"S1"}, {"S2"}, {"S3"}, {"S4"}, {"S5"},
		{"S6"}, {"S7"}, {"M1"}, {"M2"}, {"M3"},
	}
	left := newTable(t, []string{"Style"}, rows...)
	right := newTable(t, []string{"Style", "LatestSubChassis"},
		[]string{"S1", "v"}, []string{"S2", "v"}, []string{"S3", "v"},
		[]string{"S4", "v"}, []string{"S5", "v"}, []string{"S6", "v"},
		[]string{"S7", "v"},
	)

	res, err := Join(left, right, styleOnlyOpts(PolicyFirstWins))
	require.NoError(t, err)
	assert.Equal(t, 10, res.Total)
	assert.Equal(t, 7, res.Matched)
	assert.Equal(t, 3, res.Unmatched)
}

func TestJoin_NormalizedKeysMatch(t *testing.T) {
	left := newTable(t, []string{"Style"}, []string{"  ab 12 "})
	right := newTable(t, []string{"Style", "LatestSubChassis"},
		[]string{"AB12", "chassis-9"},
	)

	res, err := Join(left, right, styleOnlyOpts(PolicyFirstWins))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
}

func TestJoin_EmptyKeyIsValid(t *testing.T) {
	left := newTable(t, []string{"Style"}, []string{"   "})
	right := newTable(t, []string{"Style", "LatestSubChassis"},
		[]string{"  ", "blank-match"},
	)

	res, err := Join(left, right, styleOnlyOpts(PolicyFirstWins))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)

	cell, err := res.Table.Cell(0, "LatestSubChassis")
	require.NoError(t, err)
	assert.Equal(t, "blank-match", cell.Value)
}

func TestJoin_CompositeKey(t *testing.T) {
	opts := Options{
		LeftStyle:  "Style",
		LeftDept:   "Customer Department",
		RightStyle: "Style",
		RightDept:  "Department",
		RightValue: "LatestSubChassis",
		Norm:       normalize.Default(),
		Policy:     PolicyFirstWins,
	}
	left := newTable(t, []string{"Style", "Customer Department"},
		[]string{"A", "Menswear"},
		[]string{"A", "Kids"},
	)
	right := newTable(t, []string{"Style", "Department", "LatestSubChassis"},
		[]string{"A", "menswear", "X"},
	)

	res, err := Join(left, right, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)

	first, err := res.Table.Cell(0, "LatestSubChassis")
	require.NoError(t, err)
	assert.Equal(t, "X", first.Value)

	second, err := res.Table.Cell(1, "LatestSubChassis")
	require.NoError(t, err)
	assert.True(t, second.Null)
}

func TestJoin_ValueColumnLast(t *testing.T) {
	left := newTable(t, []string{"Qty", "Style", "Notes"}, []string{"1", "A", "n"})
	right := newTable(t, []string{"Style", "LatestSubChassis"}, []string{"A", "X"})

	res, err := Join(left, right, styleOnlyOpts(PolicyFirstWins))
	require.NoError(t, err)
	assert.Equal(t, []string{"Qty", "Style", "Notes", "LatestSubChassis"}, res.Table.Columns)
}

func TestJoin_ValueNameCollision(t *testing.T) {
	// A stale value column from a previous run must not abort the join; the
	// fresh column gets a suffix and the stale one keeps its data.
	left := newTable(t, []string{"Style", "LatestSubChassis"},
		[]string{"K", "stale"},
	)
	right := newTable(t, []string{"Style", "LatestSubChassis"},
		[]string{"K", "fresh"},
	)

	res, err := Join(left, right, styleOnlyOpts(PolicyFirstWins))
	require.NoError(t, err)
	assert.Equal(t, "LatestSubChassis_2", res.ValueName)
	assert.Equal(t, []string{"Style", "LatestSubChassis", "LatestSubChassis_2"}, res.Table.Columns)

	stale, err := res.Table.Cell(0, "LatestSubChassis")
	require.NoError(t, err)
	assert.Equal(t, "stale", stale.Value)

	fresh, err := res.Table.Cell(0, "LatestSubChassis_2")
	require.NoError(t, err)
	assert.Equal(t, "fresh", fresh.Value)
}

func TestJoin_MissIsNullNotEmpty(t *testing.T) {
	left := newTable(t, []string{"Style"}, []string{"NOPE"})
	right := newTable(t, []string{"Style", "LatestSubChassis"}, []string{"A", "X"})

	res, err := Join(left, right, styleOnlyOpts(PolicyFirstWins))
	require.NoError(t, err)

	cell, err := res.Table.Cell(0, "LatestSubChassis")
	require.NoError(t, err)
	assert.True(t, cell.Null)
	assert.Equal(t, 1, res.Unmatched)
}

func TestJoin_LeftUntouched(t *testing.T) {
	left := newTable(t, []string{"Style"}, []string{"A"})
	right := newTable(t, []string{"Style", "LatestSubChassis"}, []string{"A", "X"})

	_, err := Join(left, right, styleOnlyOpts(PolicyFirstWins))
	require.NoError(t, err)
	assert.Equal(t, []string{"Style"}, left.Columns)
	assert.Len(t, left.Rows[0], 1)
}

func TestUnmatchedRows(t *testing.T) {
	left := newTable(t, []string{"Style"}, []string{"A"}, []string{"B"}, []string{"C"})
	right := newTable(t, []string{"Style", "LatestSubChassis"}, []string{"B", "X"})

	res, err := Join(left, right, styleOnlyOpts(PolicyFirstWins))
	require.NoError(t, err)

	um := res.UnmatchedRows()
	require.Equal(t, 2, um.NumRows())
	assert.Equal(t, "A", um.Rows[0][0].Value)
	assert.Equal(t, "C", um.Rows[1][0].Value)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("first")
	require.NoError(t, err)
	assert.Equal(t, PolicyFirstWins, p)

	p, err = ParsePolicy(" SUM ")
	require.NoError(t, err)
	assert.Equal(t, PolicySumFallbackFirst, p)

	_, err = ParsePolicy("latest")
	require.Error(t, err)
}
