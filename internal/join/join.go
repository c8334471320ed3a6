// Package join implements the left join of a user report against a reduced
// reference table, keyed on normalized style (and optionally department)
// values.
package join

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chassis-cli/internal/normalize"
	"github.com/sells-group/chassis-cli/internal/table"
)

// Policy decides how duplicate keys on the reference side collapse to a
// single value before the join.
type Policy string

const (
	// PolicyFirstWins keeps the first row (original order) per key.
	PolicyFirstWins Policy = "first"
	// PolicySumFallbackFirst sums the parseable numeric values per key and
	// falls back to the first row's value when none parse. Allocation
	// columns are sometimes quantities and sometimes free text.
	PolicySumFallbackFirst Policy = "sum"
)

// ParsePolicy maps a config/flag string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyFirstWins:
		return PolicyFirstWins, nil
	case PolicySumFallbackFirst:
		return PolicySumFallbackFirst, nil
	}
	return "", eris.Errorf("join: unknown duplicate policy %q (want %q or %q)", s, PolicyFirstWins, PolicySumFallbackFirst)
}

// Options names the key and value columns on both sides. The department
// columns are optional; when both are set the key is composite.
type Options struct {
	LeftStyle  string
	LeftDept   string // "" = style-only key
	RightStyle string
	RightDept  string // "" = style-only key
	RightValue string

	// ValueName is the appended column's name in the result. Defaults to
	// RightValue.
	ValueName string

	Norm   normalize.Config
	Policy Policy
}

// Result is the joined table plus match accounting. The left table's rows
// appear exactly once each, in order, with the value column appended last.
type Result struct {
	Table     *table.Table
	ValueName string
	Total     int
	Matched   int
	Unmatched int
}

// Join left-joins right onto left. Only the reference side is reduced to one
// row per key; duplicate keys among left rows are all preserved.
func Join(left, right *table.Table, opts Options) (*Result, error) {
	leftKeys, err := rowKeys(left, opts.LeftStyle, opts.LeftDept, opts.Norm)
	if err != nil {
		return nil, err
	}

	values, err := consolidate(right, opts)
	if err != nil {
		return nil, err
	}

	valueName := opts.ValueName
	if valueName == "" {
		valueName = opts.RightValue
	}
	valueName = uniqueColumnName(left.Columns, valueName)

	attached := make([]table.Cell, len(left.Rows))
	matched := 0
	for i, key := range leftKeys {
		if v, ok := values[key]; ok {
			attached[i] = v
			if !v.Null {
				matched++
			}
		} else {
			attached[i] = table.NullCell
		}
	}

	out := table.New(append([]string(nil), left.Columns...), cloneRows(left.Rows))
	if err := out.AppendColumn(valueName, attached); err != nil {
		return nil, err
	}

	return &Result{
		Table:     out,
		ValueName: valueName,
		Total:     len(left.Rows),
		Matched:   matched,
		Unmatched: len(left.Rows) - matched,
	}, nil
}

// UnmatchedRows returns only the result rows whose attached value is null,
// with the same columns as the joined table.
func (r *Result) UnmatchedRows() *table.Table {
	valueIdx := len(r.Table.Columns) - 1
	var rows [][]table.Cell
	for _, row := range r.Table.Rows {
		if row[valueIdx].Null {
			rows = append(rows, row)
		}
	}
	return table.New(append([]string(nil), r.Table.Columns...), cloneRows(rows))
}

// uniqueColumnName suffixes the value column's name when the report already
// carries a column with that name, e.g. a stale result from a previous
// mapping run. The original report column is left untouched.
func uniqueColumnName(columns []string, name string) string {
	taken := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		taken[c] = struct{}{}
	}
	if _, ok := taken[name]; !ok {
		return name
	}
	for i := 2; ; i++ {
		cand := name + "_" + strconv.Itoa(i)
		if _, ok := taken[cand]; !ok {
			return cand
		}
	}
}

// consolidate reduces the reference table to one value per normalized key.
func consolidate(right *table.Table, opts Options) (map[string]table.Cell, error) {
	keys, err := rowKeys(right, opts.RightStyle, opts.RightDept, opts.Norm)
	if err != nil {
		return nil, err
	}
	valueIdx, ok := right.ColumnIndex(opts.RightValue)
	if !ok {
		return nil, eris.Errorf("join: reference table has no column %q", opts.RightValue)
	}

	type group struct {
		first  table.Cell
		sum    float64
		hasSum bool
	}
	groups := make(map[string]*group, len(right.Rows))
	order := make([]string, 0, len(right.Rows))

	for i, row := range right.Rows {
		key := keys[i]
		g, seen := groups[key]
		if !seen {
			g = &group{first: row[valueIdx]}
			groups[key] = g
			order = append(order, key)
		}
		if opts.Policy == PolicySumFallbackFirst {
			if v, err := strconv.ParseFloat(strings.TrimSpace(row[valueIdx].String()), 64); err == nil && !row[valueIdx].Null {
				g.sum += v
				g.hasSum = true
			}
		}
	}

	values := make(map[string]table.Cell, len(groups))
	for _, key := range order {
		g := groups[key]
		if opts.Policy == PolicySumFallbackFirst && g.hasSum {
			values[key] = table.Cell{Value: strconv.FormatFloat(g.sum, 'f', -1, 64)}
		} else {
			values[key] = g.first
		}
	}
	return values, nil
}

func rowKeys(t *table.Table, styleCol, deptCol string, cfg normalize.Config) ([]string, error) {
	styleIdx, ok := t.ColumnIndex(styleCol)
	if !ok {
		return nil, eris.Errorf("join: no column %q", styleCol)
	}
	deptIdx := -1
	if deptCol != "" {
		deptIdx, ok = t.ColumnIndex(deptCol)
		if !ok {
			return nil, eris.Errorf("join: no column %q", deptCol)
		}
	}

	keys := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		style := normalize.Key(row[styleIdx], cfg)
		if deptIdx < 0 {
			keys[i] = style
			continue
		}
		keys[i] = normalize.CompositeKey(style, normalize.Key(row[deptIdx], cfg))
	}
	return keys, nil
}

func cloneRows(rows [][]table.Cell) [][]table.Cell {
	out := make([][]table.Cell, len(rows))
	for i, row := range rows {
		out[i] = append([]table.Cell(nil), row...)
	}
	return out
}
