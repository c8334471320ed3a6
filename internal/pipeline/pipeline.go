// Package pipeline composes column resolution, key normalization, and the
// left join into a single synchronous run. It owns no state: the caller
// supplies both tables and receives a result or a typed error.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/chassis-cli/internal/join"
	"github.com/sells-group/chassis-cli/internal/normalize"
	"github.com/sells-group/chassis-cli/internal/resolve"
	"github.com/sells-group/chassis-cli/internal/table"
)

// Overrides pins columns the user picked manually, skipping the resolver for
// that role. Style and Dept name report columns; Value names the reference
// column to append.
type Overrides struct {
	Style string
	Dept  string
	Value string
}

// Request carries everything one mapping run needs.
type Request struct {
	Report    *table.Table
	Reference *table.Table
	Overrides Overrides
	Threshold float64
	Norm      normalize.Config
	Policy    join.Policy

	// StyleFallback falls back to the report's first column when style
	// detection fails. Applies to the report side only.
	StyleFallback bool
}

// Resolved reports the columns the run actually joined on.
type Resolved struct {
	ReportStyle    string
	ReportDept     string // "" when the key is style-only
	ReferenceStyle string
	ReferenceDept  string
	ReferenceValue string
}

// Result is a finished run.
type Result struct {
	Join     *join.Result
	Resolved Resolved
}

// ReferenceColumnsMissingError reports a reference table that lacks one of
// the mandatory columns. Fatal for the run; the caller's stored reference
// table is left as it was.
type ReferenceColumnsMissingError struct {
	Missing []string
	Columns []string
}

func (e *ReferenceColumnsMissingError) Error() string {
	return fmt.Sprintf("reference table is missing required columns: %s (available: %s)",
		strings.Join(e.Missing, ", "), strings.Join(e.Columns, ", "))
}

// Run resolves columns on both sides, joins, and reports counts.
//
// The department key participates only when a department column resolves on
// both tables (or is overridden on the report side); otherwise the key is
// style-only. The appended column keeps the reference value column's name.
func Run(req Request) (*Result, error) {
	opts := resolve.Options{Threshold: req.Threshold}

	refStyle, refDept, refValue, err := resolveReference(req.Reference, req.Overrides.Value, opts)
	if err != nil {
		return nil, err
	}

	style := req.Overrides.Style
	if style == "" {
		styleOpts := opts
		styleOpts.FallbackFirst = req.StyleFallback
		style, err = resolve.Column(req.Report.Columns, resolve.StyleRole(), styleOpts)
		if err != nil {
			return nil, err
		}
	} else if _, ok := req.Report.ColumnIndex(style); !ok {
		return nil, &resolve.NotResolvedError{Role: "style", Columns: req.Report.Columns}
	}

	dept := req.Overrides.Dept
	if dept == "" && refDept != "" {
		// Department is best-effort on the report side: an unresolvable
		// department demotes the key to style-only instead of failing.
		if d, derr := resolve.Column(req.Report.Columns, resolve.DepartmentRole(), opts); derr == nil {
			dept = d
		}
	}
	if dept != "" {
		if _, ok := req.Report.ColumnIndex(dept); !ok {
			return nil, &resolve.NotResolvedError{Role: "department", Columns: req.Report.Columns}
		}
	}
	if dept == "" || refDept == "" {
		dept, refDept = "", ""
	}

	res, err := join.Join(req.Report, req.Reference, join.Options{
		LeftStyle:  style,
		LeftDept:   dept,
		RightStyle: refStyle,
		RightDept:  refDept,
		RightValue: refValue,
		Norm:       req.Norm,
		Policy:     req.Policy,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("mapping complete",
		zap.String("style_col", style),
		zap.String("dept_col", dept),
		zap.String("value_col", refValue),
		zap.Int("total", res.Total),
		zap.Int("matched", res.Matched),
		zap.Int("unmatched", res.Unmatched),
	)

	return &Result{
		Join: res,
		Resolved: Resolved{
			ReportStyle:    style,
			ReportDept:     dept,
			ReferenceStyle: refStyle,
			ReferenceDept:  refDept,
			ReferenceValue: refValue,
		},
	}, nil
}

// resolveReference binds the mandatory style and value columns (and the
// optional department column) on the reference side. Failures aggregate into
// one ReferenceColumnsMissingError so the user sees everything at once.
func resolveReference(ref *table.Table, valueOverride string, opts resolve.Options) (style, dept, value string, err error) {
	var missing []string

	style, serr := resolve.Column(ref.Columns, resolve.StyleRole(), opts)
	if serr != nil {
		missing = append(missing, "Style")
	}

	value = valueOverride
	if value == "" {
		var verr error
		value, verr = resolve.Column(ref.Columns, resolve.AllocationRole(), opts)
		if verr != nil {
			missing = append(missing, "LatestSubChassis")
		}
	} else if _, ok := ref.ColumnIndex(value); !ok {
		missing = append(missing, value)
	}

	// Department is optional on the reference side.
	if d, derr := resolve.Column(ref.Columns, resolve.DepartmentRole(), opts); derr == nil {
		dept = d
	} else {
		var nre *resolve.NotResolvedError
		if !errors.As(derr, &nre) {
			return "", "", "", derr
		}
	}

	if len(missing) > 0 {
		return "", "", "", &ReferenceColumnsMissingError{Missing: missing, Columns: ref.Columns}
	}
	return style, dept, value, nil
}
