package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/chassis-cli/internal/join"
	"github.com/sells-group/chassis-cli/internal/model"
	"github.com/sells-group/chassis-cli/internal/normalize"
	"github.com/sells-group/chassis-cli/internal/pipeline"
	"github.com/sells-group/chassis-cli/internal/store"
	"github.com/sells-group/chassis-cli/internal/table"
)

const mappedSheetName = "Mapped Data"

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Join the subchassis reference onto a planning report",
	Long:  "Loads a planning report and the subchassis reference table, resolves the style/department columns, joins on normalized keys, and writes the mapped workbook.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report, _ := cmd.Flags().GetString("report")
		reference, _ := cmd.Flags().GetString("reference")
		sheet, _ := cmd.Flags().GetString("sheet")
		refSheet, _ := cmd.Flags().GetString("reference-sheet")
		styleCol, _ := cmd.Flags().GetString("style-col")
		deptCol, _ := cmd.Flags().GetString("dept-col")
		valueCol, _ := cmd.Flags().GetString("value-col")
		policyFlag, _ := cmd.Flags().GetString("policy")
		out, _ := cmd.Flags().GetString("out")
		withUnmatched, _ := cmd.Flags().GetBool("unmatched-sheet")
		styleFallback, _ := cmd.Flags().GetBool("style-fallback")

		policy, err := resolvePolicy(policyFlag)
		if err != nil {
			return err
		}
		norm := normFromFlags(cmd)

		f := newFetcher()
		reportTab, err := loadTable(ctx, f, report, sheet)
		if err != nil {
			return err
		}
		refTab, err := loadTable(ctx, f, reference, refSheet)
		if err != nil {
			return err
		}

		res, err := pipeline.Run(pipeline.Request{
			Report:        reportTab,
			Reference:     refTab,
			Overrides:     pipeline.Overrides{Style: styleCol, Dept: deptCol, Value: valueCol},
			Threshold:     cfg.Resolve.Threshold,
			Norm:          norm,
			Policy:        policy,
			StyleFallback: styleFallback,
		})
		if err != nil {
			return err
		}

		if out == "" {
			out = defaultOutPath(report)
		}
		sheets := []table.Sheet{{Name: mappedSheetName, Table: res.Join.Table}}
		if withUnmatched {
			sheets = append(sheets, table.Sheet{Name: "Unmatched", Table: res.Join.UnmatchedRows()})
		}
		if err := table.WriteXLSX(out, sheets...); err != nil {
			return err
		}

		recordRun(ctx, &model.Run{
			Kind:      model.RunKindMap,
			Report:    report,
			Reference: reference,
			Sheet:     sheet,
			StyleCol:  res.Resolved.ReportStyle,
			DeptCol:   res.Resolved.ReportDept,
			ValueCol:  res.Resolved.ReferenceValue,
			Policy:    string(policy),
			Total:     res.Join.Total,
			Matched:   res.Join.Matched,
			Unmatched: res.Join.Unmatched,
		})

		fmt.Fprintf(os.Stdout, "Mapped %d rows (%d matched, %d unmatched) -> %s\n",
			res.Join.Total, res.Join.Matched, res.Join.Unmatched, out)
		return nil
	},
}

// normFromFlags starts from the configured normalization and applies only the
// flags the user actually set.
func normFromFlags(cmd *cobra.Command) normalize.Config {
	norm := cfg.Normalize
	if cmd.Flags().Changed("trim") {
		norm.Trim, _ = cmd.Flags().GetBool("trim")
	}
	if cmd.Flags().Changed("collapse-spaces") {
		norm.CollapseSpaces, _ = cmd.Flags().GetBool("collapse-spaces")
	}
	if cmd.Flags().Changed("uppercase") {
		norm.Uppercase, _ = cmd.Flags().GetBool("uppercase")
	}
	if cmd.Flags().Changed("strip-leading-zeros") {
		norm.StripLeadingZeros, _ = cmd.Flags().GetBool("strip-leading-zeros")
	}
	return norm
}

// resolvePolicy uses the flag when given, else the configured default.
func resolvePolicy(flag string) (join.Policy, error) {
	if flag == "" {
		flag = cfg.Join.Policy
	}
	return join.ParsePolicy(flag)
}

// defaultOutPath derives the output filename from the report source:
// "plan.xlsx" becomes "plan_mapped.xlsx". Remote sources keep only the
// base name and write to the working directory.
func defaultOutPath(report string) string {
	base := filepath.Base(report)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem = "report"
	}
	return stem + "_mapped.xlsx"
}

// recordRun writes run history if a store is configured. Recording failures
// are logged, never fatal; the mapped workbook is already on disk.
func recordRun(ctx context.Context, run *model.Run) {
	st, err := newStore(ctx)
	if err != nil {
		zap.L().Warn("run history unavailable", zap.Error(err))
		return
	}
	if st == nil {
		return
	}
	defer st.Close() //nolint:errcheck

	if err := st.RecordRun(ctx, run); err != nil {
		zap.L().Warn("record run", zap.Error(err))
		return
	}
	zap.L().Debug("run recorded", zap.String("run_id", run.ID))
}

// openStore is recordRun without the close, for commands that hold the store
// open across multiple runs. Returns nil when history is disabled or broken.
func openStore(ctx context.Context) store.Store {
	st, err := newStore(ctx)
	if err != nil {
		zap.L().Warn("run history unavailable", zap.Error(err))
		return nil
	}
	return st
}

func init() {
	mapCmd.Flags().String("report", "", "planning report to map (path or http(s)/ftp URL)")
	mapCmd.Flags().String("reference", "", "subchassis reference table (path or URL)")
	mapCmd.Flags().String("sheet", "", "report sheet name (xlsx only; default first sheet)")
	mapCmd.Flags().String("reference-sheet", "", "reference sheet name (xlsx only)")
	mapCmd.Flags().String("style-col", "", "report style column (skips detection)")
	mapCmd.Flags().String("dept-col", "", "report department column (skips detection)")
	mapCmd.Flags().String("value-col", "", "reference value column (skips detection)")
	mapCmd.Flags().String("policy", "", "duplicate policy: first or sum (default from config)")
	mapCmd.Flags().String("out", "", "output workbook path (default <report>_mapped.xlsx)")
	mapCmd.Flags().Bool("unmatched-sheet", false, "add an Unmatched sheet with the rows that found no subchassis")
	mapCmd.Flags().Bool("style-fallback", false, "use the first report column when style detection fails")
	mapCmd.Flags().Bool("trim", true, "trim surrounding whitespace when building join keys")
	mapCmd.Flags().Bool("collapse-spaces", true, "remove internal whitespace when building join keys")
	mapCmd.Flags().Bool("uppercase", true, "uppercase join keys")
	mapCmd.Flags().Bool("strip-leading-zeros", false, "strip leading zeros from join keys")
	_ = mapCmd.MarkFlagRequired("report")
	_ = mapCmd.MarkFlagRequired("reference")
	rootCmd.AddCommand(mapCmd)
}
