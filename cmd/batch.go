package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/chassis-cli/internal/fetch"
	"github.com/sells-group/chassis-cli/internal/join"
	"github.com/sells-group/chassis-cli/internal/model"
	"github.com/sells-group/chassis-cli/internal/pipeline"
	"github.com/sells-group/chassis-cli/internal/store"
	"github.com/sells-group/chassis-cli/internal/table"
)

var batchConcurrency int

var batchCmd = &cobra.Command{
	Use:   "batch <report>...",
	Short: "Map several planning reports against one reference",
	Long:  "Loads the reference table once, then maps each report concurrently. Each report writes its own <report>_mapped.xlsx next to the working directory.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reference, _ := cmd.Flags().GetString("reference")
		refSheet, _ := cmd.Flags().GetString("reference-sheet")
		policyFlag, _ := cmd.Flags().GetString("policy")
		outDir, _ := cmd.Flags().GetString("out-dir")

		policy, err := resolvePolicy(policyFlag)
		if err != nil {
			return err
		}

		f := newFetcher()
		refTab, err := loadTable(ctx, f, reference, refSheet)
		if err != nil {
			return err
		}

		st := openStore(ctx)
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		zap.L().Info("processing batch",
			zap.Int("reports", len(args)),
			zap.Int("concurrency", batchConcurrency),
		)

		var failed atomic.Int32
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batchConcurrency)

		for _, report := range args {
			g.Go(func() error {
				if err := mapOne(gctx, f, report, reference, outDir, refTab, policy, st); err != nil {
					failed.Add(1)
					zap.L().Error("batch report failed",
						zap.String("report", report),
						zap.Error(err),
					)
				}
				// Individual failures do not cancel the rest of the batch.
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Batch complete: %d reports, %d failed\n", len(args), failed.Load())
		return nil
	},
}

// mapOne runs one report through the pipeline with no column overrides and
// writes the mapped workbook. The fetcher is shared across the batch so the
// configured rate limit bounds the aggregate request rate.
func mapOne(ctx context.Context, f *fetch.Fetcher, report, reference, outDir string, refTab *table.Table, policy join.Policy, st store.Store) error {
	reportTab, err := loadTable(ctx, f, report, "")
	if err != nil {
		return err
	}

	res, err := pipeline.Run(pipeline.Request{
		Report:    reportTab,
		Reference: refTab,
		Threshold: cfg.Resolve.Threshold,
		Norm:      cfg.Normalize,
		Policy:    policy,
	})
	if err != nil {
		return err
	}

	out := filepath.Join(outDir, defaultOutPath(report))
	if err := table.WriteXLSX(out, table.Sheet{Name: mappedSheetName, Table: res.Join.Table}); err != nil {
		return err
	}

	if st != nil {
		if err := st.RecordRun(ctx, &model.Run{
			Kind:      model.RunKindBatch,
			Report:    report,
			Reference: reference,
			StyleCol:  res.Resolved.ReportStyle,
			DeptCol:   res.Resolved.ReportDept,
			ValueCol:  res.Resolved.ReferenceValue,
			Policy:    string(policy),
			Total:     res.Join.Total,
			Matched:   res.Join.Matched,
			Unmatched: res.Join.Unmatched,
		}); err != nil {
			zap.L().Warn("record run", zap.String("report", report), zap.Error(err))
		}
	}
	return nil
}

func init() {
	batchCmd.Flags().String("reference", "", "subchassis reference table (path or URL)")
	batchCmd.Flags().String("reference-sheet", "", "reference sheet name (xlsx only)")
	batchCmd.Flags().String("policy", "", "duplicate policy: first or sum (default from config)")
	batchCmd.Flags().String("out-dir", "", "directory for mapped workbooks (default working directory)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "reports mapped in parallel")
	_ = batchCmd.MarkFlagRequired("reference")
	rootCmd.AddCommand(batchCmd)
}
