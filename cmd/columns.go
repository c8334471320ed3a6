package main

import (
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/chassis-cli/internal/resolve"
)

var columnsCmd = &cobra.Command{
	Use:   "columns <source>",
	Short: "Show which columns the resolver would pick",
	Long:  "Loads a report or reference file and prints the column each role (style, department, allocation) resolves to, without running a join.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sheet, _ := cmd.Flags().GetString("sheet")

		tab, err := loadTable(ctx, newFetcher(), args[0], sheet)
		if err != nil {
			return err
		}

		opts := resolve.Options{Threshold: cfg.Resolve.Threshold}
		roles := []resolve.Role{
			resolve.StyleRole(),
			resolve.DepartmentRole(),
			resolve.AllocationRole(),
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = w.Write([]byte("ROLE\tCOLUMN\n"))
		for _, role := range roles {
			col, err := resolve.Column(tab.Columns, role, opts)
			if err != nil {
				col = "-"
			}
			_, _ = w.Write([]byte(role.Name + "\t" + col + "\n"))
		}
		return w.Flush()
	},
}

func init() {
	columnsCmd.Flags().String("sheet", "", "sheet name (xlsx only; default first sheet)")
	rootCmd.AddCommand(columnsCmd)
}
