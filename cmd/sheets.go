package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/chassis-cli/internal/table"
)

var sheetsCmd = &cobra.Command{
	Use:   "sheets <workbook>",
	Short: "List the sheet names in a workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source := args[0]

		if !isWorkbook(source) {
			return eris.Errorf("%s is not an .xlsx workbook", source)
		}

		data, err := newFetcher().ReadAll(ctx, source)
		if err != nil {
			return err
		}
		wb, err := table.OpenWorkbookBytes(data, source)
		if err != nil {
			return err
		}

		for i, name := range wb.SheetNames() {
			fmt.Fprintf(os.Stdout, "%d\t%s\n", i, name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sheetsCmd)
}
