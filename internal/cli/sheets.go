package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nconklindev/refmatch/internal/output"
	"github.com/nconklindev/refmatch/internal/tableio"
)

func (a *App) newSheetsCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "sheets FILE",
		Short: "List the sheets of an XLSX file or the tables of a SQLite database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			sheets, err := tableio.ListSheets(args[0])
			if err != nil {
				return err
			}
			if len(sheets) == 0 {
				_, err := fmt.Fprintf(cmd.ErrOrStderr(), "%s has no sheets or tables\n", args[0])
				return err
			}

			switch output.DetectFormat(string(f)) {
			case output.FormatTable:
				data := output.Data{Headers: []string{"#", "Sheet"}}
				for i, s := range sheets {
					data.Rows = append(data.Rows, []string{fmt.Sprint(i + 1), s})
				}
				return output.NewFormatter(output.FormatTable).Format(cmd.OutOrStdout(), data)
			default:
				return output.NewFormatter(output.DetectFormat(string(f))).Format(cmd.OutOrStdout(), sheets)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "", "output format: table, json, yaml")
	return cmd
}
