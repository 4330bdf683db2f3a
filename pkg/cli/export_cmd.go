package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gridlake/internal/domain"
)

func newExportCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export pipeline results and inspect export history",
	}
	cmd.AddCommand(newExportRunCmd(client))
	cmd.AddCommand(newExportHistoryCmd(client))
	return cmd
}

func newExportRunCmd(client *Client) *cobra.Command {
	var (
		opsFile string
		formats []string
		upload  bool
	)
	cmd := &cobra.Command{
		Use:   "run <dataset>",
		Short: "Export a pipeline result in one or more formats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ops []domain.Op
			if opsFile != "" {
				var err error
				if ops, err = loadOps(opsFile); err != nil {
					return err
				}
			}
			targets := make([]domain.ExportTarget, 0, len(formats))
			for _, f := range formats {
				targets = append(targets, domain.ExportTarget{Format: f, Upload: upload})
			}

			runs, err := client.Export(cmd.Context(), args[0], ops, targets)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), runs)
			}
			printRuns(cmd, runs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opsFile, "pipeline", "f", "", "YAML file with the list of ops to run")
	cmd.Flags().StringSliceVar(&formats, "format", []string{domain.ExportCSV}, "Export formats (csv, xlsx, parquet)")
	cmd.Flags().BoolVar(&upload, "upload", false, "Also upload artifacts to object storage")
	return cmd
}

func newExportHistoryCmd(client *Client) *cobra.Command {
	var (
		dataset string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent export runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := client.ListExports(cmd.Context(), dataset, limit)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), runs)
			}
			printRuns(cmd, runs)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "Filter by dataset name")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of runs to list")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []domain.ExportRun) {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.Dataset, formatPtr(r.Recipe), r.Format, r.Status,
			strconv.FormatInt(r.RowCount, 10), r.Path, formatPtr(r.RemoteURI),
		})
	}
	printTable(cmd.OutOrStdout(), []string{"DATASET", "RECIPE", "FORMAT", "STATUS", "ROWS", "PATH", "REMOTE"}, rows)
	for _, r := range runs {
		if r.Error != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "export %s/%s failed: %s\n", r.Dataset, r.Format, *r.Error)
		}
	}
}
