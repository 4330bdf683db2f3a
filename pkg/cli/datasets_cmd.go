package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newDatasetsCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Manage ingested datasets",
	}
	cmd.AddCommand(newDatasetsIngestCmd(client))
	cmd.AddCommand(newDatasetsListCmd(client))
	cmd.AddCommand(newDatasetsGetCmd(client))
	cmd.AddCommand(newDatasetsDeleteCmd(client))
	cmd.AddCommand(newDatasetsDescribeCmd(client))
	cmd.AddCommand(newDatasetsPreviewCmd(client))
	return cmd
}

func newDatasetsIngestCmd(client *Client) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "ingest <name> <path>",
		Short: "Load an XLSX or CSV file into a dataset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, path := args[0], args[1]
			if format == "" {
				format = strings.TrimPrefix(filepath.Ext(path), ".")
			}
			ds, err := client.IngestDataset(cmd.Context(), name, path, format)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), ds)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s (%d rows)\n", ds.Name, ds.RowCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "File format (xlsx, csv); inferred from the extension when omitted")
	return cmd
}

func newDatasetsListCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := client.ListDatasets(cmd.Context())
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), list)
			}
			rows := make([][]string, 0, len(list))
			for _, ds := range list {
				rows = append(rows, []string{
					ds.Name, ds.Format, strconv.FormatInt(ds.RowCount, 10),
					ds.CreatedBy, ds.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"NAME", "FORMAT", "ROWS", "CREATED BY", "CREATED AT"}, rows)
			return nil
		},
	}
}

func newDatasetsGetCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show one dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := client.GetDataset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), ds)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:    %s\n", ds.Name)
			fmt.Fprintf(out, "Format:  %s\n", ds.Format)
			fmt.Fprintf(out, "Rows:    %d\n", ds.RowCount)
			fmt.Fprintf(out, "Source:  %s\n", ds.SourcePath)
			fmt.Fprintf(out, "Columns:\n")
			for _, c := range ds.Columns {
				fmt.Fprintf(out, "  %s  %s\n", c.Name, c.Type)
			}
			return nil
		},
	}
}

func newDatasetsDeleteCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a dataset and its table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.DeleteDataset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newDatasetsDescribeCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <name>",
		Short: "Show per-column summary statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := client.DescribeDataset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), f)
			}
			printFrame(cmd.OutOrStdout(), f)
			return nil
		},
	}
}

func newDatasetsPreviewCmd(client *Client) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "preview <name>",
		Short: "Show the first rows of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := client.PreviewDataset(cmd.Context(), args[0], n)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), f)
			}
			printFrame(cmd.OutOrStdout(), f)
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "rows", "n", 10, "Number of rows to show")
	return cmd
}
