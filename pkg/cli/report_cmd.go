package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newReportCmd(client *Client) *cobra.Command {
	var (
		out    string
		window int
	)
	cmd := &cobra.Command{
		Use:   "report <dataset>",
		Short: "Generate the HTML report for a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			html, err := client.Report(cmd.Context(), args[0], window)
			if err != nil {
				return err
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(html)
				return err
			}
			if out == "" {
				out = args[0] + "_report.html"
			}
			if err := os.WriteFile(out, html, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "O", "", "Output file (default <dataset>_report.html, '-' for stdout)")
	cmd.Flags().IntVar(&window, "window", 0, "Rolling mean window in hours")
	return cmd
}
