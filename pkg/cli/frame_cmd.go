package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gridlake/internal/domain"
)

// loadOps reads a pipeline definition (a YAML list of ops) from a file.
func loadOps(path string) ([]domain.Op, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	var ops []domain.Op
	if err := yaml.Unmarshal(raw, &ops); err != nil {
		return nil, fmt.Errorf("parse pipeline file: %w", err)
	}
	return ops, nil
}

func newFrameCmd(client *Client) *cobra.Command {
	var (
		opsFile string
		limit   int
		showSQL bool
	)
	cmd := &cobra.Command{
		Use:   "frame <dataset>",
		Short: "Run a pipeline against a dataset and print the resulting frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ops []domain.Op
			if opsFile != "" {
				var err error
				if ops, err = loadOps(opsFile); err != nil {
					return err
				}
			}

			if showSQL {
				sqlText, err := client.CompileFrame(cmd.Context(), args[0], ops)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sqlText)
				return nil
			}

			f, err := client.RunFrame(cmd.Context(), args[0], ops, limit)
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
	cmd.Flags().StringVarP(&opsFile, "pipeline", "f", "", "YAML file with the list of ops to run")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows to return")
	cmd.Flags().BoolVar(&showSQL, "sql", false, "Print the compiled SQL instead of executing")
	return cmd
}
