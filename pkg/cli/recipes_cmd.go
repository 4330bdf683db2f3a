package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRecipesCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "Manage saved pipeline recipes",
	}
	cmd.AddCommand(newRecipesCreateCmd(client))
	cmd.AddCommand(newRecipesListCmd(client))
	cmd.AddCommand(newRecipesGetCmd(client))
	cmd.AddCommand(newRecipesDeleteCmd(client))
	cmd.AddCommand(newRecipesRunCmd(client))
	return cmd
}

func newRecipesCreateCmd(client *Client) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create -f <recipe.yaml>",
		Short: "Create a recipe from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read recipe file: %w", err)
			}
			created, err := client.CreateRecipeYAML(cmd.Context(), doc)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created recipe %s\n", created.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Recipe YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRecipesListCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := client.ListRecipes(cmd.Context())
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), list)
			}
			rows := make([][]string, 0, len(list))
			for _, r := range list {
				rows = append(rows, []string{
					r.Name, r.Dataset, fmt.Sprintf("%d ops", len(r.Ops)),
					fmt.Sprintf("%d targets", len(r.Exports)), formatPtr(r.ScheduleCron),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"NAME", "DATASET", "PIPELINE", "EXPORTS", "SCHEDULE"}, rows)
			return nil
		},
	}
}

func newRecipesGetCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show one recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := client.GetRecipe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	}
}

func newRecipesDeleteCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.DeleteRecipe(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newRecipesRunCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "Execute a recipe now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := client.RunRecipe(cmd.Context(), args[0])
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
}
