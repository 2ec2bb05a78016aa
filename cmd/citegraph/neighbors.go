package main

import (
	"errors"
	"fmt"

	"citegraph/internal/app"
	"citegraph/internal/graph"

	"github.com/spf13/cobra"
)

var neighborsCmd = &cobra.Command{
	Use:   "neighbors <arxiv-id>",
	Short: "Print the papers one citation hop away from a paper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(cmd.Context(), func(a *app.App) error {
			nb, err := a.Graph.Neighborhood(cmd.Context(), args[0], limit)
			if errors.Is(err, graph.ErrNotFound) {
				return fmt.Errorf("paper %s is not in the graph", args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(nb)
		})
	},
}

func init() {
	neighborsCmd.Flags().Int("limit", 25, "maximum neighbouring papers")
	rootCmd.AddCommand(neighborsCmd)
}
