package main

import (
	"errors"

	"citegraph/internal/app"
	"citegraph/internal/storage"

	"github.com/spf13/cobra"
)

var llmStatsCmd = &cobra.Command{
	Use:   "llm-stats",
	Short: "Summarise recorded LLM calls per operation and status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			if a.DB == nil {
				return errors.New("llm call audit needs database_url")
			}
			stats, err := storage.NewLLMAuditRepo(a.DB).Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(stats)
		})
	},
}

func init() {
	rootCmd.AddCommand(llmStatsCmd)
}
