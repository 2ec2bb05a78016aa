package main

import (
	"fmt"
	"strings"
	"time"

	"citegraph/internal/app"

	"github.com/spf13/cobra"
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Print the papers published on a day with the papers they cite",
	Long:  "Print the papers published on --day (UTC today by default) with their outgoing citations. When nothing was published that day the latest papers are shown instead.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dayFlag, _ := cmd.Flags().GetString("day")
		limit, _ := cmd.Flags().GetInt("limit")
		day, err := recentDay(dayFlag, time.Now())
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			sg, err := a.Graph.Recent(cmd.Context(), day, limit)
			if err != nil {
				return err
			}
			return printJSON(sg)
		})
	},
}

func recentDay(flag string, now time.Time) (string, error) {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		return now.UTC().Format(time.DateOnly), nil
	}
	d, err := time.Parse(time.DateOnly, flag)
	if err != nil {
		return "", fmt.Errorf("--day must be YYYY-MM-DD: %q", flag)
	}
	return d.Format(time.DateOnly), nil
}

func init() {
	recentCmd.Flags().String("day", "", "publication day as YYYY-MM-DD (default today, UTC)")
	recentCmd.Flags().Int("limit", 10, "maximum papers")
	rootCmd.AddCommand(recentCmd)
}
