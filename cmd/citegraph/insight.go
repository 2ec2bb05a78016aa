package main

import (
	"fmt"

	"citegraph/internal/app"
	"citegraph/internal/insight"
	"citegraph/internal/util"

	"github.com/spf13/cobra"
)

var insightCmd = &cobra.Command{
	Use:   "insight <arxiv-id>",
	Short: "Generate an insight about a paper and its citation lineage",
	Args:  cobra.ExactArgs(1),
	RunE:  runInsight,
}

func init() {
	insightCmd.Flags().String("out", "", "also write the insight text to this file")
	insightCmd.Flags().Bool("json", false, "print the full result as JSON")
	rootCmd.AddCommand(insightCmd)
}

func runInsight(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	asJSON, _ := cmd.Flags().GetBool("json")
	return withApp(cmd.Context(), func(a *app.App) error {
		in, err := a.Insights.Generate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if out != "" && in.Status == insight.StatusOK {
			if err := util.WriteTextAtomic(out, in.Text+"\n"); err != nil {
				return err
			}
			a.Log.Info("insight written", "paper_id", in.PaperID, "path", out)
		}
		if asJSON {
			if err := printJSON(in); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), in.Text)
		}
		if in.Status != insight.StatusOK {
			return fmt.Errorf("insight for %s: %s", in.PaperID, in.Status)
		}
		return nil
	})
}
