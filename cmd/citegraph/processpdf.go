package main

import (
	"net/url"
	"path"
	"strings"

	"citegraph/internal/app"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var processPDFCmd = &cobra.Command{
	Use:   "process-pdf <url>",
	Short: "Extract, embed and index one PDF without touching the graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessPDF,
}

func init() {
	processPDFCmd.Flags().String("id", "", "paper id stored with the vectors (default: derived from the URL)")
	rootCmd.AddCommand(processPDFCmd)
}

func runProcessPDF(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	if id == "" {
		id = idFromURL(args[0])
	}
	return withApp(cmd.Context(), func(a *app.App) error {
		res, err := a.Pipeline.IndexPDF(cmd.Context(), args[0], id)
		if err != nil {
			return err
		}
		return printJSON(outcome(id, res, nil))
	})
}

// idFromURL uses the last path element without a .pdf suffix, so
// https://arxiv.org/pdf/1706.03762v7.pdf becomes 1706.03762v7.
func idFromURL(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		base := strings.TrimSuffix(path.Base(u.Path), ".pdf")
		if base != "" && base != "." && base != "/" {
			return base
		}
	}
	return uuid.NewString()
}
