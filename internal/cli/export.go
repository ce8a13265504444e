package cli

import (
	"github.com/spf13/cobra"

	"nft-sales-bot/internal/app"
)

var (
	exportPNGPath   string
	exportCSVPath   string
	exportLookback  int
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recent sale prices as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath:      exportPNGPath,
			CSVPath:      exportCSVPath,
			LookbackDays: exportLookback,
			MaxPoints:    exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportLookback, "lookback-days", 0, "Lookback window in days (defaults to config)")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
