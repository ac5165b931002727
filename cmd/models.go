package cmd

import (
	"fmt"

	"pitchlog/internal/report"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(formatsCmd)
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List report formats and levels",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%-10s %-12s %-6s %-7s %s\n", "KEY", "FORMAT", "EXT", "LEVELS", "DESCRIPTION")
		fmt.Println("──────────────────────────────────────────────────────────────────────────")
		for _, f := range report.ListFormats() {
			fmt.Printf("%-10s %-12s %-6s %-7s %s\n", f.Key, f.Name, f.Extension, yesNo(f.Levelled), f.Description)
		}
		fmt.Printf("\nLevels: %v (default %s)\n", report.Levels, cfg.Report.Level)
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
