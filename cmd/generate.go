package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"pitchlog/internal/report"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

var (
	repSession string
	repLevel   string
	repFormat  string
	repFit     int
	repCopy    bool
	repOut     string
	repRaw     bool
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&repSession, "session", "", "session id (default: today's)")
	reportCmd.Flags().StringVar(&repLevel, "level", "", "detailed, summary or brief (default from config)")
	reportCmd.Flags().StringVar(&repFormat, "format", "", "markdown, text or json (default from config)")
	reportCmd.Flags().IntVar(&repFit, "fit", 0, "pick the most detailed level that fits in this many characters")
	reportCmd.Flags().BoolVar(&repCopy, "copy", false, "copy the report to the clipboard")
	reportCmd.Flags().StringVar(&repOut, "out", "", "write the report to a file")
	reportCmd.Flags().BoolVar(&repRaw, "raw", false, "print markdown without terminal styling")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export a session report to share",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, level := repFormat, repLevel
		if format == "" {
			format = cfg.Report.Format
		}
		if level == "" {
			level = cfg.Report.Level
		}
		if _, ok := report.GetFormat(format); !ok {
			return fmt.Errorf("unknown format %q (see 'pitchlog formats')", format)
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		id := repSession
		if id == "" {
			if id, err = a.today(ctx); err != nil {
				return err
			}
		}
		snap, err := a.mgr.Snapshot(ctx, id)
		if err != nil {
			return err
		}

		var text string
		if repFit > 0 {
			level, text, err = report.Fit(snap, format, repFit)
		} else {
			text, err = report.Generate(snap, format, level)
		}
		if err != nil {
			return err
		}

		if repCopy {
			if err := clipboard.WriteAll(text); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not copy to clipboard: %v\n", err)
			} else {
				fmt.Printf("Report (%s, %s) copied to clipboard!\n", format, level)
			}
		}

		if repOut != "" {
			outPath := repOut
			if !filepath.IsAbs(outPath) {
				dir, _ := os.Getwd()
				outPath = filepath.Join(dir, outPath)
			}
			if err := os.WriteFile(outPath, []byte(text), 0644); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			fmt.Printf("Report written to %s\n", outPath)
		}

		if !repCopy && repOut == "" {
			if format == report.FormatMarkdown && !repRaw {
				styled, err := report.RenderTerminal(text, 80)
				if err == nil {
					text = styled
				} else {
					logger.Sugar().Debugf("markdown rendering failed, printing raw: %v", err)
				}
			}
			fmt.Print(text)
		}
		return nil
	},
}
