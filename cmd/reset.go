package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var resetYes bool

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip the confirmation prompt")
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete today's session, its touches, its reflection and all form drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		id, err := a.today(ctx)
		if err != nil {
			return err
		}
		stats, err := a.mgr.Stats(ctx, id)
		if err != nil {
			return err
		}

		if !resetYes {
			fmt.Printf("Reset session %s (%d touches)? This cannot be undone. [y/N] ", id, stats.Total)
			answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if ans := strings.ToLower(strings.TrimSpace(answer)); ans != "y" && ans != "yes" {
				fmt.Println("Cancelled")
				return nil
			}
		}

		if err := a.mgr.ResetSession(ctx, id); err != nil {
			return fmt.Errorf("%w (run 'pitchlog reset' again to finish)", err)
		}
		fmt.Printf("Session %s reset\n", id)
		return nil
	},
}
