package cmd

import (
	"fmt"
	"time"

	"pitchlog/internal/session"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(showCmd)
}

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Open today's session, creating it if needed",
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
		s, _, err := a.mgr.GetSession(ctx, id)
		if err != nil {
			return err
		}
		printSession(s)
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		sessions, err := a.mgr.Sessions(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions yet. Run 'pitchlog today' to start one")
			return nil
		}

		fmt.Printf("%-38s %-12s %-6s %-18s %s\n", "ID", "DATE", "TIME", "PLAYER", "TOUCHES")
		fmt.Println("─────────────────────────────────────────────────────────────────────────────────────")
		for _, s := range sessions {
			touches, err := a.mgr.Touches(ctx, s.ID)
			if err != nil {
				return err
			}
			fmt.Printf("%-38s %-12s %-6s %-18s %d\n", s.ID, s.Date, s.Time, truncateShow(s.PlayerName, 18), len(touches))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session with its touches and reflection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.mgr.Snapshot(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("session %q: %w", args[0], err)
		}

		printSession(snap.Session)
		fmt.Println()
		printStats(snap.Stats)

		if len(snap.Touches) > 0 {
			fmt.Println()
			for _, t := range snap.Touches {
				fmt.Printf("%s  %s %s\n",
					time.UnixMilli(t.Timestamp).Local().Format("15:04:05"),
					qualityMark(t.Quality),
					t.ActionType)
			}
		}

		if snap.HasReflection {
			r := snap.Reflection
			fmt.Println()
			printField("Well done", fmt.Sprint(r.WellDoneTags))
			printField("Achieved goal", r.AchievedGoal)
			printField("Learned", r.WhatLearned)
			printField("Would change", r.WhatWouldChange)
			printField("Evaluated by", r.EvaluatedBy)
		}
		return nil
	},
}

func printSession(s session.Session) {
	printField("Session", s.ID)
	printField("Date", s.Date+" "+s.Time)
	printField("Player", s.PlayerName)
	printField("Age", s.Age)
	printField("Club", s.Club)
	printField("Team", s.Team)
	printField("Level", s.Level)
	printField("Position", s.Position)
	printField("Game", s.GameNumber)
	printField("Years", s.TotalYearsPlaying)
	printField("Hours", s.TotalHoursTrained)
}

func printField(label, value string) {
	if value == "" || value == "[]" {
		return
	}
	fmt.Printf("%-14s %s\n", label+":", value)
}

func truncateShow(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
