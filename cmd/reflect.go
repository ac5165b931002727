package cmd

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"pitchlog/internal/session"

	"github.com/spf13/cobra"
)

var (
	reflectTags    []string
	formationTeam  string
	formationDate  string
	attendSession  string
	attendTeam     string
	attendAge      string
	attendPosition string
	attendGrade    string
)

func init() {
	rootCmd.AddCommand(reflectCmd)
	reflectCmd.AddCommand(reflectSetCmd)
	reflectCmd.AddCommand(reflectRateCmd)
	reflectCmd.AddCommand(reflectEvaluateCmd)
	reflectCmd.AddCommand(reflectFormationCmd)
	reflectCmd.AddCommand(reflectAttendCmd)

	reflectSetCmd.Flags().StringSliceVar(&reflectTags, "tag", nil, "what went well (repeatable, replaces the saved tags)")
	for _, f := range reflectionFlags {
		reflectSetCmd.Flags().String(f.flag, "", f.usage)
	}

	reflectFormationCmd.Flags().StringVar(&formationTeam, "team", "", "team name")
	reflectFormationCmd.Flags().StringVar(&formationDate, "date", "", "match date")

	reflectAttendCmd.Flags().StringVar(&attendSession, "type", "", "session type (game, training, tryout, evaluation)")
	reflectAttendCmd.Flags().StringVar(&attendTeam, "team", "", "team")
	reflectAttendCmd.Flags().StringVar(&attendAge, "age", "", "player age")
	reflectAttendCmd.Flags().StringVar(&attendPosition, "position", "", "player position")
	reflectAttendCmd.Flags().StringVar(&attendGrade, "grade", "", "grade: A, B or C")
}

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Record the post-session reflection and evaluation",
}

var reflectionFlags = []struct {
	flag  string
	usage string
	set   func(p *session.ReflectionPatch, v *string)
}{
	{"player-name", "name of the player reflecting", func(p *session.ReflectionPatch, v *string) { p.PlayerName = v }},
	{"player-age", "age of the player reflecting", func(p *session.ReflectionPatch, v *string) { p.PlayerAge = v }},
	{"goal", "did you achieve your goal", func(p *session.ReflectionPatch, v *string) { p.AchievedGoal = v }},
	{"learned", "what you learned", func(p *session.ReflectionPatch, v *string) { p.WhatLearned = v }},
	{"change", "what you would change", func(p *session.ReflectionPatch, v *string) { p.WhatWouldChange = v }},
	{"evaluated-by", "coach or parent evaluating", func(p *session.ReflectionPatch, v *string) { p.EvaluatedBy = v }},
	{"eval-name", "name of the player evaluated", func(p *session.ReflectionPatch, v *string) { p.PlayerEvaluationName = v }},
	{"eval-age", "age of the player evaluated", func(p *session.ReflectionPatch, v *string) { p.PlayerEvaluationAge = v }},
}

var reflectSetCmd = &cobra.Command{
	Use:     "set",
	Short:   "Write reflection answers; only the flags given are written",
	Example: `  pitchlog reflect set --learned "scan before receiving" --tag Passing --tag Effort`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch session.ReflectionPatch
		changed := 0
		if cmd.Flags().Changed("tag") {
			tags := reflectTags
			patch.WellDoneTags = &tags
			changed++
		}
		for _, f := range reflectionFlags {
			if !cmd.Flags().Changed(f.flag) {
				continue
			}
			v, _ := cmd.Flags().GetString(f.flag)
			f.set(&patch, &v)
			changed++
		}
		if changed == 0 {
			return fmt.Errorf("nothing to set: pass at least one flag")
		}

		return withReflection(cmd.Context(), func(a *app, id string, _ session.Reflection) error {
			if err := a.mgr.UpdateReflection(cmd.Context(), id, patch); err != nil {
				return err
			}
			fmt.Printf("Reflection updated (%d field(s))\n", changed)
			return nil
		})
	},
}

var reflectRateCmd = &cobra.Command{
	Use:     "rate <metric> <0-10>",
	Short:   "Rate one performance metric",
	Example: `  pitchlog reflect rate Passing 8`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := parseRating(args[1], 0, session.MaxPerformance)
		if err != nil {
			return err
		}
		return withReflection(cmd.Context(), func(a *app, id string, prev session.Reflection) error {
			perf := maps.Clone(prev.DetailedPerformance)
			if perf == nil {
				perf = make(map[string]int)
			}
			perf[args[0]] = score
			if err := a.mgr.UpdateReflection(cmd.Context(), id, session.ReflectionPatch{DetailedPerformance: &perf}); err != nil {
				return err
			}
			fmt.Printf("%s rated %d/%d\n", args[0], score, session.MaxPerformance)
			return nil
		})
	},
}

var reflectEvaluateCmd = &cobra.Command{
	Use:     "evaluate <category> <skill> <1-4>",
	Short:   "Grade one skill in an evaluation category",
	Example: `  pitchlog reflect evaluate TECHNIQUE "First touch" 3`,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, skill := strings.ToUpper(args[0]), args[1]
		rating, err := parseRating(args[2], session.MinEvaluation, session.MaxEvaluation)
		if err != nil {
			return err
		}
		return withReflection(cmd.Context(), func(a *app, id string, prev session.Reflection) error {
			eval := make(map[string]map[string]int, len(prev.DetailedEvaluation)+1)
			for c, skills := range prev.DetailedEvaluation {
				eval[c] = maps.Clone(skills)
			}
			if eval[category] == nil {
				eval[category] = make(map[string]int)
			}
			eval[category][skill] = rating
			if err := a.mgr.UpdateReflection(cmd.Context(), id, session.ReflectionPatch{DetailedEvaluation: &eval}); err != nil {
				return err
			}
			fmt.Printf("%s / %s graded %d/%d\n", category, skill, rating, session.MaxEvaluation)
			return nil
		})
	},
}

var reflectFormationCmd = &cobra.Command{
	Use:     "formation <slot> <player>",
	Short:   "Put a player in a formation slot (1-11)",
	Example: `  pitchlog reflect formation 10 Alex --team "U12 Blue"`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		slot, err := parseRating(args[0], 1, 11)
		if err != nil {
			return fmt.Errorf("slot: %w", err)
		}
		return withReflection(cmd.Context(), func(a *app, id string, prev session.Reflection) error {
			f := session.Formation{}
			if prev.Formation != nil {
				f = *prev.Formation
			}
			f.Players = maps.Clone(f.Players)
			if f.Players == nil {
				f.Players = make(map[string]string)
			}
			f.Players[strconv.Itoa(slot)] = args[1]
			if formationTeam != "" {
				f.TeamName = formationTeam
			}
			if formationDate != "" {
				f.Date = formationDate
			}
			if err := a.mgr.UpdateReflection(cmd.Context(), id, session.ReflectionPatch{Formation: &f}); err != nil {
				return err
			}
			fmt.Printf("Slot %d: %s\n", slot, args[1])
			return nil
		})
	},
}

var reflectAttendCmd = &cobra.Command{
	Use:     "attend <last-name> <first-name>",
	Short:   "Add a player to the attendance sheet",
	Example: `  pitchlog reflect attend Doe Alex --position MF --grade A --type training`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		grade := strings.ToUpper(attendGrade)
		switch grade {
		case "", "A", "B", "C":
		default:
			return fmt.Errorf("grade must be A, B or C, got %q", attendGrade)
		}

		return withReflection(cmd.Context(), func(a *app, id string, prev session.Reflection) error {
			var att session.Attendance
			if prev.Attendance != nil {
				att = *prev.Attendance
			}
			att.Records = append([]session.AttendanceRecord(nil), att.Records...)

			s, _, err := a.mgr.GetSession(cmd.Context(), id)
			if err != nil {
				return err
			}
			if att.Metadata.Date == "" {
				att.Metadata.Date = s.Date
			}
			if attendTeam != "" {
				att.Metadata.Team = attendTeam
			}
			if attendSession != "" {
				att.Metadata.SessionType = attendSession
			}

			rec := session.AttendanceRecord{
				ID:        len(att.Records) + 1,
				LastName:  args[0],
				FirstName: args[1],
				Age:       attendAge,
				Position:  attendPosition,
				Grades:    map[string]bool{"A": grade == "A", "B": grade == "B", "C": grade == "C"},
			}
			att.Records = append(att.Records, rec)
			if err := a.mgr.UpdateReflection(cmd.Context(), id, session.ReflectionPatch{Attendance: &att}); err != nil {
				return err
			}
			fmt.Printf("%d on the sheet\n", len(att.Records))
			return nil
		})
	},
}

// withReflection opens the app, resolves today's session and hands fn the
// current reflection, so nested sections can be spread before writing.
func withReflection(ctx context.Context, fn func(a *app, id string, prev session.Reflection) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.today(ctx)
	if err != nil {
		return err
	}
	prev, _, err := a.mgr.Reflection(ctx, id)
	if err != nil {
		return err
	}
	return fn(a, id, prev)
}

func parseRating(s string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("want a whole number from %d to %d, got %q", lo, hi, s)
	}
	return n, nil
}
