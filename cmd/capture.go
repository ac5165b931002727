package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"pitchlog/internal/actions"
	"pitchlog/internal/config"
	"pitchlog/internal/kv"
	"pitchlog/internal/session"
	"pitchlog/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(touchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd)

	for _, f := range profileFlags {
		profileSetCmd.Flags().String(f.flag, "", f.usage)
	}
}

// app is everything a command needs, opened from the data directory.
type app struct {
	medium   kv.Medium
	st       *store.Store
	mgr      *session.Manager
	settings *actions.Settings
}

func openApp() (*app, error) {
	var medium kv.Medium
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		medium = kv.NewMemory()
	default:
		if _, err := os.Stat(env.Dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("not initialized: run 'pitchlog init' first")
		}
		db, err := kv.OpenSQLite(env.Dir)
		if err != nil {
			return nil, err
		}
		medium = db
	}
	medium = kv.WithTimeout(medium, cfg.Storage.Timeout)

	st := store.New(medium, store.WithLogger(logger))
	return &app{
		medium: medium,
		st:     st,
		mgr: session.NewManager(st,
			session.WithLogger(logger),
			session.WithKnownActions(cfg.Actions.Known)),
		settings: actions.New(medium, cfg.Actions.Defaults),
	}, nil
}

func (a *app) Close() error {
	return a.st.Close()
}

// today resolves the day's session, printing nothing.
func (a *app) today(ctx context.Context) (string, error) {
	id, err := a.mgr.GetOrCreateActiveSession(ctx)
	if err != nil {
		return "", fmt.Errorf("could not open today's session: %w", err)
	}
	return id, nil
}

var touchCmd = &cobra.Command{
	Use:   "touch <action> <positive|negative>",
	Short: "Log a touch in today's session",
	Example: `  pitchlog touch Pass positive
  pitchlog touch "corner kick" -`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := parseQuality(args[1])
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		vocab, err := a.settings.Load(ctx)
		if err != nil {
			logger.Warn("action vocabulary unreadable, using defaults", zap.Error(err))
		}
		action, known := matchAction(args[0], vocab)
		if !known {
			fmt.Fprintf(os.Stderr, "Note: %q is not in your action list (see 'pitchlog actions list')\n", action)
		}

		id, err := a.today(ctx)
		if err != nil {
			return err
		}
		if err := a.mgr.AddTouch(ctx, id, action, q); err != nil {
			return err
		}

		stats, err := a.mgr.Stats(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s logged: %d %s today, %d touches total\n",
			qualityMark(q), action, stats.Count(action), action, stats.Total)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show touch statistics for today's session",
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
		printStats(stats)
		return nil
	},
}

func printStats(s session.Stats) {
	fmt.Printf("Total: %d   Good: %d   Bad: %d\n\n", s.Total, s.Good, s.Bad)
	fmt.Printf("%-16s %s\n", "ACTION", "COUNT")
	fmt.Println("──────────────────────")
	for _, a := range s.Actions {
		fmt.Printf("%-16s %d\n", a, s.Count(a))
	}
}

func parseQuality(s string) (session.Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "good", "+", "p":
		return session.Positive, nil
	case "negative", "bad", "-", "n":
		return session.Negative, nil
	}
	return "", fmt.Errorf("quality must be positive or negative, got %q", s)
}

func qualityMark(q session.Quality) string {
	if q == session.Positive {
		return "+"
	}
	return "-"
}

// matchAction returns the vocabulary spelling of name when it is listed.
func matchAction(name string, vocab []string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, v := range vocab {
		if strings.EqualFold(v, name) {
			return v, true
		}
	}
	return name, false
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or edit the player profile of today's session",
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
		s, src, err := a.mgr.Profile(ctx, id)
		if err != nil && src == session.SourceNone {
			return err
		}
		if src == session.SourceDraft {
			fmt.Fprintln(os.Stderr, "Warning: storage unreadable, showing the last saved profile")
		}
		printSession(s)
		return nil
	},
}

var profileFlags = []struct {
	flag  string
	usage string
	set   func(p *session.SessionPatch, v *string)
}{
	{"player-name", "player name", func(p *session.SessionPatch, v *string) { p.PlayerName = v }},
	{"age", "player age", func(p *session.SessionPatch, v *string) { p.Age = v }},
	{"club", "club", func(p *session.SessionPatch, v *string) { p.Club = v }},
	{"team", "team", func(p *session.SessionPatch, v *string) { p.Team = v }},
	{"level", "playing level", func(p *session.SessionPatch, v *string) { p.Level = v }},
	{"position", "position played today", func(p *session.SessionPatch, v *string) { p.Position = v }},
	{"your-position", "preferred position", func(p *session.SessionPatch, v *string) { p.YourPosition = v }},
	{"right-footer", "right foot rating", func(p *session.SessionPatch, v *string) { p.RightFooter = v }},
	{"left-footer", "left foot rating", func(p *session.SessionPatch, v *string) { p.LeftFooter = v }},
	{"game-number", "game number", func(p *session.SessionPatch, v *string) { p.GameNumber = v }},
	{"years-playing", "total years playing", func(p *session.SessionPatch, v *string) { p.TotalYearsPlaying = v }},
	{"hours-trained", "total hours trained", func(p *session.SessionPatch, v *string) { p.TotalHoursTrained = v }},
	{"total-sessions", "total sessions", func(p *session.SessionPatch, v *string) { p.TotalSessions = v }},
	{"total-games", "total games", func(p *session.SessionPatch, v *string) { p.TotalGames = v }},
	{"total-goals", "total goals", func(p *session.SessionPatch, v *string) { p.TotalGoals = v }},
	{"total-penalties", "total penalties", func(p *session.SessionPatch, v *string) { p.TotalPenalties = v }},
}

var profileSetCmd = &cobra.Command{
	Use:     "set",
	Short:   "Update profile fields; only the flags given are written",
	Example: `  pitchlog profile set --player-name Alex --club "Riverside FC"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch session.SessionPatch
		changed := 0
		for _, f := range profileFlags {
			if !cmd.Flags().Changed(f.flag) {
				continue
			}
			v, _ := cmd.Flags().GetString(f.flag)
			f.set(&patch, &v)
			changed++
		}
		if changed == 0 {
			return fmt.Errorf("nothing to set: pass at least one field flag")
		}

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
		found, err := a.mgr.UpdateSession(ctx, id, patch)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("session %s no longer exists (run 'pitchlog today' to start a new one)", id)
		}
		fmt.Printf("Updated %d field(s) on session %s\n", changed, id)
		return nil
	},
}
