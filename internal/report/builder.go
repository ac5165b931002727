// Package report turns a session snapshot into text for sharing: markdown,
// plain text or JSON, at one of three levels of detail.
package report

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"pitchlog/internal/session"
)

const (
	LevelDetailed = "detailed"
	LevelSummary  = "summary"
	LevelBrief    = "brief"
)

// Levels runs from most to least detailed.
var Levels = []string{LevelDetailed, LevelSummary, LevelBrief}

type Builder struct {
	markdown bool
}

// NewBuilder returns a builder for a levelled format.
func NewBuilder(format string) (*Builder, error) {
	f, ok := GetFormat(format)
	if !ok {
		return nil, fmt.Errorf("unknown format %q", format)
	}
	if !f.Levelled {
		return nil, fmt.Errorf("format %q has no levels", format)
	}
	return &Builder{markdown: format == FormatMarkdown}, nil
}

// Build renders the snapshot at every level.
func (b *Builder) Build(snap session.Snapshot) map[string]string {
	return map[string]string{
		LevelDetailed: b.buildDetailed(snap),
		LevelSummary:  b.buildSummary(snap),
		LevelBrief:    b.buildBrief(snap),
	}
}

func (b *Builder) Level(snap session.Snapshot, level string) (string, error) {
	switch level {
	case LevelDetailed:
		return b.buildDetailed(snap), nil
	case LevelSummary:
		return b.buildSummary(snap), nil
	case LevelBrief:
		return b.buildBrief(snap), nil
	}
	return "", fmt.Errorf("unknown level %q", level)
}

// BestFit returns the most detailed level whose text fits in budget
// characters, or brief when none does.
func BestFit(reports map[string]string, budget int) (string, string) {
	for _, lvl := range Levels {
		text := reports[lvl]
		if utf8.RuneCountInString(text) <= budget {
			return lvl, text
		}
	}
	return LevelBrief, reports[LevelBrief]
}

func (b *Builder) buildDetailed(snap session.Snapshot) string {
	s := snap.Session
	d := &doc{markdown: b.markdown}

	d.title(strings.TrimSpace(fmt.Sprintf("Session report: %s %s", s.Date, s.Time)))

	d.section("Player")
	d.field("Player", s.PlayerName)
	d.field("Age", s.Age)
	d.field("Club", s.Club)
	d.field("Team", s.Team)
	d.field("Level", s.Level)
	d.field("Position", s.Position)
	d.field("Preferred position", s.YourPosition)
	d.field("Right foot", s.RightFooter)
	d.field("Left foot", s.LeftFooter)
	d.field("Game number", s.GameNumber)
	d.field("Years playing", s.TotalYearsPlaying)
	d.field("Hours trained", s.TotalHoursTrained)
	d.field("Total sessions", s.TotalSessions)
	d.field("Total games", s.TotalGames)
	d.field("Total goals", s.TotalGoals)
	d.field("Total penalties", s.TotalPenalties)
	d.end()

	st := snap.Stats
	d.section("Touches")
	d.field("Total", strconv.Itoa(st.Total))
	d.field("Good", strconv.Itoa(st.Good))
	d.field("Bad", strconv.Itoa(st.Bad))
	d.field("Success rate", successRate(st))
	d.end()
	rows := make([][]string, 0, len(st.Actions))
	for _, a := range st.Actions {
		rows = append(rows, []string{a, strconv.Itoa(st.Count(a))})
	}
	d.table([]string{"Action", "Count"}, rows)

	if !snap.HasReflection {
		return d.String()
	}
	r := snap.Reflection

	d.section("Reflection")
	d.field("Well done", strings.Join(r.WellDoneTags, ", "))
	d.field("Achieved goal", r.AchievedGoal)
	d.field("What I learned", r.WhatLearned)
	d.field("What I would change", r.WhatWouldChange)
	d.field("Reflected by", joinNonEmpty(" ", r.PlayerName, paren(r.PlayerAge)))
	d.end()

	if len(r.DetailedPerformance) > 0 {
		d.section("Performance")
		rows := make([][]string, 0, len(r.DetailedPerformance))
		for _, metric := range sortedKeys(r.DetailedPerformance) {
			rows = append(rows, []string{metric, fmt.Sprintf("%d/%d", r.DetailedPerformance[metric], session.MaxPerformance)})
		}
		d.table([]string{"Metric", "Score"}, rows)
	}

	if len(r.DetailedEvaluation) > 0 || r.EvaluatedBy != "" {
		d.section("Evaluation")
		d.field("Evaluated by", r.EvaluatedBy)
		d.field("Player", joinNonEmpty(" ", r.PlayerEvaluationName, paren(r.PlayerEvaluationAge)))
		d.end()
		var rows [][]string
		for _, category := range sortedKeys(r.DetailedEvaluation) {
			skills := r.DetailedEvaluation[category]
			for _, skill := range sortedKeys(skills) {
				rows = append(rows, []string{category, skill, fmt.Sprintf("%d/%d", skills[skill], session.MaxEvaluation)})
			}
		}
		if len(rows) > 0 {
			d.table([]string{"Category", "Skill", "Rating"}, rows)
		}
	}

	if f := r.Formation; f != nil && (f.TeamName != "" || len(f.Players) > 0) {
		d.section(joinNonEmpty(": ", "Formation", f.TeamName))
		d.field("Date", f.Date)
		d.end()
		slots := make([]string, 0, len(f.Players))
		for k := range f.Players {
			slots = append(slots, k)
		}
		sort.Slice(slots, func(i, j int) bool { return slotLess(slots[i], slots[j]) })
		rows := make([][]string, 0, len(slots))
		for _, k := range slots {
			rows = append(rows, []string{k, f.Players[k]})
		}
		if len(rows) > 0 {
			d.table([]string{"No.", "Player"}, rows)
		}
	}

	if a := r.Attendance; a != nil {
		m := a.Metadata
		d.section("Attendance")
		d.field("Date", m.Date)
		d.field("Team", m.Team)
		d.field("Session type", m.SessionType)
		d.field("Game", m.Game)
		d.field("Training", m.Training)
		d.field("Tryout", m.Tryout)
		d.field("Evaluation", m.Evaluation)
		d.end()
		rows := make([][]string, 0, len(a.Records))
		for _, rec := range a.Records {
			if rec.LastName == "" && rec.FirstName == "" {
				continue
			}
			rows = append(rows, []string{rec.LastName, rec.FirstName, rec.Age, rec.Position, grades(rec.Grades)})
		}
		if len(rows) > 0 {
			d.table([]string{"Last name", "First name", "Age", "Position", "Grade"}, rows)
		}
	}

	return d.String()
}

func (b *Builder) buildSummary(snap session.Snapshot) string {
	s := snap.Session
	st := snap.Stats
	d := &doc{markdown: b.markdown}

	d.title(strings.TrimSpace(fmt.Sprintf("Session %s %s", s.Date, s.Time)))
	d.line(profileLine(s))
	d.end()

	d.field("Touches", fmt.Sprintf("%d (%d good, %d bad)", st.Total, st.Good, st.Bad))
	for _, a := range st.Actions {
		if n := st.Count(a); n > 0 {
			d.bullet(fmt.Sprintf("%s: %d", a, n))
		}
	}
	d.end()

	if snap.HasReflection {
		r := snap.Reflection
		d.field("Well done", strings.Join(r.WellDoneTags, ", "))
		d.field("Achieved goal", r.AchievedGoal)
		d.field("What I learned", r.WhatLearned)
		d.field("What I would change", r.WhatWouldChange)
	}
	return d.String()
}

func (b *Builder) buildBrief(snap session.Snapshot) string {
	s := snap.Session
	st := snap.Stats

	who := s.PlayerName
	if who == "" {
		who = "Session"
	}
	line := fmt.Sprintf("%s %s: %d touches, %d good, %d bad.", s.Date, who, st.Total, st.Good, st.Bad)
	if a, n := topAction(st); n > 0 {
		line += fmt.Sprintf(" Top action: %s (%d).", a, n)
	}
	return line + "\n"
}

// doc writes either markdown or plain text.
type doc struct {
	sb       strings.Builder
	markdown bool
}

func (d *doc) title(s string) {
	if d.markdown {
		d.sb.WriteString(fmt.Sprintf("# %s\n\n", s))
		return
	}
	d.sb.WriteString(fmt.Sprintf("%s\n%s\n\n", s, strings.Repeat("=", utf8.RuneCountInString(s))))
}

func (d *doc) section(s string) {
	if d.markdown {
		d.sb.WriteString(fmt.Sprintf("### %s\n", s))
		return
	}
	d.sb.WriteString(fmt.Sprintf("%s\n%s\n", s, strings.Repeat("-", utf8.RuneCountInString(s))))
}

// field skips empty values.
func (d *doc) field(key, value string) {
	if value == "" {
		return
	}
	if d.markdown {
		d.sb.WriteString(fmt.Sprintf("- **%s:** %s\n", key, value))
		return
	}
	d.sb.WriteString(fmt.Sprintf("%s: %s\n", key, value))
}

func (d *doc) bullet(s string) {
	if d.markdown {
		d.sb.WriteString(fmt.Sprintf("- %s\n", s))
		return
	}
	d.sb.WriteString(fmt.Sprintf("  * %s\n", s))
}

func (d *doc) line(s string) {
	if s != "" {
		d.sb.WriteString(s + "\n")
	}
}

func (d *doc) end() {
	d.sb.WriteString("\n")
}

func (d *doc) table(head []string, rows [][]string) {
	if d.markdown {
		d.sb.WriteString("| " + strings.Join(head, " | ") + " |\n")
		d.sb.WriteString("|" + strings.Repeat("---|", len(head)) + "\n")
		for _, r := range rows {
			d.sb.WriteString("| " + strings.Join(r, " | ") + " |\n")
		}
		d.sb.WriteString("\n")
		return
	}
	w := tabwriter.NewWriter(&d.sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(head, "\t"))
	for _, r := range rows {
		fmt.Fprintln(w, strings.Join(r, "\t"))
	}
	w.Flush()
	d.sb.WriteString("\n")
}

func (d *doc) String() string { return d.sb.String() }

func profileLine(s session.Session) string {
	club := s.Club
	if s.Team != "" {
		club = joinNonEmpty(" ", club, paren(s.Team))
	}
	return joinNonEmpty(", ", s.PlayerName, s.Position, club)
}

func successRate(st session.Stats) string {
	if st.Total == 0 {
		return ""
	}
	return fmt.Sprintf("%d%%", st.Good*100/st.Total)
}

// topAction returns the most logged action, earliest in display order on a tie.
func topAction(st session.Stats) (string, int) {
	best, n := "", 0
	for _, a := range st.Actions {
		if c := st.Count(a); c > n {
			best, n = a, c
		}
	}
	return best, n
}

func grades(g map[string]bool) string {
	var out []string
	for k, on := range g {
		if on {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return strings.Join(out, "")
}

// slotLess orders shirt numbers numerically, anything else after them.
func slotLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	}
	return a < b
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func paren(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}
