package report

import (
	"encoding/json"
	"fmt"

	"pitchlog/internal/session"

	"github.com/charmbracelet/glamour"
)

// Generate produces the report for snap. JSON ignores level.
func Generate(snap session.Snapshot, format, level string) (string, error) {
	if format == FormatJSON {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode snapshot: %w", err)
		}
		return string(data) + "\n", nil
	}
	b, err := NewBuilder(format)
	if err != nil {
		return "", err
	}
	return b.Level(snap, level)
}

// Fit produces the most detailed report for snap that fits in budget
// characters and names the level it picked.
func Fit(snap session.Snapshot, format string, budget int) (string, string, error) {
	b, err := NewBuilder(format)
	if err != nil {
		return "", "", err
	}
	level, text := BestFit(b.Build(snap), budget)
	return level, text, nil
}

// RenderTerminal styles markdown for display, wrapping at width columns.
func RenderTerminal(markdown string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
