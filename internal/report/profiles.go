package report

// Output formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatText     = "text"
)

type FormatProfile struct {
	Key         string
	Name        string
	Extension   string
	Levelled    bool
	Description string
}

var Formats = map[string]FormatProfile{
	FormatMarkdown: {
		Key:         FormatMarkdown,
		Name:        "Markdown",
		Extension:   ".md",
		Levelled:    true,
		Description: "Rendered in the terminal, raw when written to a file",
	},
	FormatText: {
		Key:         FormatText,
		Name:        "Plain text",
		Extension:   ".txt",
		Levelled:    true,
		Description: "No markup, for messages and notes apps",
	},
	FormatJSON: {
		Key:         FormatJSON,
		Name:        "JSON",
		Extension:   ".json",
		Levelled:    false,
		Description: "Full session snapshot, ignores --level",
	},
}

func GetFormat(key string) (FormatProfile, bool) {
	f, ok := Formats[key]
	return f, ok
}

func ListFormats() []FormatProfile {
	order := []string{FormatMarkdown, FormatText, FormatJSON}
	result := make([]FormatProfile, 0, len(order))
	for _, k := range order {
		result = append(result, Formats[k])
	}
	return result
}
