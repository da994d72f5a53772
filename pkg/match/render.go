package match

import "strings"

const (
	banner    = "Harmful Ingredients Detected:"
	noMatches = "No harmful ingredients detected."
)

// Render formats results as the text shown to the user and sent by email.
func Render(results []Result) string {
	if len(results) == 0 {
		return noMatches
	}
	var b strings.Builder
	b.WriteString(banner)
	b.WriteString("\n\n")
	for _, r := range results {
		b.WriteString("- Ingredient: ")
		b.WriteString(r.Name)
		b.WriteString("\n  => Description: ")
		b.WriteString(r.Description)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Markdown formats results as a Markdown list for rich renderers.
func Markdown(results []Result) string {
	if len(results) == 0 {
		return noMatches + "\n"
	}
	var b strings.Builder
	b.WriteString("## " + banner + "\n\n")
	for _, r := range results {
		b.WriteString("- **" + escapeMarkdown(r.Name) + "**: " + escapeMarkdown(r.Description) + "\n")
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
