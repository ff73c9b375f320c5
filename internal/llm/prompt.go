package llm

import (
	"fmt"
	"strings"
)

// SystemPrompt fixes the reply markup the answer parser understands.
const SystemPrompt = `You answer questions using only the numbered sources provided with each question.

Format every answer with this markup and nothing else:
- A line that is only **Bold text** is a section header.
- "* **Topic:** text" starts a bullet group; "* * text" lines beneath it are its numbered sub-points.
- "* text" or "- text" is a plain bullet, "+ text" a secondary bullet, "1. text" a numbered step.
- Cite sources inline as [1], [2] matching the source numbers. Cite only sources you used.
- Do not use Markdown tables, links, code fences or headings with '#'.

If the sources do not contain the answer, say so plainly.`

// Excerpt is one numbered source given to the model.
type Excerpt struct {
	Filename string
	Heading  string
	Text     string
}

// BuildQuestion prefixes the user's question with numbered source excerpts.
// Excerpt i is cited as [i+1].
func BuildQuestion(question string, excerpts []Excerpt) string {
	if len(excerpts) == 0 {
		return "No sources matched this question.\n\nQuestion: " + question
	}
	var sb strings.Builder
	sb.WriteString("Sources:\n\n")
	for i, e := range excerpts {
		fmt.Fprintf(&sb, "[%d] %s", i+1, e.Filename)
		if e.Heading != "" {
			fmt.Fprintf(&sb, " (%s)", e.Heading)
		}
		sb.WriteString("\n")
		sb.WriteString(strings.TrimSpace(e.Text))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}
