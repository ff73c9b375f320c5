package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgallion1/docchat/internal/answer"
	"github.com/dgallion1/docchat/internal/source"
)

// Terminal renders documents for an ANSI terminal.
type Terminal struct {
	header   lipgloss.Style
	bold     lipgloss.Style
	citation lipgloss.Style
	marker   lipgloss.Style
	muted    lipgloss.Style
}

// NewTerminal builds terminal styles on the given lipgloss renderer, which
// decides the color profile. Pass nil to use the default renderer.
func NewTerminal(r *lipgloss.Renderer) *Terminal {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return &Terminal{
		header:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		bold:     r.NewStyle().Bold(true),
		citation: r.NewStyle().Foreground(lipgloss.Color("6")),
		marker:   r.NewStyle().Foreground(lipgloss.Color("8")),
		muted:    r.NewStyle().Faint(true),
	}
}

// Render returns the document as terminal text, one output line per block.
func (t *Terminal) Render(doc *answer.Document, sources source.Set, opts Options) string {
	lines := make([]string, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		lines = append(lines, t.block(b, sources, opts))
	}
	out := strings.Join(lines, "\n")
	if opts.ShowSources {
		if footer := t.sources(doc, sources, opts); footer != "" {
			out += "\n\n" + footer
		}
	}
	return out
}

func (t *Terminal) block(b answer.Block, sources source.Set, opts Options) string {
	body := t.spans(b.Spans, sources, opts)
	switch b.Kind {
	case answer.KindSpacer:
		return ""
	case answer.KindBulletHeader:
		return t.marker.Render("•") + " " + body
	case answer.KindNestedItem:
		return "    " + t.marker.Render(fmt.Sprintf("%d.", b.Number)) + " " + body
	case answer.KindBulletItem:
		return "  " + t.marker.Render("•") + " " + body
	case answer.KindPlusItem:
		return "    " + t.marker.Render("◦") + " " + body
	case answer.KindNumberedItem:
		return t.marker.Render(b.Label+".") + " " + body
	case answer.KindHeader:
		return t.header.Render(b.PlainText())
	default:
		return body
	}
}

func (t *Terminal) spans(spans []answer.Span, sources source.Set, opts Options) string {
	var sb strings.Builder
	for _, s := range spans {
		switch s.Kind {
		case answer.SpanBold:
			sb.WriteString(t.bold.Render(s.Text))
		case answer.SpanCitation:
			if _, _, asRef := opts.Policy.Resolve(sources, s.Index); asRef {
				sb.WriteString(t.citation.Render(s.String()))
			} else {
				sb.WriteString(s.String())
			}
		default:
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}

func (t *Terminal) sources(doc *answer.Document, sources source.Set, opts Options) string {
	var lines []string
	for _, n := range doc.Citations() {
		src, found, asRef := opts.Policy.Resolve(sources, n)
		if !asRef {
			continue
		}
		label := t.citation.Render(source.Label(n) + ":")
		if !found {
			lines = append(lines, label+" "+t.muted.Render("(not in result set)"))
			continue
		}
		meta := t.muted.Render(fmt.Sprintf("(chunk %d, score %.2f)", src.ChunkIndex, src.Score))
		lines = append(lines, fmt.Sprintf("%s %s %s", label, src.Filename, meta))
	}
	if len(lines) == 0 {
		return ""
	}
	return t.header.Render("Sources") + "\n" + strings.Join(lines, "\n")
}
