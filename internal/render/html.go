// Package render maps parsed answer documents to display formats. It is the
// only place that knows about presentation; the answer package stays
// format-agnostic.
package render

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docchat/internal/answer"
	"github.com/dgallion1/docchat/internal/source"
	"golang.org/x/net/html"
)

// Options controls citation handling shared by all renderers.
type Options struct {
	Policy      source.Policy
	ShowSources bool // append a list of the sources the answer cites
}

// blockClass maps block kinds to the CSS class of their wrapper element.
var blockClass = map[answer.Kind]string{
	answer.KindSpacer:       "spacer",
	answer.KindBulletHeader: "bullet-header",
	answer.KindNestedItem:   "nested-item",
	answer.KindBulletItem:   "bullet-item",
	answer.KindPlusItem:     "plus-item",
	answer.KindNumberedItem: "numbered-item",
	answer.KindHeader:       "header",
	answer.KindParagraph:    "paragraph",
}

// HTML renders a document as a fragment of HTML, one element per block.
func HTML(doc *answer.Document, sources source.Set, opts Options) string {
	var sb strings.Builder
	sb.WriteString(`<div class="answer">`)
	for _, b := range doc.Blocks {
		writeHTMLBlock(&sb, b, sources, opts)
	}
	if opts.ShowSources {
		writeHTMLSources(&sb, doc, sources, opts)
	}
	sb.WriteString(`</div>`)
	return sb.String()
}

func writeHTMLBlock(sb *strings.Builder, b answer.Block, sources source.Set, opts Options) {
	tag := "div"
	switch b.Kind {
	case answer.KindHeader:
		tag = "h4"
	case answer.KindParagraph:
		tag = "p"
	}
	fmt.Fprintf(sb, `<%s class="%s" data-key="%s">`, tag, blockClass[b.Kind], b.Key())

	switch b.Kind {
	case answer.KindNestedItem:
		fmt.Fprintf(sb, `<span class="marker">%d.</span> `, b.Number)
	case answer.KindNumberedItem:
		fmt.Fprintf(sb, `<span class="marker">%s.</span> `, html.EscapeString(b.Label))
	case answer.KindBulletItem:
		sb.WriteString(`<span class="marker">•</span> `)
	case answer.KindPlusItem:
		sb.WriteString(`<span class="marker">◦</span> `)
	}

	for _, s := range b.Spans {
		writeHTMLSpan(sb, s, sources, opts)
	}
	fmt.Fprintf(sb, `</%s>`, tag)
}

func writeHTMLSpan(sb *strings.Builder, s answer.Span, sources source.Set, opts Options) {
	switch s.Kind {
	case answer.SpanBold:
		sb.WriteString("<strong>")
		sb.WriteString(html.EscapeString(s.Text))
		sb.WriteString("</strong>")
	case answer.SpanCitation:
		src, found, asRef := opts.Policy.Resolve(sources, s.Index)
		if !asRef {
			sb.WriteString(html.EscapeString(s.String()))
			return
		}
		title := source.Label(s.Index)
		if found && src.Filename != "" {
			title += ": " + src.Filename
		}
		fmt.Fprintf(sb, `<sup class="citation" data-source="%d" title="%s">[%d]</sup>`,
			s.Index, html.EscapeString(title), s.Index)
	default:
		sb.WriteString(html.EscapeString(s.Text))
	}
}

func writeHTMLSources(sb *strings.Builder, doc *answer.Document, sources source.Set, opts Options) {
	cited := doc.Citations()
	if len(cited) == 0 {
		return
	}
	var items strings.Builder
	for _, n := range cited {
		src, found, asRef := opts.Policy.Resolve(sources, n)
		if !asRef {
			continue
		}
		fmt.Fprintf(&items, `<li value="%d"><span class="source-label">%s</span>`, n, source.Label(n))
		if found {
			fmt.Fprintf(&items, ` %s <span class="source-meta">(chunk %d, score %.2f)</span>`,
				html.EscapeString(src.Filename), src.ChunkIndex, src.Score)
			if src.Excerpt != "" {
				fmt.Fprintf(&items, `<blockquote>%s</blockquote>`, html.EscapeString(src.Excerpt))
			}
		}
		items.WriteString(`</li>`)
	}
	if items.Len() == 0 {
		return
	}
	sb.WriteString(`<ol class="sources">`)
	sb.WriteString(items.String())
	sb.WriteString(`</ol>`)
}
