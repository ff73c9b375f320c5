package answer

import (
	"fmt"
	"strings"
)

// Kind identifies how a single line of an assistant reply is rendered.
type Kind string

const (
	KindSpacer       Kind = "spacer"
	KindBulletHeader Kind = "bullet_header"
	KindNestedItem   Kind = "nested_numbered_item"
	KindBulletItem   Kind = "bullet_item"
	KindPlusItem     Kind = "plus_bullet_item"
	KindNumberedItem Kind = "numbered_item"
	KindHeader       Kind = "header"
	KindParagraph    Kind = "paragraph"
)

// SpanKind identifies an inline fragment of a block's text.
type SpanKind string

const (
	SpanText     SpanKind = "text"
	SpanBold     SpanKind = "bold"
	SpanCitation SpanKind = "citation"
)

// Span is one inline fragment. Text is set for text and bold spans,
// Index for citations.
type Span struct {
	Kind  SpanKind `json:"kind"`
	Text  string   `json:"text,omitempty"`
	Index int      `json:"index,omitempty"`
}

// Text returns a plain text span.
func Text(s string) Span { return Span{Kind: SpanText, Text: s} }

// Bold returns a bold span. A trailing colon, if any, is part of s.
func Bold(s string) Span { return Span{Kind: SpanBold, Text: s} }

// Citation returns a span referencing the numbered source n.
func Citation(n int) Span { return Span{Kind: SpanCitation, Index: n} }

// String returns the span as it would read in plain text.
func (s Span) String() string {
	if s.Kind == SpanCitation {
		return fmt.Sprintf("[%d]", s.Index)
	}
	return s.Text
}

// Block is the rendering unit for one input line.
type Block struct {
	Kind Kind `json:"kind"`
	// Line is the zero-based input line this block came from. It doubles as
	// the block's identity for rendering reconciliation.
	Line int `json:"line"`
	// Number is the display number of a nested numbered item.
	Number int `json:"number,omitempty"`
	// Label is the literal digit run of a numbered item ("07" stays "07").
	Label string `json:"label,omitempty"`
	Spans []Span `json:"spans"`
}

// Key returns a stable identifier for the block within its document.
func (b Block) Key() string {
	return fmt.Sprintf("block-%d", b.Line)
}

// PlainText flattens the block's spans.
func (b Block) PlainText() string {
	var sb strings.Builder
	for _, s := range b.Spans {
		sb.WriteString(s.String())
	}
	return sb.String()
}

// Document is the ordered list of blocks parsed from one reply.
type Document struct {
	Blocks []Block `json:"blocks"`
}

// Citations returns the distinct citation indices in the order they first
// appear.
func (d *Document) Citations() []int {
	seen := make(map[int]bool)
	var out []int
	for _, b := range d.Blocks {
		for _, s := range b.Spans {
			if s.Kind == SpanCitation && !seen[s.Index] {
				seen[s.Index] = true
				out = append(out, s.Index)
			}
		}
	}
	return out
}

// PlainText returns the document with markup removed, one line per block.
func (d *Document) PlainText() string {
	lines := make([]string, len(d.Blocks))
	for i, b := range d.Blocks {
		lines[i] = b.PlainText()
	}
	return strings.Join(lines, "\n")
}
