// Package answer turns assistant reply text into an ordered document of
// typed blocks and inline spans.
//
// The accepted markup is a fixed vocabulary seen in model output: "*", "•",
// "-", "+" and "N." bullets, "**bold**" with an optional trailing colon,
// and "[N]" source citations. Anything else is a paragraph. Parse never
// fails; malformed markup degrades to plain text.
package answer

// NumberingRegister tracks the display number of nested list entries
// within one parse. It starts at zero, is reset by every bullet header and
// advanced by every nested item.
type NumberingRegister struct {
	n int
}

// Reset returns the register to zero.
func (r *NumberingRegister) Reset() { r.n = 0 }

// Next advances the register and returns the new value.
func (r *NumberingRegister) Next() int {
	r.n++
	return r.n
}

// Value returns the current count.
func (r *NumberingRegister) Value() int { return r.n }

// Parse converts reply text into a Document holding exactly one block per
// input line, in input order. Callers normalize absent content to "".
func Parse(text string) *Document {
	lines := splitLines(text)
	doc := &Document{Blocks: make([]Block, 0, len(lines))}

	var reg NumberingRegister
	for i, line := range lines {
		doc.Blocks = append(doc.Blocks, assemble(i, classifyLine(line), &reg))
	}
	return doc
}

// assemble builds the block for one classified line and applies the
// register transition its kind calls for.
func assemble(line int, c classified, reg *NumberingRegister) Block {
	b := Block{Kind: c.kind, Line: line}
	switch c.kind {
	case KindSpacer:
		b.Spans = []Span{}
		return b
	case KindBulletHeader:
		reg.Reset()
	case KindNestedItem:
		b.Number = reg.Next()
	case KindNumberedItem:
		b.Label = c.label
	}
	b.Spans = tokenizeInline(c.content)
	return b
}
