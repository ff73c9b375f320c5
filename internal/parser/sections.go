package parser

import (
	"path/filepath"
	"strings"

	"github.com/dgallion1/docchat/internal/doctree"
)

// sectionBuilder nests heading-delimited sections by level. Body text seen
// between headings accumulates on the innermost open section.
type sectionBuilder struct {
	root    *doctree.DocNode
	stack   []openSection
	pending strings.Builder
}

type openSection struct {
	node  *doctree.DocNode
	level int
}

func newSectionBuilder(title string) *sectionBuilder {
	root := &doctree.DocNode{Title: title}
	return &sectionBuilder{root: root, stack: []openSection{{node: root}}}
}

// heading closes every open section at level or deeper and opens a new one.
func (b *sectionBuilder) heading(level int, title string) {
	b.flush()
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	n := &doctree.DocNode{Title: title}
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, n)
	b.stack = append(b.stack, openSection{node: n, level: level})
}

// text queues a paragraph for the current section.
func (b *sectionBuilder) text(t string) {
	if t == "" {
		return
	}
	if b.pending.Len() > 0 {
		b.pending.WriteString("\n\n")
	}
	b.pending.WriteString(t)
}

func (b *sectionBuilder) flush() {
	t := strings.TrimSpace(b.pending.String())
	b.pending.Reset()
	if t == "" {
		return
	}
	top := b.stack[len(b.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

// tree finishes the document. Text outside any heading becomes a lone
// untitled section when the document has no headings at all.
func (b *sectionBuilder) tree(title string) *doctree.DocTree {
	b.flush()
	t := &doctree.DocTree{Title: title, Children: b.root.Children}
	if len(t.Children) == 0 && b.root.Text != "" {
		t.Children = []*doctree.DocNode{{Text: b.root.Text}}
	} else if b.root.Text != "" {
		t.Children = append([]*doctree.DocNode{{Text: b.root.Text}}, t.Children...)
	}
	return t
}

// baseTitle strips the extension from a filename.
func baseTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
