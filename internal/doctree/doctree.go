// Package doctree holds the format-neutral shape every parser produces.
package doctree

import "strings"

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // from metadata or the filename
	Children []*DocNode // top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string // section heading, empty for untitled text
	Text     string
	Page     int // source page or starting line, 0 if unknown
	Children []*DocNode
}

// Chunk is a retrieval unit cut from a DocTree.
type Chunk struct {
	Text       string
	Index      int      // position within the document, from zero
	Breadcrumb []string // enclosing headings, outermost first
	PageStart  int
	PageEnd    int
}

// Heading joins the breadcrumb for display, e.g. "Setup > Linux".
func (c Chunk) Heading() string {
	return strings.Join(c.Breadcrumb, " > ")
}

// Walk calls fn for every node in depth-first document order.
func (t *DocTree) Walk(fn func(n *DocNode, depth int)) {
	var visit func(nodes []*DocNode, depth int)
	visit = func(nodes []*DocNode, depth int) {
		for _, n := range nodes {
			fn(n, depth)
			visit(n.Children, depth+1)
		}
	}
	visit(t.Children, 0)
}

// TextLen is the total size of node text in the tree, in bytes.
func (t *DocTree) TextLen() int {
	total := 0
	t.Walk(func(n *DocNode, _ int) { total += len(n.Text) })
	return total
}
