// Package chunker splits a parsed document tree into retrieval-sized chunks
// that remember the headings they sit under.
package chunker

import (
	"strings"

	"github.com/dgallion1/docchat/internal/doctree"
)

// Config controls chunking behavior. Sizes are estimated tokens.
type Config struct {
	ChunkSize    int // Target chunk size.
	ChunkOverlap int // Text carried from the end of one chunk into the next.
	MinChunk     int // Smaller pieces are dropped unless nothing else survives.
}

// DefaultConfig returns defaults sized for retrieval: small enough that a
// handful of chunks fit in one prompt.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    400,
		ChunkOverlap: 50,
		MinChunk:     20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = d.ChunkOverlap
	}
	if c.MinChunk <= 0 {
		c.MinChunk = d.MinChunk
	}
	return c
}

// ChunkTree walks a DocTree depth-first and produces chunks numbered from
// zero in document order. A document whose every piece is below MinChunk
// still yields its pieces, so short uploads stay searchable.
func ChunkTree(tree *doctree.DocTree, cfg Config) []doctree.Chunk {
	cfg = cfg.withDefaults()

	w := &walker{cfg: cfg}
	for _, child := range tree.Children {
		w.visit(child, nil)
	}

	out := w.kept
	if len(out) == 0 {
		out = w.small
	}
	for i := range out {
		out[i].Index = i
	}
	return out
}

type walker struct {
	cfg   Config
	kept  []doctree.Chunk
	small []doctree.Chunk
}

func (w *walker) visit(node *doctree.DocNode, parent []string) {
	bc := parent
	if node.Title != "" {
		bc = append(append([]string(nil), parent...), node.Title)
	}

	if strings.TrimSpace(node.Text) != "" {
		for _, part := range splitText(node.Text, w.cfg.ChunkSize, w.cfg.ChunkOverlap) {
			c := doctree.Chunk{
				Text:       part,
				Breadcrumb: copyBreadcrumb(bc),
				PageStart:  node.Page,
				PageEnd:    node.Page,
			}
			if EstimateTokens(part) >= w.cfg.MinChunk {
				w.kept = append(w.kept, c)
			} else {
				w.small = append(w.small, c)
			}
		}
	}

	for _, child := range node.Children {
		w.visit(child, bc)
	}
}

// splitText packs paragraphs into chunks of roughly target tokens.
// Paragraphs larger than the target are packed sentence by sentence.
func splitText(text string, target, overlap int) []string {
	if EstimateTokens(text) <= target {
		return []string{strings.TrimSpace(text)}
	}

	var units []string
	var out []string
	for _, para := range splitByParagraphs(text) {
		if EstimateTokens(para) <= target {
			units = append(units, para)
			continue
		}
		out = append(out, pack(units, "\n\n", target, overlap)...)
		units = nil
		out = append(out, pack(splitSentences(para), " ", target, overlap)...)
	}
	return append(out, pack(units, "\n\n", target, overlap)...)
}

// pack greedily joins units with sep until the next one would exceed
// target. Each new chunk starts with the overlap tail of the previous one.
func pack(units []string, sep string, target, overlap int) []string {
	var out []string
	var cur strings.Builder
	tokens := 0

	for _, u := range units {
		ut := EstimateTokens(u)
		if tokens > 0 && tokens+ut > target {
			out = append(out, cur.String())
			tail := overlapTail(cur.String(), overlap)
			cur.Reset()
			tokens = 0
			if tail != "" {
				cur.WriteString(tail)
				tokens = EstimateTokens(tail)
			}
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(u)
		tokens += ut
	}
	if tokens > 0 {
		out = append(out, cur.String())
	}
	return out
}

func splitByParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences breaks after '.', '!' or '?' followed by a space.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// overlapTail returns roughly the last n tokens of text, or "" when text is
// not longer than that.
func overlapTail(text string, n int) string {
	words := strings.Fields(text)
	keep := int(float64(n) / tokensPerWord)
	if keep <= 0 || len(words) <= keep {
		return ""
	}
	return strings.Join(words[len(words)-keep:], " ")
}

func copyBreadcrumb(bc []string) []string {
	if len(bc) == 0 {
		return nil
	}
	return append([]string(nil), bc...)
}
