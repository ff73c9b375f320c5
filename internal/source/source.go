// Package source describes the retrieval hits an answer can cite.
package source

import "fmt"

// Source is one retrieved chunk shown to the model as a numbered reference.
type Source struct {
	ID         string  `json:"id"`
	DocID      string  `json:"doc_id,omitempty"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"` // 0.0-1.0, higher is more similar
	Excerpt    string  `json:"excerpt"`
}

// Set is the ordered list of sources given to the model. Citation [N]
// refers to the N-th entry, counting from one.
type Set []Source

// Lookup returns the source a citation index refers to.
func (s Set) Lookup(index int) (Source, bool) {
	if index < 1 || index > len(s) {
		return Source{}, false
	}
	return s[index-1], true
}

// Label is the display name for citation index n. It does not check that
// n is in range.
func Label(n int) string {
	return fmt.Sprintf("Source %d", n)
}

// Policy decides how citations that point past the end of a Set are shown.
type Policy int

const (
	// Lenient shows every citation as a source reference, in range or not.
	Lenient Policy = iota
	// Strict shows out-of-range citations as their literal "[N]" text.
	Strict
)

// ParsePolicy maps a config value to a Policy. Unknown values are lenient.
func ParsePolicy(s string) Policy {
	if s == "strict" {
		return Strict
	}
	return Lenient
}

// Resolve reports whether citation index n should be rendered as a source
// reference under the policy, and the source it points at if any.
func (p Policy) Resolve(set Set, n int) (src Source, found, asReference bool) {
	src, found = set.Lookup(n)
	if p == Strict && !found {
		return Source{}, false, false
	}
	return src, found, true
}

// Excerpt shortens text to at most n bytes on a rune boundary, adding an
// ellipsis when anything was cut.
func Excerpt(text string, n int) string {
	if n <= 0 || len(text) <= n {
		return text
	}
	cut := n
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
