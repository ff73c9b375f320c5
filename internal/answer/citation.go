package answer

import (
	"regexp"
	"strconv"
)

// citationRe matches numeric source markers like [1] or [12].
var citationRe = regexp.MustCompile(`\[([0-9]+)\]`)

// extractCitations splits a plain fragment into text and citation spans.
// Characters outside the markers are kept exactly as written. A fragment
// without markers comes back as a single text span, an empty fragment as
// no spans at all.
func extractCitations(s string) []Span {
	if s == "" {
		return nil
	}

	var spans []Span
	pending := 0 // start of text not yet emitted
	for _, m := range citationRe.FindAllStringSubmatchIndex(s, -1) {
		n, err := strconv.Atoi(s[m[2]:m[3]])
		if err != nil {
			// Too many digits for an int: leave the marker in the text.
			continue
		}
		if m[0] > pending {
			spans = append(spans, Text(s[pending:m[0]]))
		}
		spans = append(spans, Citation(n))
		pending = m[1]
	}
	if pending < len(s) {
		spans = append(spans, Text(s[pending:]))
	}
	return spans
}
