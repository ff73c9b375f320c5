package answer

import "strings"

const boldDelim = "**"

// tokenizeInline splits line content into text, bold and citation spans.
// Bold spans are non-greedy: the first "**" after an opening "**" closes
// the span, and a ':' directly after the closing pair belongs to the bold
// text. An opening pair without a closing pair is left as plain text.
func tokenizeInline(s string) []Span {
	spans := []Span{}
	pos := 0
	for pos < len(s) {
		open := strings.Index(s[pos:], boldDelim)
		if open < 0 {
			break
		}
		open += pos
		inner := open + len(boldDelim)
		closeAt := strings.Index(s[inner:], boldDelim)
		if closeAt < 0 {
			break
		}
		closeAt += inner

		spans = append(spans, extractCitations(s[pos:open])...)

		end := closeAt + len(boldDelim)
		text := s[inner:closeAt]
		if end < len(s) && s[end] == ':' {
			text += ":"
			end++
		}
		spans = append(spans, Bold(text))
		pos = end
	}
	return append(spans, extractCitations(s[pos:])...)
}

// leadingBold reports whether s opens with a complete bold span, optionally
// followed by a colon, and returns the index just past it.
func leadingBold(s string) (int, bool) {
	if !strings.HasPrefix(s, boldDelim) {
		return 0, false
	}
	closeAt := strings.Index(s[len(boldDelim):], boldDelim)
	if closeAt < 0 {
		return 0, false
	}
	end := len(boldDelim) + closeAt + len(boldDelim)
	if end < len(s) && s[end] == ':' {
		end++
	}
	return end, true
}
