package answer

import (
	"regexp"
	"strings"
)

var (
	// bulletRe matches a single bullet marker followed by whitespace.
	bulletRe = regexp.MustCompile(`^[*•-]\s+(.*)$`)
	// nestedRe matches a doubled bullet marker ("* *", "--", "• -").
	nestedRe   = regexp.MustCompile(`^[*•-]\s*[*•-]\s+(.*)$`)
	plusRe     = regexp.MustCompile(`^\+\s+(.*)$`)
	numberedRe = regexp.MustCompile(`^([0-9]+)\.\s+(.*)$`)
)

// classified is one line after classification, before inline tokenizing.
type classified struct {
	kind    Kind
	label   string // literal digits of a numbered item
	content string // trimmed, marker-stripped text
}

// classifyLine assigns a block kind to one line. The checks run in a fixed
// order and the first match wins; bullet headers must be tested before
// nested items, and both before plain bullets.
func classifyLine(line string) classified {
	t := strings.TrimSpace(line)
	if t == "" {
		return classified{kind: KindSpacer}
	}

	if m := bulletRe.FindStringSubmatch(t); m != nil {
		rest := strings.TrimSpace(m[1])
		if _, ok := leadingBold(rest); ok {
			return classified{kind: KindBulletHeader, content: rest}
		}
	}
	if m := nestedRe.FindStringSubmatch(t); m != nil {
		return classified{kind: KindNestedItem, content: strings.TrimSpace(m[1])}
	}
	if m := bulletRe.FindStringSubmatch(t); m != nil {
		return classified{kind: KindBulletItem, content: strings.TrimSpace(m[1])}
	}
	if m := plusRe.FindStringSubmatch(t); m != nil {
		return classified{kind: KindPlusItem, content: strings.TrimSpace(m[1])}
	}
	if m := numberedRe.FindStringSubmatch(t); m != nil {
		return classified{kind: KindNumberedItem, label: m[1], content: strings.TrimSpace(m[2])}
	}
	if end, ok := leadingBold(t); ok && end == len(t) {
		return classified{kind: KindHeader, content: t}
	}
	return classified{kind: KindParagraph, content: t}
}

// splitLines breaks text on \n, \r\n or \r. A terminator at the very end
// does not open another line, so "" has no lines and "\n\n" has two.
func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			lines = append(lines, text[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, text[start:i])
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
