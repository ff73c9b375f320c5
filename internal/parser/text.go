package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docchat/internal/doctree"
)

// TextParser splits plain text into blank-line separated paragraphs.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	var para []string
	lineNo, start := 0, 0

	emit := func() {
		if len(para) == 0 {
			return
		}
		tree.Children = append(tree.Children, &doctree.DocNode{
			Text: strings.Join(para, "\n"),
			Page: start,
		})
		para = para[:0]
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			emit()
			continue
		}
		if len(para) == 0 {
			start = lineNo
		}
		para = append(para, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	emit()

	return tree, nil
}
