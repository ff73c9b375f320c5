package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docchat/internal/doctree"
)

// csvBatchRows is how many data rows go into one section.
const csvBatchRows = 20

// CSVParser turns each batch of rows into a section of "header: value"
// lines. The first record is the header row.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	if len(records) == 0 {
		return tree, nil
	}

	headers, rows := records[0], records[1:]
	for i := 0; i < len(rows); i += csvBatchRows {
		end := min(i+csvBatchRows, len(rows))

		var sb strings.Builder
		sb.WriteString("Headers: " + strings.Join(headers, ", ") + "\n\n")
		for _, row := range rows[i:end] {
			sb.WriteString(csvRow(headers, row))
			sb.WriteByte('\n')
		}

		tree.Children = append(tree.Children, &doctree.DocNode{
			// Row numbers are 1-based and count the header row.
			Title: fmt.Sprintf("Rows %d-%d", i+2, end+1),
			Text:  sb.String(),
			Page:  i + 2,
		})
	}

	return tree, nil
}

func csvRow(headers, row []string) string {
	cells := make([]string, len(row))
	for j, cell := range row {
		if j < len(headers) {
			cells[j] = headers[j] + ": " + cell
		} else {
			cells[j] = cell
		}
	}
	return strings.Join(cells, ", ")
}
