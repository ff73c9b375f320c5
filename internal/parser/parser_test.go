package parser

import (
	"strings"
	"testing"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"a.txt", false},
		{"A.MD", false},
		{"notes.markdown", false},
		{"data.csv", false},
		{"page.htm", false},
		{"page.html", false},
		{"paper.pdf", false},
		{"report.docx", false},
		{"image.png", true},
		{"noext", true},
	}
	for _, tt := range tests {
		p, err := ForFile(tt.filename, Options{})
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q) err = %v, wantErr %v", tt.filename, err, tt.wantErr)
		}
		if !tt.wantErr && p == nil {
			t.Errorf("ForFile(%q) returned nil parser", tt.filename)
		}
		if IsSupportedExtension(tt.filename) == tt.wantErr {
			t.Errorf("IsSupportedExtension(%q) = %v", tt.filename, !tt.wantErr)
		}
	}
}

func TestForFile_PDFFallbackOption(t *testing.T) {
	p, err := ForFile("x.pdf", Options{PDFFallback: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pdf, ok := p.(*PDFParser)
	if !ok || !pdf.FallbackPdftotext {
		t.Errorf("expected PDF parser with fallback enabled, got %#v", p)
	}
}

func TestSupportedExtensionsSorted(t *testing.T) {
	exts := SupportedExtensions()
	for i := 1; i < len(exts); i++ {
		if exts[i-1] > exts[i] {
			t.Fatalf("extensions not sorted: %v", exts)
		}
	}
}

func TestSectionBuilder_PopsToParentLevel(t *testing.T) {
	b := newSectionBuilder("doc")
	b.heading(1, "A")
	b.heading(2, "A.1")
	b.text("deep")
	b.heading(3, "A.1.a")
	b.heading(2, "A.2")
	b.heading(1, "B")
	tree := b.tree("doc")

	if len(tree.Children) != 2 {
		t.Fatalf("expected 2 top-level sections, got %d", len(tree.Children))
	}
	a := tree.Children[0]
	if len(a.Children) != 2 || a.Children[1].Title != "A.2" {
		t.Fatalf("unexpected children under A: %+v", a.Children)
	}
	if a.Children[0].Text != "deep" {
		t.Errorf("A.1 text = %q, want %q", a.Children[0].Text, "deep")
	}
	if len(a.Children[0].Children) != 1 {
		t.Errorf("expected A.1.a under A.1")
	}
}

func TestHTMLParser_Sections(t *testing.T) {
	input := `<html><head><title>Guide</title><style>p{}</style></head><body>
<nav><p>skip me</p></nav>
<h1>Install</h1><p>Run the <b>installer</b>.</p>
<h2>Linux</h2><ul><li>apt</li><li>dnf</li></ul>
<h1>Use</h1><p>Start it.</p><script>var x;</script>
</body></html>`
	tree, err := (&HTMLParser{}).Parse(strings.NewReader(input), "guide.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "Guide" {
		t.Errorf("title = %q, want %q", tree.Title, "Guide")
	}
	if len(tree.Children) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(tree.Children))
	}
	install := tree.Children[0]
	if install.Text != "Run the installer." {
		t.Errorf("install text = %q", install.Text)
	}
	if len(install.Children) != 1 || install.Children[0].Text != "apt\n\ndnf" {
		t.Errorf("linux section = %+v", install.Children)
	}
	for _, n := range tree.Children {
		if strings.Contains(n.Text, "skip me") || strings.Contains(n.Text, "var x") {
			t.Errorf("non-content element leaked into %q", n.Text)
		}
	}
}

func TestCSVParser_Batches(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("name,qty\n")
	for i := 0; i < 25; i++ {
		sb.WriteString("widget,1\n")
	}
	tree, err := (&CSVParser{}).Parse(strings.NewReader(sb.String()), "stock.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "stock" {
		t.Errorf("title = %q", tree.Title)
	}
	if len(tree.Children) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(tree.Children))
	}
	if tree.Children[0].Title != "Rows 2-21" || tree.Children[1].Title != "Rows 22-26" {
		t.Errorf("batch titles = %q, %q", tree.Children[0].Title, tree.Children[1].Title)
	}
	if !strings.Contains(tree.Children[0].Text, "name: widget, qty: 1") {
		t.Errorf("row formatting wrong: %q", tree.Children[0].Text)
	}
}

func TestCSVParser_RaggedRows(t *testing.T) {
	tree, err := (&CSVParser{}).Parse(strings.NewReader("a,b\n1,2,3\n4\n"), "r.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := tree.Children[0].Text
	if !strings.Contains(text, "a: 1, b: 2, 3") || !strings.Contains(text, "a: 4\n") {
		t.Errorf("ragged rows = %q", text)
	}
}
