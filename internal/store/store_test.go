package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docchat/internal/doctree"
	"github.com/dgallion1/docchat/internal/source"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func saveDoc(t *testing.T, s *Store, userID, id, filename, hash string, texts ...string) {
	t.Helper()
	chunks := make([]doctree.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = doctree.Chunk{Text: text, Index: i, Breadcrumb: []string{"Section"}}
	}
	doc := Document{ID: id, UserID: userID, Filename: filename, ContentHash: hash}
	if err := s.SaveDocument(context.Background(), doc, chunks); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
}

func TestOpenTwiceKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	saveDoc(t, s, "u1", "d1", "a.txt", "h1", "persisted text")
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if _, err := s2.GetDocument(context.Background(), "u1", "d1"); err != nil {
		t.Errorf("document lost after reopen: %v", err)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveDoc(t, s, "u1", "d1", "guide.md", "hash-1", "first chunk", "second chunk")

	doc, err := s.FindByHash(ctx, "u1", "hash-1")
	if err != nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if doc.ID != "d1" || doc.ChunkCount != 2 || doc.Filename != "guide.md" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if _, err := s.FindByHash(ctx, "u2", "hash-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user's hash lookup err = %v, want ErrNotFound", err)
	}

	docs, err := s.ListDocuments(ctx, "u1")
	if err != nil || len(docs) != 1 {
		t.Fatalf("ListDocuments = %v, %v", docs, err)
	}

	if _, err := s.DeleteDocument(ctx, "u2", "d1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete by other user err = %v, want ErrNotFound", err)
	}
	n, err := s.DeleteDocument(ctx, "u1", "d1")
	if err != nil || n != 2 {
		t.Fatalf("DeleteDocument = %d, %v; want 2 chunks", n, err)
	}
	if _, err := s.GetDocument(ctx, "u1", "d1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDocument after delete err = %v", err)
	}
	hits, err := s.Search(ctx, "u1", "chunk", 5, 100)
	if err != nil || len(hits) != 0 {
		t.Errorf("search after delete = %v, %v; want empty", hits, err)
	}
}

func TestDuplicateHashRejected(t *testing.T) {
	s := newTestStore(t)
	saveDoc(t, s, "u1", "d1", "a.txt", "same", "text")
	err := s.SaveDocument(context.Background(), Document{ID: "d2", UserID: "u1", Filename: "b.txt", ContentHash: "same"}, nil)
	if err == nil {
		t.Error("expected unique constraint error for duplicate content hash")
	}
}

func TestSearchRanksAndScopesByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveDoc(t, s, "u1", "d1", "install.md", "h1",
		"Install the agent with the package manager. The agent starts on boot.",
		"Configure logging levels in the settings file.")
	saveDoc(t, s, "u1", "d2", "faq.txt", "h2", "The agent is mentioned once here.")
	saveDoc(t, s, "u2", "d3", "private.txt", "h3", "agent agent agent")

	hits, err := s.Search(ctx, "u1", "How do I install the agent?", 5, 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("no hits")
	}
	if !strings.HasPrefix(hits[0].Text, "Install the agent") || hits[0].Heading != "Section" {
		t.Errorf("hit text/heading = %q / %q", hits[0].Text, hits[0].Heading)
	}
	set := Sources(hits)
	if len(set) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(set), set)
	}
	if set[0].DocID != "d1" || set[0].ChunkIndex != 0 {
		t.Errorf("best match = %+v, want d1 chunk 0", set[0])
	}
	for _, src := range set {
		if src.DocID == "d3" {
			t.Error("search leaked another user's document")
		}
		if src.Score <= 0 || src.Score >= 1 {
			t.Errorf("score %v outside (0,1)", src.Score)
		}
		if len(src.Excerpt) > 23 {
			t.Errorf("excerpt %q longer than limit", src.Excerpt)
		}
	}
	if set[0].Score < set[1].Score {
		t.Errorf("results not ordered by score: %v then %v", set[0].Score, set[1].Score)
	}
	if set[0].ID != "d1:0" {
		t.Errorf("ID = %q, want d1:0", set[0].ID)
	}
}

func TestSearchIgnoresQuerySyntax(t *testing.T) {
	s := newTestStore(t)
	saveDoc(t, s, "u1", "d1", "a.txt", "h1", "quoted words survive")

	for _, q := range []string{`"unbalanced`, "NEAR(", "a OR", "***", ""} {
		if _, err := s.Search(context.Background(), "u1", q, 5, 50); err != nil {
			t.Errorf("Search(%q) error: %v", q, err)
		}
	}
}

func TestFTSQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"What is the agent?", `"agent"`},
		{"Agent agent AGENT", `"agent"`},
		{"v2 setup-guide", `"v2" OR "setup" OR "guide"`},
		{`he said "hi" x`, `"he" OR "said" OR "hi"`},
	}
	for _, tt := range tests {
		if got := ftsQuery(tt.in); got != tt.want {
			t.Errorf("ftsQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeBM25(t *testing.T) {
	if got := normalizeBM25(0); got != 0 {
		t.Errorf("normalizeBM25(0) = %v", got)
	}
	if got := normalizeBM25(2); got != 0 {
		t.Errorf("positive raw score should map to 0, got %v", got)
	}
	a, b := normalizeBM25(-1), normalizeBM25(-3)
	if a != 0.5 || b <= a || b >= 1 {
		t.Errorf("normalizeBM25(-1)=%v normalizeBM25(-3)=%v", a, b)
	}
}

func TestSessionsAndMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "u1", "Install questions")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	srcs := source.Set{{ID: "d1:0", DocID: "d1", Filename: "install.md", Score: 0.7}}
	got, err := s.AppendMessages(ctx, sess.ID,
		Message{Role: RoleUser, Content: "how?"},
		Message{Role: RoleAssistant, Content: "**Steps:**\n* * run [1]", Sources: srcs},
	)
	if err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}
	if got[0].Sequence != 1 || got[1].Sequence != 2 {
		t.Errorf("sequences = %d, %d", got[0].Sequence, got[1].Sequence)
	}
	if _, err := s.AppendMessages(ctx, sess.ID, Message{Role: RoleUser, Content: "and then?"}); err != nil {
		t.Fatalf("second append: %v", err)
	}

	all, err := s.Messages(ctx, sess.ID, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("Messages = %d, %v", len(all), err)
	}
	if all[1].Sources[0].Filename != "install.md" {
		t.Errorf("sources not round-tripped: %+v", all[1].Sources)
	}
	if all[0].Sources == nil || len(all[0].Sources) != 0 {
		t.Errorf("user message sources = %#v, want empty set", all[0].Sources)
	}

	lastTwo, err := s.Messages(ctx, sess.ID, 2)
	if err != nil || len(lastTwo) != 2 || lastTwo[0].Sequence != 2 || lastTwo[1].Sequence != 3 {
		t.Fatalf("Messages(last=2) = %+v, %v", lastTwo, err)
	}

	fetched, err := s.GetSession(ctx, "u1", sess.ID)
	if err != nil || fetched.MessageCount != 3 || fetched.Title != "Install questions" {
		t.Errorf("GetSession = %+v, %v", fetched, err)
	}
	if _, err := s.GetSession(ctx, "u2", sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user's GetSession err = %v", err)
	}
}

func TestAppendToMissingSession(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AppendMessages(context.Background(), "nope", Message{Role: RoleUser, Content: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListAndDeleteSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older, _ := s.CreateSession(ctx, "u1", "older")
	newer, _ := s.CreateSession(ctx, "u1", "newer")
	s.CreateSession(ctx, "u2", "someone else")

	// Activity moves a session to the front.
	if _, err := s.AppendMessages(ctx, older.ID, Message{Role: RoleUser, Content: "bump"}); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListSessions(ctx, "u1", 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListSessions = %+v, %v", list, err)
	}
	if list[0].ID != older.ID {
		t.Errorf("first session = %q, want the recently active %q", list[0].Title, "older")
	}

	if err := s.DeleteSession(ctx, "u2", newer.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user delete err = %v", err)
	}
	if err := s.DeleteSession(ctx, "u1", older.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	msgs, err := s.Messages(ctx, older.ID, 0)
	if err != nil || len(msgs) != 0 {
		t.Errorf("messages survived session delete: %d, %v", len(msgs), err)
	}
	if !strings.Contains(ErrNotFound.Error(), "not found") {
		t.Error("unexpected sentinel text")
	}
}
