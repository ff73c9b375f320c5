package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/dgallion1/docchat/internal/doctree"
	"github.com/dgallion1/docchat/internal/source"
)

// Document is an ingested file. Its text lives in chunks.
type Document struct {
	ID          string    `json:"doc_id"`
	UserID      string    `json:"user_id"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	ContentHash string    `json:"content_hash"`
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// SaveDocument stores a document and its chunks in one transaction.
func (s *Store) SaveDocument(ctx context.Context, doc Document, chunks []doctree.Chunk) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.ChunkCount = len(chunks)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, filename, title, content_hash, chunk_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.Filename, doc.Title, doc.ContentHash, doc.ChunkCount, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (doc_id, chunk_index, heading, page, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, doc.ID, c.Index, c.Heading(), c.PageStart, c.Text); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}
	return tx.Commit()
}

// FindByHash returns the user's document with the given content hash.
func (s *Store) FindByHash(ctx context.Context, userID, hash string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, filename, title, content_hash, chunk_count, created_at
		FROM documents WHERE user_id = ? AND content_hash = ?`, userID, hash)
	return scanDocument(row)
}

// GetDocument returns one of the user's documents.
func (s *Store) GetDocument(ctx context.Context, userID, docID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, filename, title, content_hash, chunk_count, created_at
		FROM documents WHERE user_id = ? AND id = ?`, userID, docID)
	return scanDocument(row)
}

// ListDocuments returns the user's documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, userID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, filename, title, content_hash, chunk_count, created_at
		FROM documents WHERE user_id = ?
		ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and its chunks. It returns the number
// of chunks removed.
func (s *Store) DeleteDocument(ctx context.Context, userID, docID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM documents WHERE id = ?`, docID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get document: %w", err)
	}

	// Chunks go first so the FTS delete trigger sees every row.
	res, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	n, _ := res.RowsAffected()
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}

// Hit is one search result: the citable source plus the full chunk text
// handed to the model.
type Hit struct {
	Source  source.Source
	Heading string
	Text    string
}

// Sources returns the citable view of hits, preserving order.
func Sources(hits []Hit) source.Set {
	set := make(source.Set, len(hits))
	for i, h := range hits {
		set[i] = h.Source
	}
	return set
}

// Search runs a full-text query over the user's chunks and returns the best
// matches, most relevant first. Scores are BM25 mapped into [0, 1).
// Excerpts are cut to excerptBytes.
func (s *Store) Search(ctx context.Context, userID, query string, limit, excerptBytes int) ([]Hit, error) {
	match := ftsQuery(query)
	if match == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.filename, c.chunk_index, c.heading, c.text, bm25(chunks_fts, 0.5, 1.0)
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.rowid
		JOIN documents d ON d.id = c.doc_id
		WHERE chunks_fts MATCH ? AND d.user_id = ?
		ORDER BY bm25(chunks_fts, 0.5, 1.0)
		LIMIT ?`, match, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var (
			h   Hit
			raw float64
		)
		src := &h.Source
		if err := rows.Scan(&src.DocID, &src.Filename, &src.ChunkIndex, &h.Heading, &h.Text, &raw); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		src.ID = fmt.Sprintf("%s:%d", src.DocID, src.ChunkIndex)
		src.Score = normalizeBM25(raw)
		src.Excerpt = source.Excerpt(h.Text, excerptBytes)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// normalizeBM25 maps FTS5's bm25(), where more negative is better, into
// [0, 1) with higher meaning more relevant.
func normalizeBM25(raw float64) float64 {
	r := -raw
	if r <= 0 {
		return 0
	}
	return r / (1 + r)
}

// ftsQuery turns free text into an FTS5 query that ORs every word as a
// quoted term, so punctuation in questions cannot break the syntax.
func ftsQuery(q string) string {
	words := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "do": true, "does": true, "for": true, "from": true,
	"how": true, "in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "the": true, "to": true, "was": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "why": true, "with": true,
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.UserID, &d.Filename, &d.Title, &d.ContentHash, &d.ChunkCount, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("scan document: %w", err)
	}
	return d, nil
}
