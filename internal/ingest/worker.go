package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/docchat/internal/chunker"
	"github.com/dgallion1/docchat/internal/doctree"
	"github.com/dgallion1/docchat/internal/parser"
	"github.com/dgallion1/docchat/internal/store"
)

// Worker processes a single document job.
type Worker struct {
	store     *store.Store
	log       *slog.Logger
	chunkCfg  chunker.Config
	parserOpt parser.Options
}

func NewWorker(st *store.Store, log *slog.Logger, chunkCfg chunker.Config, parserOpt parser.Options) *Worker {
	return &Worker{
		store:     st,
		log:       log,
		chunkCfg:  chunkCfg,
		parserOpt: parserOpt,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "user_id", job.UserID)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, w.parserOpt)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.Fail("parsing", err)
		return
	}

	tree, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.Fail("parsing", fmt.Errorf("parse: %w", err))
		return
	}
	if job.Title != "" {
		tree.Title = job.Title
	}

	// Dedup on the parsed text so re-encoded copies of a file still match.
	hash := ContentHashHex([]byte(flattenTreeText(tree)))
	job.setContentHash(hash)

	if existing, ok := w.findDuplicate(ctx, job.UserID, hash, log); ok {
		log.Info("duplicate document, skipping", "existing_doc_id", existing)
		job.markDuplicate(existing)
		return
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks := chunker.ChunkTree(tree, w.chunkCfg)
	job.SetTotalChunks(len(chunks))
	if len(chunks) == 0 {
		log.Warn("no text extracted")
		job.Fail("chunking", errors.New("document contains no extractable text"))
		return
	}
	log.Info("chunked document", "chunks", len(chunks))

	// Phase 3: Index
	job.SetStatus(StatusIndexing, "indexing")
	doc := store.Document{
		ID:          job.DocID,
		UserID:      job.UserID,
		Filename:    job.Filename,
		Title:       tree.Title,
		ContentHash: hash,
	}
	if err := w.store.SaveDocument(ctx, doc, chunks); err != nil {
		// A concurrent upload of the same content may have won the race.
		if existing, ok := w.findDuplicate(ctx, job.UserID, hash, log); ok {
			log.Info("duplicate stored concurrently, skipping", "existing_doc_id", existing)
			job.markDuplicate(existing)
			return
		}
		log.Error("index failed", "error", err)
		job.Fail("indexing", fmt.Errorf("index: %w", err))
		return
	}
	job.SetIndexed(len(chunks))

	job.SetStatus(StatusCompleted, "done")
	log.Info("job completed", "chunks", len(chunks))
}

// findDuplicate looks up an existing document by content hash. Lookup
// failures are logged and treated as "not a duplicate".
func (w *Worker) findDuplicate(ctx context.Context, userID, hash string, log *slog.Logger) (string, bool) {
	doc, err := w.store.FindByHash(ctx, userID, hash)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn("dedup check failed, proceeding", "error", err)
		}
		return "", false
	}
	return doc.ID, true
}

// flattenTreeText concatenates all text in the tree in document order.
func flattenTreeText(tree *doctree.DocTree) string {
	var sb strings.Builder
	sb.WriteString(tree.Title)
	tree.Walk(func(n *doctree.DocNode, _ int) {
		if n.Title != "" {
			sb.WriteString("\n")
			sb.WriteString(n.Title)
		}
		if n.Text != "" {
			sb.WriteString("\n")
			sb.WriteString(n.Text)
		}
	})
	return sb.String()
}
