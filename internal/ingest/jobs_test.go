package ingest

import (
	"errors"
	"testing"
	"time"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h := ContentHashHex([]byte{}); h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestNewJob_DocIDPerUser(t *testing.T) {
	a := NewJob("alice", "a.txt", "", []byte("same"))
	b := NewJob("alice", "b.txt", "", []byte("same"))
	c := NewJob("bob", "a.txt", "", []byte("same"))

	if a.ID == b.ID {
		t.Error("job IDs should be unique")
	}
	if a.DocID != b.DocID {
		t.Errorf("same user and bytes should share doc ID: %q vs %q", a.DocID, b.DocID)
	}
	if a.DocID == c.DocID {
		t.Error("different users should get different doc IDs")
	}
	if len(a.DocID) != 16 {
		t.Errorf("doc ID length = %d, want 16", len(a.DocID))
	}
	if s := a.Snapshot(); s.Status != StatusQueued || s.Phase != "queued" {
		t.Errorf("initial state = %s/%s", s.Status, s.Phase)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("u", "doc.md", "", []byte("x"))

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusParsing, "parsing"},
		{StatusChunking, "chunking"},
		{StatusIndexing, "indexing"},
		{StatusCompleted, "done"},
	}
	for _, tr := range transitions {
		job.SetStatus(tr.status, tr.phase)
		snap := job.Snapshot()
		if snap.Status != tr.status || snap.Phase != tr.phase {
			t.Errorf("got %s/%s, want %s/%s", snap.Status, snap.Phase, tr.status, tr.phase)
		}
	}

	select {
	case <-job.Done():
	default:
		t.Fatal("Done should be closed after completion")
	}
	if job.FileData() != nil {
		t.Error("file data should be released after completion")
	}
}

func TestJob_TerminalStatusIsFinal(t *testing.T) {
	job := NewJob("u", "doc.md", "", nil)
	job.SetStatus(StatusDupSkipped, "dedup")
	job.SetStatus(StatusParsing, "parsing")
	job.SetStatus(StatusFailed, "parsing")

	if s := job.Snapshot().Status; s != StatusDupSkipped {
		t.Errorf("status = %s, want %s", s, StatusDupSkipped)
	}
}

func TestJob_Fail(t *testing.T) {
	job := NewJob("u", "doc.md", "", nil)
	job.Fail("parsing", errors.New("bad input"))

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "parsing" {
		t.Errorf("got %s/%s", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 || snap.Progress.Errors[0] != "bad input" {
		t.Errorf("errors = %v", snap.Progress.Errors)
	}
}

func TestJob_Progress(t *testing.T) {
	job := NewJob("u", "doc.md", "", nil)
	job.SetTotalChunks(7)
	job.SetIndexed(7)

	p := job.Snapshot().Progress
	if p.TotalChunks != 7 || p.ChunksIndexed != 7 {
		t.Errorf("progress = %+v", p)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	job := NewJob("u", "doc.md", "", nil)
	if errs := job.Snapshot().Progress.Errors; errs == nil {
		t.Error("expected non-nil errors slice so JSON encodes []")
	}
}

func TestJob_SnapshotIsCopy(t *testing.T) {
	job := NewJob("u", "doc.md", "", nil)
	job.AddError("first")
	snap := job.Snapshot()
	job.AddError("second")
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("snapshot mutated: %v", snap.Progress.Errors)
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := NewJob("u", "doc.md", "", nil)
	store.Put(job)

	if got := store.Get(job.ID); got != job {
		t.Errorf("Get returned %v, want the stored job", got)
	}
	if store.Get("missing") != nil {
		t.Error("expected nil for unknown job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(time.Hour)
	old := NewJob("u", "old.md", "", nil)
	fresh := NewJob("u", "fresh.md", "", nil)
	store.Put(old)
	store.Put(fresh)

	now := time.Now()
	old.updatedAt = now.Add(-2 * time.Hour)

	if n := store.Cleanup(now); n != 1 {
		t.Errorf("Cleanup removed %d, want 1", n)
	}
	if store.Get(old.ID) != nil {
		t.Error("expired job should be evicted")
	}
	if store.Get(fresh.ID) == nil {
		t.Error("fresh job should remain")
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	if n := NewJobStore(time.Minute).Cleanup(time.Now()); n != 0 {
		t.Errorf("Cleanup on empty store removed %d", n)
	}
}
