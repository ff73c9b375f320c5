// Package ingest runs uploaded files through parse, dedup, chunk and index
// on a bounded worker pool, tracking each upload as a Job.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of an ingestion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusChunking   JobStatus = "chunking"
	StatusIndexing   JobStatus = "indexing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Terminal reports whether no further transitions will happen.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusDupSkipped
}

// Job tracks the state of a single document ingestion.
type Job struct {
	mu sync.Mutex

	ID       string
	DocID    string
	UserID   string
	Filename string
	Title    string

	status        JobStatus
	phase         string
	progress      Progress
	contentHash   string
	existingDocID string
	createdAt     time.Time
	updatedAt     time.Time

	fileData []byte
	done     chan struct{}
}

// Progress tracks processing progress.
type Progress struct {
	TotalChunks   int      `json:"total_chunks"`
	ChunksIndexed int      `json:"chunks_indexed"`
	Errors        []string `json:"errors"`
}

// NewJob queues a file for userID. The document ID is derived from the
// user and the file bytes, so re-uploading identical bytes maps to the same
// document.
func NewJob(userID, filename, title string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		DocID:     ContentHashHex([]byte(userID + "\x00" + string(data)))[:16],
		UserID:    userID,
		Filename:  filename,
		Title:     title,
		status:    StatusQueued,
		phase:     "queued",
		createdAt: now,
		updatedAt: now,
		fileData:  data,
		done:      make(chan struct{}),
	}
}

// SetStatus updates job status atomically. Entering a terminal status
// releases the file bytes and closes Done.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = status
	j.phase = phase
	j.updatedAt = time.Now()
	if status.Terminal() {
		j.fileData = nil
		close(j.done)
	}
}

// Fail records err and marks the job failed during phase.
func (j *Job) Fail(phase string, err error) {
	j.AddError(err.Error())
	j.SetStatus(StatusFailed, phase)
}

// AddError records an error.
func (j *Job) AddError(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress.Errors = append(j.progress.Errors, msg)
	j.updatedAt = time.Now()
}

// SetTotalChunks records total chunk count.
func (j *Job) SetTotalChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress.TotalChunks = n
	j.updatedAt = time.Now()
}

// SetIndexed records how many chunks were written.
func (j *Job) SetIndexed(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress.ChunksIndexed = n
	j.updatedAt = time.Now()
}

func (j *Job) setContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.contentHash = h
}

func (j *Job) markDuplicate(existingDocID string) {
	j.mu.Lock()
	j.existingDocID = existingDocID
	j.mu.Unlock()
	j.SetStatus(StatusDupSkipped, "dedup")
}

// FileData returns the raw file bytes, or nil once the job has finished.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// Done is closed when the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) lastUpdate() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.updatedAt
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID            string    `json:"job_id"`
	DocID         string    `json:"doc_id"`
	UserID        string    `json:"user_id"`
	Status        JobStatus `json:"status"`
	Phase         string    `json:"phase"`
	Filename      string    `json:"filename"`
	Title         string    `json:"title,omitempty"`
	ContentHash   string    `json:"content_hash,omitempty"`
	ExistingDocID string    `json:"existing_doc_id,omitempty"`
	Progress      Progress  `json:"progress"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.progress.Errors...)
	return JobSnapshot{
		ID:            j.ID,
		DocID:         j.DocID,
		UserID:        j.UserID,
		Status:        j.status,
		Phase:         j.phase,
		Filename:      j.Filename,
		Title:         j.Title,
		ContentHash:   j.contentHash,
		ExistingDocID: j.existingDocID,
		Progress: Progress{
			TotalChunks:   j.progress.TotalChunks,
			ChunksIndexed: j.progress.ChunksIndexed,
			Errors:        errs,
		},
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes jobs idle for longer than the TTL and returns how many
// were dropped.
func (s *JobStore) Cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, job := range s.jobs {
		if now.Sub(job.lastUpdate()) > s.ttl {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
