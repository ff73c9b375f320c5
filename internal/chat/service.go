// Package chat answers questions against a user's documents and keeps the
// conversation history.
package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgallion1/docchat/internal/answer"
	"github.com/dgallion1/docchat/internal/llm"
	"github.com/dgallion1/docchat/internal/source"
	"github.com/dgallion1/docchat/internal/store"
)

// Completer is the model call the service depends on.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (llm.Reply, error)
}

// Options tunes retrieval and history.
type Options struct {
	TopK         int // sources retrieved per question
	HistoryTurns int // prior question/answer pairs sent to the model
	ExcerptBytes int
	// Wait overrides the retry backoff. Nil uses llm.Backoff.
	Wait func(attempt int) time.Duration
}

type Service struct {
	store *store.Store
	llm   Completer
	log   *slog.Logger
	opts  Options
}

func NewService(st *store.Store, c Completer, log *slog.Logger, opts Options) *Service {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.ExcerptBytes <= 0 {
		opts.ExcerptBytes = 300
	}
	return &Service{store: st, llm: c, log: log, opts: opts}
}

// AskRequest is one question. An empty SessionID starts a new session.
type AskRequest struct {
	UserID    string
	SessionID string
	Question  string
}

// Answer is the stored reply together with its parsed form.
type Answer struct {
	Session  store.Session    `json:"session"`
	Message  store.Message    `json:"message"`
	Document *answer.Document `json:"document"`
	Sources  source.Set       `json:"sources"`
	// Unresolved lists cited numbers with no matching source.
	Unresolved []int `json:"unresolved_citations,omitempty"`
}

// Ask retrieves sources, asks the model, and records both turns.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	question, err := ValidateQuestion(req.Question)
	if err != nil {
		return nil, err
	}

	sess, err := s.session(ctx, req.UserID, req.SessionID, question)
	if err != nil {
		return nil, err
	}
	log := s.log.With("session_id", sess.ID, "user_id", req.UserID)
	if looksLikeInjection(question) {
		log.Warn("question resembles prompt injection")
	}

	history, err := s.history(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	hits, err := s.store.Search(ctx, req.UserID, question, s.opts.TopK, s.opts.ExcerptBytes)
	if err != nil {
		return nil, err
	}
	excerpts := make([]llm.Excerpt, len(hits))
	for i, h := range hits {
		excerpts[i] = llm.Excerpt{Filename: h.Source.Filename, Heading: h.Heading, Text: h.Text}
	}
	sources := store.Sources(hits)

	llmReq := llm.Request{
		System:   llm.SystemPrompt,
		Turns:    history,
		Question: llm.BuildQuestion(question, excerpts),
	}
	reply, err := llm.Retry(ctx, log, s.opts.Wait, func(ctx context.Context) (llm.Reply, error) {
		return s.llm.Complete(ctx, llmReq)
	})
	if err != nil {
		return nil, err
	}

	saved, err := s.store.AppendMessages(ctx, sess.ID,
		store.Message{Role: store.RoleUser, Content: question},
		store.Message{Role: store.RoleAssistant, Content: reply.Text, Sources: sources},
	)
	if err != nil {
		return nil, err
	}
	sess.MessageCount += len(saved)

	doc := answer.Parse(reply.Text)
	unresolved := unresolvedCitations(doc, sources)
	log.Info("question answered",
		"sources", len(sources),
		"citations", len(doc.Citations()),
		"unresolved_citations", len(unresolved),
		"input_tokens", reply.InputTokens,
		"output_tokens", reply.OutputTokens,
	)

	return &Answer{
		Session:    sess,
		Message:    saved[1],
		Document:   doc,
		Sources:    sources,
		Unresolved: unresolved,
	}, nil
}

func (s *Service) session(ctx context.Context, userID, id, question string) (store.Session, error) {
	if id == "" {
		return s.store.CreateSession(ctx, userID, sessionTitle(question))
	}
	return s.store.GetSession(ctx, userID, id)
}

func (s *Service) history(ctx context.Context, sessionID string) ([]llm.Turn, error) {
	if s.opts.HistoryTurns <= 0 {
		return nil, nil
	}
	msgs, err := s.store.Messages(ctx, sessionID, s.opts.HistoryTurns*2)
	if err != nil {
		return nil, err
	}
	turns := make([]llm.Turn, len(msgs))
	for i, m := range msgs {
		turns[i] = llm.Turn{Role: string(m.Role), Text: m.Content}
	}
	return turns, nil
}

// Entry is a stored message with its reply parsed. User messages carry no
// document.
type Entry struct {
	store.Message
	Document *answer.Document `json:"document,omitempty"`
}

// History returns a session's messages, re-parsing each assistant reply.
func (s *Service) History(ctx context.Context, userID, sessionID string) (store.Session, []Entry, error) {
	sess, err := s.store.GetSession(ctx, userID, sessionID)
	if err != nil {
		return store.Session{}, nil, err
	}
	msgs, err := s.store.Messages(ctx, sessionID, 0)
	if err != nil {
		return store.Session{}, nil, err
	}
	entries := make([]Entry, len(msgs))
	for i, m := range msgs {
		entries[i] = Entry{Message: m}
		if m.Role == store.RoleAssistant {
			entries[i].Document = answer.Parse(m.Content)
		}
	}
	return sess, entries, nil
}

func unresolvedCitations(doc *answer.Document, set source.Set) []int {
	var out []int
	for _, n := range doc.Citations() {
		if _, ok := set.Lookup(n); !ok {
			out = append(out, n)
		}
	}
	return out
}
