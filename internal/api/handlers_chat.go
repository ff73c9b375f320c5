package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dgallion1/docchat/internal/answer"
	"github.com/dgallion1/docchat/internal/chat"
	"github.com/dgallion1/docchat/internal/llm"
	"github.com/dgallion1/docchat/internal/render"
	"github.com/dgallion1/docchat/internal/source"
	"github.com/dgallion1/docchat/internal/store"
	"github.com/go-chi/chi/v5"
)

// maxJSONBody bounds format and chat request bodies.
const maxJSONBody = 1 << 20

type formatRequest struct {
	Text    string     `json:"text"`
	Sources source.Set `json:"sources"`
}

type formatResponse struct {
	Document  *answer.Document `json:"document"`
	Citations []int            `json:"citations"`
	HTML      string           `json:"html,omitempty"`
}

// handleFormat parses reply text into blocks without calling the model.
func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	doc := answer.Parse(req.Text)
	resp := formatResponse{Document: doc, Citations: doc.Citations()}
	if wantHTML(r) {
		resp.HTML = render.HTML(doc, req.Sources, s.renderOptions())
	}
	writeJSON(w, http.StatusOK, resp)
}

type chatRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type chatResponse struct {
	*chat.Answer
	Content string `json:"content"`
	HTML    string `json:"html,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	ans, err := s.chat.Ask(r.Context(), chat.AskRequest{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Question:  req.Question,
	})
	if err != nil {
		s.chatError(w, err)
		return
	}

	resp := chatResponse{Answer: ans, Content: ans.Message.Content}
	if wantHTML(r) {
		resp.HTML = render.HTML(ans.Document, ans.Sources, s.renderOptions())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) chatError(w http.ResponseWriter, err error) {
	var re *llm.RetryableError
	switch {
	case errors.Is(err, chat.ErrInvalidQuestion):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, "session not found", http.StatusNotFound)
	case errors.As(err, &re):
		s.log.Warn("llm unavailable", "status", re.StatusCode, "error", err)
		jsonError(w, "language model unavailable, try again later", http.StatusBadGateway)
	default:
		s.log.Error("chat failed", "error", err)
		jsonError(w, "failed to answer question", http.StatusInternalServerError)
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sessions, err := s.store.ListSessions(r.Context(), userID, limit)
	if err != nil {
		s.log.Error("list sessions failed", "user_id", userID, "error", err)
		jsonError(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type historyEntry struct {
	chat.Entry
	HTML string `json:"html,omitempty"`
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	sess, entries, err := s.chat.History(r.Context(), userID, sessionID)
	if err != nil {
		s.chatError(w, err)
		return
	}

	html := wantHTML(r)
	out := make([]historyEntry, len(entries))
	for i, e := range entries {
		out[i] = historyEntry{Entry: e}
		if html && e.Document != nil {
			out[i].HTML = render.HTML(e.Document, e.Sources, s.renderOptions())
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  sess,
		"messages": out,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.store.DeleteSession(r.Context(), userID, sessionID); err != nil {
		s.chatError(w, err)
		return
	}
	s.log.Info("session deleted", "session_id", sessionID, "user_id", userID)
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "deleted": true})
}

func (s *Server) renderOptions() render.Options {
	return render.Options{Policy: s.policy, ShowSources: true}
}

func wantHTML(r *http.Request) bool {
	return r.URL.Query().Get("render") == "html"
}

// decodeJSON reads a bounded JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
