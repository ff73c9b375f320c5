package api

import (
	"errors"
	"net/http"

	"github.com/dgallion1/docchat/internal/store"
	"github.com/go-chi/chi/v5"
)

// handleListDocuments lists all documents for a user.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	docs, err := s.store.ListDocuments(r.Context(), userID)
	if err != nil {
		s.log.Error("list documents failed", "user_id", userID, "error", err)
		jsonError(w, "failed to list documents", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleDeleteDocument deletes a document and its indexed chunks.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	docID := chi.URLParam(r, "docID")

	n, err := s.store.DeleteDocument(r.Context(), userID, docID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("delete document failed", "doc_id", docID, "error", err)
		jsonError(w, "failed to delete document", http.StatusInternalServerError)
		return
	}
	s.log.Info("document deleted", "doc_id", docID, "user_id", userID, "chunks", n)
	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":         docID,
		"chunks_deleted": n,
	})
}

// requireUser reads the user_id query parameter, writing a 400 when absent.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		jsonError(w, "user_id query parameter is required", http.StatusBadRequest)
		return "", false
	}
	return userID, true
}
