package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.llm == nil || s.llm.Stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	resp := map[string]any{
		"model": s.llm.Model(),
		"stats": s.llm.Stats.Snapshot(),
	}
	if s.ingest != nil {
		resp["ingest_queue_depth"] = s.ingest.QueueDepth()
	}
	writeJSON(w, http.StatusOK, resp)
}
