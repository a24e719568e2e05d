package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/patrickwarner/eligibleads/internal/history"
)

// RecordVisitHandler handles POST /history with {"url", "visited_at"}.
func (s *Server) RecordVisitHandler(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history store unavailable")
		return
	}
	var v history.Visit
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil || v.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	if err := s.History.RecordVisit(r.Context(), v); err != nil {
		s.Logger.Error("record visit", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "record visit failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearHistoryHandler handles DELETE /history.
func (s *Server) ClearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history store unavailable")
		return
	}
	if err := s.History.Clear(r.Context()); err != nil {
		s.Logger.Error("clear history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "clear history failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
