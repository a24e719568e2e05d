package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/patrickwarner/eligibleads/internal/middleware"
	"github.com/patrickwarner/eligibleads/internal/models"
)

// EventHandler handles POST /events with a JSON AdEvent body. Served events
// are recorded by /serve and are rejected here.
func (s *Server) EventHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	var ev models.AdEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	confirmation, ok := models.ParseConfirmationType(string(ev.ConfirmationType))
	if !ok || confirmation == models.ConfirmationServed {
		s.Metrics.IncrementEvent("bad_event")
		writeError(w, http.StatusBadRequest, "unknown confirmation_type")
		return
	}
	ev.ConfirmationType = confirmation
	if adType, ok := models.ParseAdType(string(ev.AdType)); ok {
		ev.AdType = adType
	}

	if err := s.Engine.RecordEvent(r.Context(), ev); err != nil {
		logger.Warn("record event", zap.String("confirmation_type", string(ev.ConfirmationType)), zap.Error(err))
		status := statusFor(err)
		if status == http.StatusBadRequest {
			s.Metrics.IncrementEvent("bad_event")
		}
		writeError(w, status, "event rejected")
		return
	}
	logger.Info("ad event",
		zap.String("placement_id", ev.PlacementID),
		zap.String("creative_instance_id", ev.CreativeInstanceID),
		zap.String("confirmation_type", string(ev.ConfirmationType)))
	w.WriteHeader(http.StatusNoContent)
}
