package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/patrickwarner/eligibleads/internal/engine"
	"github.com/patrickwarner/eligibleads/internal/logic/eligible"
	"github.com/patrickwarner/eligibleads/internal/middleware"
	"github.com/patrickwarner/eligibleads/internal/models"
)

// EligibleResponse lists the ads that would be considered for a request.
type EligibleResponse struct {
	Strategy eligible.Strategy `json:"strategy"`
	eligible.Result
}

func (s *Server) decodeServeRequest(w http.ResponseWriter, r *http.Request) (engine.ServeRequest, bool) {
	var req engine.ServeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	adType, ok := models.ParseAdType(string(req.AdType))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown ad_type")
		return req, false
	}
	req.AdType = adType
	s.resolveLocation(r, &req)
	return req, true
}

// EligibleHandler handles POST /eligible. It never records events.
func (s *Server) EligibleHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)
	req, ok := s.decodeServeRequest(w, r)
	if !ok {
		return
	}
	if isBot(r) {
		writeJSON(w, http.StatusOK, EligibleResponse{Strategy: s.Engine.Strategy(), Result: eligible.Result{Ads: []models.CreativeAd{}}})
		return
	}

	res, err := s.Engine.Eligible(r.Context(), req)
	if err != nil {
		logger.Error("eligible ads", zap.String("ad_type", string(req.AdType)), zap.Error(err))
		writeError(w, statusFor(err), "eligibility failed")
		return
	}
	if res.Ads == nil {
		res.Ads = []models.CreativeAd{}
	}
	writeJSON(w, http.StatusOK, EligibleResponse{Strategy: s.Engine.Strategy(), Result: res})
}

// ServeHandler handles POST /serve. No fill and bot traffic answer 204.
func (s *Server) ServeHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)
	req, ok := s.decodeServeRequest(w, r)
	if !ok {
		return
	}
	if isBot(r) {
		logger.Debug("bot traffic, no ad served", zap.String("user_agent", r.UserAgent()))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	served, err := s.Engine.ServeAd(r.Context(), req)
	if err != nil {
		logger.Error("serve ad", zap.String("ad_type", string(req.AdType)), zap.Error(err))
		writeError(w, statusFor(err), "serve failed")
		return
	}
	if served == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, served)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownAdType), errors.Is(err, models.ErrInvalidAdEvent):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrEngineClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
