package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/patrickwarner/eligibleads/internal/antitargeting"
)

// ReloadRequest optionally changes the anti-targeting component. An empty
// body reloads the catalog and the current anti-targeting version.
type ReloadRequest struct {
	Action          string `json:"action,omitempty"`
	ManifestVersion string `json:"manifest_version,omitempty"`
}

// ReloadResponse reports what was reloaded.
type ReloadResponse struct {
	CatalogAds   int              `json:"catalog_ads"`
	CatalogError string           `json:"catalog_error,omitempty"`
	Published    bool             `json:"published"`
	Resource     ResourceResponse `json:"resource"`
}

// ReloadHandler handles POST /reload. It refreshes the catalog, then
// broadcasts the component update over Redis so every instance reloads. When
// Redis is not configured the update is applied locally.
func (s *Server) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	var req ReloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action == "" {
		req.Action = antitargeting.ActionLocaleChanged
	}
	switch req.Action {
	case antitargeting.ActionRegistered, antitargeting.ActionUnregistered, antitargeting.ActionLocaleChanged:
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	var resp ReloadResponse
	if err := s.ReloadCatalog(r.Context()); err != nil && !errors.Is(err, errCatalogUnavailable) {
		s.Logger.Error("catalog reload failed", zap.Error(err))
		resp.CatalogError = err.Error()
	}
	if s.Catalog != nil {
		resp.CatalogAds = s.Catalog.Len()
	}

	if s.Resource != nil {
		upd := antitargeting.ComponentUpdate{
			ID:              s.Resource.ID(),
			ManifestVersion: req.ManifestVersion,
			Action:          req.Action,
		}
		if err := antitargeting.PublishComponentUpdate(r.Context(), s.Store, upd); err == nil {
			resp.Published = true
		} else if s.Watcher != nil {
			s.Watcher.Handle(r.Context(), upd)
		} else {
			s.Logger.Warn("component update not applied", zap.Error(err))
		}
		resp.Resource = s.resourceStatus()
	}

	writeJSON(w, http.StatusOK, resp)
}
