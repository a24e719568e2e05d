package api

import (
	"net/http"
)

// ResourceResponse describes the anti-targeting resource.
type ResourceResponse struct {
	ID              string `json:"id"`
	State           string `json:"state"`
	ManifestVersion string `json:"manifest_version,omitempty"`
	CreativeSets    int    `json:"creative_sets"`
}

func (s *Server) resourceStatus() ResourceResponse {
	resp := ResourceResponse{ID: s.Resource.ID(), State: s.Resource.State().String()}
	if v, ok := s.Resource.ManifestVersion(); ok {
		resp.ManifestVersion = v
	}
	if snap := s.Resource.Snapshot(); snap != nil {
		resp.CreativeSets = len(snap.CreativeSets)
	}
	return resp
}

// ResourceHandler handles GET /resource.
func (s *Server) ResourceHandler(w http.ResponseWriter, r *http.Request) {
	if s.Resource == nil {
		writeError(w, http.StatusNotFound, "no anti-targeting resource configured")
		return
	}
	writeJSON(w, http.StatusOK, s.resourceStatus())
}
