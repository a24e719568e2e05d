package antitargeting

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ResourceVersion is the manifest schema version this build understands.
// Manifests declaring any other version are rejected.
const ResourceVersion = 1

var (
	// ErrInvalidManifest wraps every structural problem with a manifest.
	ErrInvalidManifest = errors.New("invalid anti-targeting manifest")
	// ErrResourceVersionMismatch is returned when the manifest version differs from ResourceVersion.
	ErrResourceVersionMismatch = errors.New("anti-targeting resource version mismatch")
)

// Snapshot is one parsed manifest. It is immutable once returned from
// CreateFromValue; readers share it without locking.
type Snapshot struct {
	Version      int
	CreativeSets map[string][]string
}

// Sites returns the anti-targeted URLs for a creative set, or nil.
func (s *Snapshot) Sites(creativeSetID string) []string {
	if s == nil {
		return nil
	}
	return s.CreativeSets[creativeSetID]
}

// GetSites implements SiteLookup so a run can pin one snapshot for all candidates.
func (s *Snapshot) GetSites(creativeSetID string) []string {
	return s.Sites(creativeSetID)
}

// CreateFromJSON parses manifest bytes.
func CreateFromJSON(data []byte) (*Snapshot, error) {
	return CreateFromValue(json.RawMessage(data))
}

// CreateFromValue parses a manifest of the form
//
//	{"version": 1, "sites": {"<creative set id>": ["<url>", ...]}}
//
// Any deviation rejects the whole manifest; no partial snapshot is returned.
func CreateFromValue(raw json.RawMessage) (*Snapshot, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil || root == nil {
		return nil, fmt.Errorf("%w: root is not an object", ErrInvalidManifest)
	}

	versionRaw, ok := root["version"]
	if !ok {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidManifest)
	}
	var version int
	if err := json.Unmarshal(versionRaw, &version); err != nil || isNull(versionRaw) {
		return nil, fmt.Errorf("%w: version is not an integer", ErrInvalidManifest)
	}
	if version != ResourceVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrResourceVersionMismatch, version, ResourceVersion)
	}

	sitesRaw, ok := root["sites"]
	if !ok {
		return nil, fmt.Errorf("%w: missing sites", ErrInvalidManifest)
	}
	var sites map[string]json.RawMessage
	if err := json.Unmarshal(sitesRaw, &sites); err != nil || sites == nil {
		return nil, fmt.Errorf("%w: sites is not an object", ErrInvalidManifest)
	}

	sets := make(map[string][]string, len(sites))
	for creativeSetID, listRaw := range sites {
		if isNull(listRaw) {
			return nil, fmt.Errorf("%w: sites for %q is not a list", ErrInvalidManifest, creativeSetID)
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(listRaw, &entries); err != nil {
			return nil, fmt.Errorf("%w: sites for %q is not a list", ErrInvalidManifest, creativeSetID)
		}
		urls := make([]string, 0, len(entries))
		for i, entry := range entries {
			var url string
			if isNull(entry) || json.Unmarshal(entry, &url) != nil {
				return nil, fmt.Errorf("%w: sites for %q entry %d is not a string", ErrInvalidManifest, creativeSetID, i)
			}
			urls = append(urls, url)
		}
		sets[creativeSetID] = urls
	}
	return &Snapshot{Version: version, CreativeSets: sets}, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
