// Package antitargeting maintains the hot-reloadable list of sites whose
// visitors must not see a given creative set.
package antitargeting

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/patrickwarner/eligibleads/internal/observability"
)

// State is the lifecycle stage of a Resource.
type State int32

const (
	Unloaded State = iota
	Loading
	Loaded
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// loaded pairs a parsed snapshot with the component manifest version it came from.
type loaded struct {
	snapshot        *Snapshot
	manifestVersion string
}

// Resource holds the current anti-targeting snapshot. Readers see either the
// previous or the next complete snapshot; a failed load keeps the previous
// one.
type Resource struct {
	id     string
	reader ComponentReader

	current atomic.Pointer[loaded]
	state   atomic.Int32

	// serializes Load and Unload
	mu sync.Mutex

	logger  *zap.Logger
	metrics observability.MetricsRegistry
}

// NewResource creates an unloaded resource that reads component id through reader.
func NewResource(id string, reader ComponentReader) *Resource {
	return &Resource{
		id:      id,
		reader:  reader,
		logger:  zap.NewNop(),
		metrics: observability.NewNoOpRegistry(),
	}
}

// SetLogger sets the logger used for load diagnostics.
func (r *Resource) SetLogger(logger *zap.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SetMetrics sets the registry used to count load outcomes.
func (r *Resource) SetMetrics(m observability.MetricsRegistry) {
	if m != nil {
		r.metrics = m
	}
}

// ID returns the component id.
func (r *Resource) ID() string { return r.id }

// Load reads and parses the component at manifestVersion and swaps it in.
// On failure the previous snapshot, if any, stays authoritative.
func (r *Resource) Load(ctx context.Context, manifestVersion string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Store(int32(Loading))
	snap, err := r.read(ctx, manifestVersion)
	if err != nil {
		if r.current.Load() != nil {
			r.state.Store(int32(Loaded))
		} else {
			r.state.Store(int32(Unloaded))
		}
		r.metrics.IncrementResourceLoads(r.id, "failure")
		r.logger.Warn("anti-targeting resource load failed; keeping previous snapshot",
			zap.String("resource_id", r.id),
			zap.String("manifest_version", manifestVersion),
			zap.Error(err))
		return err
	}

	r.current.Store(&loaded{snapshot: snap, manifestVersion: manifestVersion})
	r.state.Store(int32(Loaded))
	r.metrics.IncrementResourceLoads(r.id, "success")
	r.logger.Info("anti-targeting resource loaded",
		zap.String("resource_id", r.id),
		zap.String("manifest_version", manifestVersion),
		zap.Int("creative_sets", len(snap.CreativeSets)))
	return nil
}

func (r *Resource) read(ctx context.Context, manifestVersion string) (*Snapshot, error) {
	if r.reader == nil {
		return nil, fmt.Errorf("resource %s: no component reader", r.id)
	}
	data, err := r.reader.ReadComponent(ctx, r.id, manifestVersion)
	if err != nil {
		return nil, fmt.Errorf("read component %s: %w", r.id, err)
	}
	snap, err := CreateFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parse component %s: %w", r.id, err)
	}
	return snap, nil
}

// Unload drops the snapshot. Used when the component is unregistered.
func (r *Resource) Unload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.Store(nil)
	r.state.Store(int32(Unloaded))
	r.logger.Info("anti-targeting resource unloaded", zap.String("resource_id", r.id))
}

// State returns the current lifecycle stage.
func (r *Resource) State() State {
	return State(r.state.Load())
}

// IsLoaded reports whether a snapshot is available.
func (r *Resource) IsLoaded() bool {
	return r.current.Load() != nil
}

// ManifestVersion returns the manifest version of the current snapshot.
func (r *Resource) ManifestVersion() (string, bool) {
	cur := r.current.Load()
	if cur == nil {
		return "", false
	}
	return cur.manifestVersion, true
}

// Snapshot returns the current snapshot or nil. Callers evaluating many
// candidates should take the snapshot once so they see a single version.
func (r *Resource) Snapshot() *Snapshot {
	cur := r.current.Load()
	if cur == nil {
		return nil
	}
	return cur.snapshot
}

// GetSites returns the anti-targeted sites for creativeSetID, or nil when
// unloaded or unknown.
func (r *Resource) GetSites(creativeSetID string) []string {
	return r.Snapshot().Sites(creativeSetID)
}
