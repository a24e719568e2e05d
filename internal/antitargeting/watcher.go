package antitargeting

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/eligibleads/internal/db"
)

// ComponentUpdateChannel is the Redis pub/sub channel carrying component notifications.
const ComponentUpdateChannel = "component-updates"

// Component update actions.
const (
	ActionRegistered    = "registered"
	ActionUnregistered  = "unregistered"
	ActionLocaleChanged = "locale_changed"
)

// ComponentUpdate is the notification published when a component changes.
type ComponentUpdate struct {
	ID              string `json:"id"`
	ManifestVersion string `json:"manifest_version,omitempty"`
	Action          string `json:"action"`
}

// PublishComponentUpdate broadcasts msg to every watcher.
func PublishComponentUpdate(ctx context.Context, store *db.RedisStore, msg ComponentUpdate) error {
	if store == nil || store.Client == nil {
		return db.ErrNilRedisStore
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal component update: %w", err)
	}
	return store.Client.Publish(ctx, ComponentUpdateChannel, payload).Err()
}

// Watcher keeps a Resource in sync with component notifications and
// periodically re-reads the current manifest version.
type Watcher struct {
	resource *Resource
	store    *db.RedisStore
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	version string
	removed bool
}

// NewWatcher creates a watcher for resource. initialVersion is used for the
// first load and for periodic reloads until a notification supplies another.
// store may be nil, in which case only the ticker drives reloads.
func NewWatcher(resource *Resource, store *db.RedisStore, interval time.Duration, initialVersion string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		resource: resource,
		store:    store,
		interval: interval,
		logger:   logger,
		version:  initialVersion,
	}
}

func (w *Watcher) currentVersion() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.version
}

func (w *Watcher) setVersion(v string) {
	w.mu.Lock()
	w.version = v
	w.removed = false
	w.mu.Unlock()
}

// Start performs the initial load, subscribes to notifications and starts the
// reload loop. It returns once the subscription is confirmed; the loop runs
// until ctx is canceled. A failed initial load is logged, not returned.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.resource.Load(ctx, w.currentVersion()); err != nil {
		w.logger.Warn("initial anti-targeting load failed", zap.Error(err))
	}

	var msgs <-chan ComponentUpdate
	if w.store != nil && w.store.Client != nil {
		sub := w.store.Client.Subscribe(ctx, ComponentUpdateChannel)
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			return fmt.Errorf("subscribe %s: %w", ComponentUpdateChannel, err)
		}
		out := make(chan ComponentUpdate)
		go func() {
			defer close(out)
			defer func() { _ = sub.Close() }()
			ch := sub.Channel()
			for {
				select {
				case <-ctx.Done():
					return
				case m, ok := <-ch:
					if !ok || m == nil {
						return
					}
					var upd ComponentUpdate
					if err := json.Unmarshal([]byte(m.Payload), &upd); err != nil {
						w.logger.Warn("bad component update payload", zap.Error(err))
						continue
					}
					select {
					case out <- upd:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		msgs = out
	}

	go w.loop(ctx, msgs)
	return nil
}

func (w *Watcher) loop(ctx context.Context, msgs <-chan ComponentUpdate) {
	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			if w.unregistered() {
				continue
			}
			_ = w.resource.Load(ctx, w.currentVersion())
		case upd, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			w.Handle(ctx, upd)
		}
	}
}

// unregistered reports whether the component was explicitly removed, in
// which case periodic reloads stop until it is registered again.
func (w *Watcher) unregistered() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removed
}

// Handle applies a single component update. Updates for other components are ignored.
func (w *Watcher) Handle(ctx context.Context, upd ComponentUpdate) {
	if upd.ID != w.resource.ID() {
		return
	}
	w.logger.Info("component update received",
		zap.String("resource_id", upd.ID),
		zap.String("action", upd.Action),
		zap.String("manifest_version", upd.ManifestVersion))

	switch upd.Action {
	case ActionRegistered:
		// a failed load is retried by the ticker with the new version
		w.setVersion(upd.ManifestVersion)
		_ = w.resource.Load(ctx, upd.ManifestVersion)
	case ActionUnregistered:
		w.mu.Lock()
		w.removed = true
		w.mu.Unlock()
		w.resource.Unload()
	case ActionLocaleChanged:
		if w.unregistered() {
			return
		}
		_ = w.resource.Load(ctx, w.currentVersion())
	default:
		w.logger.Warn("unknown component update action", zap.String("action", upd.Action))
	}
}
