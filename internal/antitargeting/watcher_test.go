package antitargeting

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/eligibleads/internal/db"
)

func TestWatcherHandle(t *testing.T) {
	reader := newMemoryReader()
	reader.set("1", `{"version":1,"sites":{"set":["https://a.com"]}}`)
	reader.set("2", `{"version":1,"sites":{"set":["https://b.com"]}}`)
	r := NewResource(testResourceID, reader)
	w := NewWatcher(r, nil, 0, "1", zap.NewNop())
	ctx := context.Background()

	w.Handle(ctx, ComponentUpdate{ID: testResourceID, ManifestVersion: "2", Action: ActionRegistered})
	v, _ := r.ManifestVersion()
	assert.Equal(t, "2", v)

	// other components are ignored
	w.Handle(ctx, ComponentUpdate{ID: "other", Action: ActionUnregistered})
	assert.True(t, r.IsLoaded())

	w.Handle(ctx, ComponentUpdate{ID: testResourceID, Action: ActionUnregistered})
	assert.False(t, r.IsLoaded())
	assert.True(t, w.unregistered())

	// locale changes do not resurrect an unregistered component
	w.Handle(ctx, ComponentUpdate{ID: testResourceID, Action: ActionLocaleChanged})
	assert.False(t, r.IsLoaded())

	w.Handle(ctx, ComponentUpdate{ID: testResourceID, ManifestVersion: "1", Action: ActionRegistered})
	assert.Equal(t, []string{"https://a.com"}, r.GetSites("set"))

	reader.set("1", `{"version":1,"sites":{"set":["https://c.com"]}}`)
	w.Handle(ctx, ComponentUpdate{ID: testResourceID, Action: ActionLocaleChanged})
	assert.Equal(t, []string{"https://c.com"}, r.GetSites("set"))
}

func TestWatcherSubscribesToComponentUpdates(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	store := db.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	reader := newMemoryReader()
	reader.set("1", `{"version":1,"sites":{"set":["https://a.com"]}}`)
	reader.set("2", `{"version":1,"sites":{"set":["https://b.com"]}}`)
	r := NewResource(testResourceID, reader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := NewWatcher(r, store, time.Hour, "1", zap.NewNop())
	require.NoError(t, w.Start(ctx))
	assert.Equal(t, Loaded, r.State())

	require.NoError(t, PublishComponentUpdate(ctx, store, ComponentUpdate{ID: testResourceID, ManifestVersion: "2", Action: ActionRegistered}))
	require.Eventually(t, func() bool {
		v, _ := r.ManifestVersion()
		return v == "2"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, PublishComponentUpdate(ctx, store, ComponentUpdate{ID: testResourceID, Action: ActionUnregistered}))
	require.Eventually(t, func() bool { return !r.IsLoaded() }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherTickerReloads(t *testing.T) {
	reader := newMemoryReader()
	reader.set("1", `{"version":1,"sites":{"set":["https://a.com"]}}`)
	r := NewResource(testResourceID, reader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := NewWatcher(r, nil, 20*time.Millisecond, "1", zap.NewNop())
	require.NoError(t, w.Start(ctx))

	reader.set("1", `{"version":1,"sites":{"set":["https://z.com"]}}`)
	require.Eventually(t, func() bool {
		s := r.GetSites("set")
		return len(s) == 1 && s[0] == "https://z.com"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPublishComponentUpdateNilStore(t *testing.T) {
	err := PublishComponentUpdate(context.Background(), nil, ComponentUpdate{})
	assert.ErrorIs(t, err, db.ErrNilRedisStore)
}
