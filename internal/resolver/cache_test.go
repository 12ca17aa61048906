package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tessera-pm/tessera/internal/catalog"
	"github.com/tessera-pm/tessera/internal/ledger"
	"github.com/tessera-pm/tessera/internal/tenancy"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, ttl), mr
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t, time.Minute)
	tenantID := uuid.New()
	userID := uuid.New()

	_, ok, err := cache.Fetch(ctx, tenantID, userID, nil)
	require.NoError(t, err)
	require.False(t, ok)

	codes := []catalog.Code{"project.read", "task.read"}
	require.NoError(t, cache.Store(ctx, tenantID, userID, nil, codes))

	got, ok, err := cache.Fetch(ctx, tenantID, userID, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, codes, got)
}

func TestCacheKeysSeparateProjectContexts(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t, time.Minute)
	tenantID := uuid.New()
	userID := uuid.New()
	projectID := uuid.New()

	require.NoError(t, cache.Store(ctx, tenantID, userID, nil, []catalog.Code{"project.read"}))
	require.NoError(t, cache.Store(ctx, tenantID, userID, &projectID, []catalog.Code{"task.update"}))

	got, ok, err := cache.Fetch(ctx, tenantID, userID, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []catalog.Code{"project.read"}, got)

	got, ok, err = cache.Fetch(ctx, tenantID, userID, &projectID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []catalog.Code{"task.update"}, got)
}

func TestCacheKeysSeparateTenants(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t, time.Minute)
	userID := uuid.New()
	tenantA := uuid.New()
	tenantB := uuid.New()

	require.NoError(t, cache.Store(ctx, tenantA, userID, nil, []catalog.Code{"audit.view"}))

	_, ok, err := cache.Fetch(ctx, tenantB, userID, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheInvalidateBumpsVersion(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t, time.Minute)
	tenantID := uuid.New()
	userID := uuid.New()
	projectID := uuid.New()

	require.NoError(t, cache.Store(ctx, tenantID, userID, nil, []catalog.Code{"project.read"}))
	require.NoError(t, cache.Store(ctx, tenantID, userID, &projectID, []catalog.Code{"task.update"}))

	require.NoError(t, cache.Invalidate(ctx, tenantID, userID))

	// Every cached context for the user misses after one bump.
	_, ok, err := cache.Fetch(ctx, tenantID, userID, nil)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = cache.Fetch(ctx, tenantID, userID, &projectID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheEntriesExpire(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t, time.Second)
	tenantID := uuid.New()
	userID := uuid.New()

	require.NoError(t, cache.Store(ctx, tenantID, userID, nil, []catalog.Code{"project.read"}))
	mr.FastForward(2 * time.Second)

	_, ok, err := cache.Fetch(ctx, tenantID, userID, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheNilIsInert(t *testing.T) {
	ctx := context.Background()
	var cache *Cache

	_, ok, err := cache.Fetch(ctx, uuid.New(), uuid.New(), nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, cache.Store(ctx, uuid.New(), uuid.New(), nil, nil))
	require.NoError(t, cache.Invalidate(ctx, uuid.New(), uuid.New()))
}

func TestResolveServedFromCacheUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t, time.Minute)
	store := newStubResolverStore()
	tenantID := uuid.New()
	userID := uuid.New()
	store.put(tenantID, userID, ledger.KindSystem, nil, "project.read")

	res := New(store, tenancy.NewGuard(nil, nil), cache, nil, nil)
	actor := tenancy.Actor{ID: userID, TenantID: tenantID}
	rc := Context{TenantID: tenantID}

	set, err := res.Resolve(ctx, actor, userID, rc)
	require.NoError(t, err)
	require.True(t, set.Has("project.read"))
	firstCalls := store.calls

	set, err = res.Resolve(ctx, actor, userID, rc)
	require.NoError(t, err)
	require.True(t, set.Has("project.read"))
	require.Equal(t, firstCalls, store.calls)

	store.put(tenantID, userID, ledger.KindCustom, nil, "audit.view")
	require.NoError(t, cache.Invalidate(ctx, tenantID, userID))

	set, err = res.Resolve(ctx, actor, userID, rc)
	require.NoError(t, err)
	require.True(t, set.Has("audit.view"))
	require.Greater(t, store.calls, firstCalls)
}
