package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCachedDirectory(t *testing.T, f *fixture) (Directory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDirectory(f.userRepo, f.participantRepo, client, time.Minute), mr
}

func TestDirectory_CacheAside(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.seedEvent(t)
	a := f.seedUser(t, "alice", "saas", "ai")
	b := f.seedUser(t, "bob", "fintech")
	f.join(t, e.ID, a, b)

	dir, _ := newCachedDirectory(t, f)

	profiles, err := dir.ActiveProfiles(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	// 第二次读命中缓存：绕过缓存层直接改库不影响结果
	a.Nickname = "alice-renamed"
	require.NoError(t, f.userRepo.Update(ctx, a))
	profiles, err = dir.ActiveProfiles(ctx, e.ID)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, p := range profiles {
		names[p.Nickname] = true
	}
	assert.True(t, names["alice"])
	assert.False(t, names["alice-renamed"])

	// 失效后重新回源
	dir.InvalidateEvent(ctx, e.ID)
	profiles, err = dir.ActiveProfiles(ctx, e.ID)
	require.NoError(t, err)
	names = map[string]bool{}
	for _, p := range profiles {
		names[p.Nickname] = true
	}
	assert.True(t, names["alice-renamed"])
}

func TestDirectory_ProfileInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedUser(t, "alice", "saas", "ai")

	dir, _ := newCachedDirectory(t, f)

	p, err := dir.Profile(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Nickname)

	a.Nickname = "alice-renamed"
	require.NoError(t, f.userRepo.Update(ctx, a))

	p, err = dir.Profile(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Nickname)

	dir.InvalidateUser(ctx, a.ID)
	p, err = dir.Profile(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice-renamed", p.Nickname)
}

func TestDirectory_TTLExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedUser(t, "alice", "saas")

	dir, mr := newCachedDirectory(t, f)

	_, err := dir.Profile(ctx, a.ID)
	require.NoError(t, err)

	a.Nickname = "alice-renamed"
	require.NoError(t, f.userRepo.Update(ctx, a))

	mr.FastForward(2 * time.Minute)

	p, err := dir.Profile(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice-renamed", p.Nickname)
}

func TestDirectory_NilCacheDegrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedUser(t, "alice", "saas")

	dir := NewDirectory(f.userRepo, f.participantRepo, nil, time.Minute)

	p, err := dir.Profile(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Nickname)

	a.Nickname = "alice-renamed"
	require.NoError(t, f.userRepo.Update(ctx, a))

	// 无缓存时每次都回源
	p, err = dir.Profile(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice-renamed", p.Nickname)

	dir.InvalidateUser(ctx, a.ID) // no-op，不 panic
}
