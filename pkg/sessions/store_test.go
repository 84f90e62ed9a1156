package sessions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "")
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func testHandle(c string) string {
	return strings.Repeat(c, 64)
}

// storeContract runs the behaviour every Store must share
func storeContract(t *testing.T, store Store) {
	ctx := context.Background()
	s := Session{
		UserID:    42,
		Role:      auth.RoleModerator,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}

	_, err := store.Get(ctx, testHandle("a"))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Put(ctx, testHandle("a"), s))

	got, err := store.Get(ctx, testHandle("a"))
	require.NoError(t, err)
	assert.Equal(t, s.UserID, got.UserID)
	assert.Equal(t, s.Role, got.Role)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

	_, err = store.Get(ctx, testHandle("b"))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Delete(ctx, testHandle("a")))
	require.NoError(t, store.Delete(ctx, testHandle("a")))

	_, err = store.Get(ctx, testHandle("a"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore(8, time.Hour))
}

func TestRedisStore(t *testing.T) {
	store, _ := newRedisStore(t)
	storeContract(t, store)
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	store := NewMemoryStore(2, time.Hour)
	ctx := context.Background()
	s := Session{UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}

	require.NoError(t, store.Put(ctx, testHandle("a"), s))
	require.NoError(t, store.Put(ctx, testHandle("b"), s))
	_, err := store.Get(ctx, testHandle("a"))
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, testHandle("c"), s))

	assert.Equal(t, 2, store.Len())
	_, err = store.Get(ctx, testHandle("b"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(ctx, testHandle("a"))
	assert.NoError(t, err)
}

func TestMemoryStoreTTL(t *testing.T) {
	store := NewMemoryStore(8, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testHandle("a"), Session{UserID: 1}))
	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, testHandle("a"))
		return err == ErrSessionNotFound
	}, time.Second, 10*time.Millisecond)
}

func TestRedisStoreKeysAreHashed(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	handle := testHandle("c")

	require.NoError(t, store.Put(ctx, handle, Session{UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, DefaultRedisPrefix+":"+auth.HashToken(handle), keys[0])
	assert.NotContains(t, keys[0], handle)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testHandle("d"), Session{UserID: 1, ExpiresAt: time.Now().Add(time.Minute)}))
	ttl := mr.TTL(DefaultRedisPrefix + ":" + auth.HashToken(testHandle("d")))
	assert.True(t, ttl > 0 && ttl <= time.Minute)

	mr.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, testHandle("d"))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = store.Put(ctx, testHandle("e"), Session{UserID: 1, ExpiresAt: time.Now().Add(-time.Second)})
	assert.Error(t, err)
}

func TestRedisStoreCorruptEntry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	key := DefaultRedisPrefix + ":" + auth.HashToken(testHandle("f"))
	require.NoError(t, mr.Set(key, "{not json"))

	_, err := store.Get(ctx, testHandle("f"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, mr.Exists(key))
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), testHandle("g"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerWithRedisStore(t *testing.T) {
	store, _ := newRedisStore(t)
	users := newFakeUsers()
	users.add(5, "erin", auth.RoleMember, "password123")
	m := NewManager(store, users, users)
	ctx := context.Background()

	handle, _, _, err := m.Login(ctx, "erin", "password123")
	require.NoError(t, err)

	user, err := m.ResolveCurrentUser(ctx, handle)
	require.NoError(t, err)
	assert.EqualValues(t, 5, user.ID)

	require.NoError(t, m.Logout(ctx, handle))
	_, err = m.ResolveCurrentUser(ctx, handle)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestManagerStoreFailure(t *testing.T) {
	store, mr := newRedisStore(t)
	users := newFakeUsers()
	users.add(5, "erin", auth.RoleMember, "password123")
	m := NewManager(store, users, users)
	mr.Close()

	_, _, _, err := m.Login(context.Background(), "erin", "password123")
	assert.True(t, auth.IsStorageError(err))

	_, err = m.ResolveCurrentUser(context.Background(), testHandle("a"))
	assert.True(t, auth.IsStorageError(err))
}
