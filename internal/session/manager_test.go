package session_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/session"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupTest(t *testing.T) (*session.Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return session.NewManager(client, time.Hour, zaptest.NewLogger(t)), mr
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()
	manager, mr := setupTest(t)
	ctx := t.Context()

	user := &types.User{ID: 7, Role: enum.RoleNGO}

	created, err := manager.Create(ctx, user)
	require.NoError(t, err)
	assert.NotEmpty(t, created.Token)

	got, err := manager.Get(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, enum.RoleNGO, got.Role)

	ttl := mr.TTL(session.SessionPrefix + created.Token)
	assert.Equal(t, time.Hour, ttl)
}

func TestGetUnknownToken(t *testing.T) {
	t.Parallel()
	manager, _ := setupTest(t)

	_, err := manager.Get(t.Context(), "missing")
	require.ErrorIs(t, err, types.ErrSessionNotFound)

	_, err = manager.Get(t.Context(), "")
	require.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestSessionExpires(t *testing.T) {
	t.Parallel()
	manager, mr := setupTest(t)
	ctx := t.Context()

	created, err := manager.Create(ctx, &types.User{ID: 1, Role: enum.RoleCommunity})
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = manager.Get(ctx, created.Token)
	require.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	manager, _ := setupTest(t)
	ctx := t.Context()

	created, err := manager.Create(ctx, &types.User{ID: 3, Role: enum.RoleCommunity})
	require.NoError(t, err)

	require.NoError(t, manager.Delete(ctx, created.Token))
	require.NoError(t, manager.Delete(ctx, created.Token))

	_, err = manager.Get(ctx, created.Token)
	require.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestRevokeUser(t *testing.T) {
	t.Parallel()
	manager, _ := setupTest(t)
	ctx := t.Context()

	banned := &types.User{ID: 10, Role: enum.RoleCommunity}
	other := &types.User{ID: 11, Role: enum.RoleCommunity}

	first, err := manager.Create(ctx, banned)
	require.NoError(t, err)
	second, err := manager.Create(ctx, banned)
	require.NoError(t, err)
	kept, err := manager.Create(ctx, other)
	require.NoError(t, err)

	count, err := manager.RevokeUser(ctx, banned.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, token := range []string{first.Token, second.Token} {
		_, err = manager.Get(ctx, token)
		require.ErrorIs(t, err, types.ErrSessionNotFound)
	}

	_, err = manager.Get(ctx, kept.Token)
	require.NoError(t, err)

	count, err = manager.RevokeUser(ctx, banned.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
