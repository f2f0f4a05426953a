package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/esp-pix/authserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyFixture struct {
	users  *memUsers
	keys   *memKeys
	events *recordedEvents
	clock  *fakeClock
	mgr    *APIKeyManager

	owner types.AuthUser
	other types.AuthUser
	admin types.AuthUser
}

func newKeyFixture(t *testing.T) *keyFixture {
	t.Helper()

	f := &keyFixture{users: newMemUsers(), events: &recordedEvents{}, clock: newFakeClock()}
	f.keys = newMemKeys(f.users)
	f.mgr = NewAPIKeyManager(f.keys, f.events)
	f.mgr.now = f.clock.Now

	mk := func(email, role string) types.AuthUser {
		u, err := f.users.Create(context.Background(), types.User{Email: email, Role: role, PasswordHash: "x"})
		require.NoError(t, err)
		return u.Identity()
	}
	f.owner = mk("owner@x.com", types.RoleUser)
	f.other = mk("other@x.com", types.RoleUser)
	f.admin = mk("admin@x.com", types.RoleAdmin)
	return f
}

func TestGenerateKey_Format(t *testing.T) {
	t.Parallel()

	a, err := GenerateKey()
	require.NoError(t, err)
	b, err := GenerateKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "esp_"))
	assert.Len(t, a, 4+48)
	assert.Regexp(t, `^esp_[0-9a-f]{48}$`, a)
	assert.NotEqual(t, a, b)
}

func TestPreview(t *testing.T) {
	t.Parallel()

	secret := "esp_0123456789abcdef0123456789abcdef0123456789abcdef"
	preview := Preview(secret)

	assert.Equal(t, "esp_0123...cdef", preview)
	assert.Equal(t, "****", Preview("abcd"))
}

func TestAPIKeyManager_CreateValidateRoundTrip(t *testing.T) {
	t.Parallel()

	f := newKeyFixture(t)
	ctx := context.Background()

	created, err := f.mgr.CreateKey(ctx, f.owner, "Device 1", "")
	require.NoError(t, err)
	assert.Nil(t, created.Key.ExpiresAt)
	assert.True(t, created.Key.IsActive)
	assert.Equal(t, "owner@x.com", created.Key.User.Email)

	principal, ok, err := f.mgr.ValidateKey(ctx, created.Secret)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.KeyPrincipal{KeyID: created.Key.ID, Name: "Device 1", UserID: f.owner.ID}, principal)

	stored, err := f.keys.GetByID(ctx, created.Key.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastUsedAt)
	assert.Equal(t, f.clock.Now(), *stored.LastUsedAt)

	views, err := f.mgr.ListKeys(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, views, 1)
	preview := views[0].KeyPreview
	assert.Equal(t, created.Secret[:8]+"..."+created.Secret[len(created.Secret)-4:], preview)
	assert.NotContains(t, preview, created.Secret[8:len(created.Secret)-4])
}

func TestAPIKeyManager_NoExpiryValidUntilDeactivated(t *testing.T) {
	t.Parallel()

	f := newKeyFixture(t)
	ctx := context.Background()

	created, err := f.mgr.CreateKey(ctx, f.owner, "Device 1", ExpiresNever)
	require.NoError(t, err)

	f.clock.Advance(10 * 365 * 24 * time.Hour)
	_, ok, err := f.mgr.ValidateKey(ctx, created.Secret)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.mgr.ToggleKey(ctx, created.Key.ID, f.owner))
	_, ok, err = f.mgr.ValidateKey(ctx, created.Secret)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, f.events.kinds(), types.EventKeyRejected)
}

func TestAPIKeyManager_ExpiresInDays(t *testing.T) {
	t.Parallel()

	f := newKeyFixture(t)
	ctx := context.Background()

	created, err := f.mgr.CreateKey(ctx, f.owner, "Device 2", "30")
	require.NoError(t, err)
	require.NotNil(t, created.Key.ExpiresAt)
	assert.Equal(t, f.clock.Now().Add(30*24*time.Hour), *created.Key.ExpiresAt)

	f.clock.Advance(29 * 24 * time.Hour)
	_, ok, err := f.mgr.ValidateKey(ctx, created.Secret)
	require.NoError(t, err)
	assert.True(t, ok)

	f.clock.Advance(2 * 24 * time.Hour)
	_, ok, err = f.mgr.ValidateKey(ctx, created.Secret)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAPIKeyManager_InactiveRejectedRegardlessOfExpiry(t *testing.T) {
	t.Parallel()

	f := newKeyFixture(t)
	ctx := context.Background()

	for _, expiresIn := range []string{"", "365"} {
		created, err := f.mgr.CreateKey(ctx, f.owner, "dev", expiresIn)
		require.NoError(t, err)
		require.NoError(t, f.keys.SetActive(ctx, created.Key.ID, false))

		_, ok, err := f.mgr.ValidateKey(ctx, created.Secret)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestAPIKeyManager_ValidateUnknown(t *testing.T) {
	t.Parallel()

	f := newKeyFixture(t)

	_, ok, err := f.mgr.ValidateKey(context.Background(), "esp_nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = f.mgr.ValidateKey(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAPIKeyManager_CreateValidation(t *testing.T) {
	t.Parallel()

	f := newKeyFixture(t)

	tests := []struct {
		name      string
		keyName   string
		expiresIn string
	}{
		{name: "empty name", keyName: "", expiresIn: ""},
		{name: "blank name", keyName: "   ", expiresIn: ""},
		{name: "zero days", keyName: "dev", expiresIn: "0"},
		{name: "negative days", keyName: "dev", expiresIn: "-3"},
		{name: "garbage", keyName: "dev", expiresIn: "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.mgr.CreateKey(context.Background(), f.owner, tt.keyName, tt.expiresIn)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAPIKeyManager_ListScopedByRole(t *testing.T) {
	t.Parallel()

	f := newKeyFixture(t)
	ctx := context.Background()

	_, err := f.mgr.CreateKey(ctx, f.owner, "first", "")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.mgr.CreateKey(ctx, f.other, "second", "")
	require.NoError(t, err)

	own, err := f.mgr.ListKeys(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "first", own[0].Name)

	all, err := f.mgr.ListKeys(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "second", all[0].Name)
	assert.Equal(t, "other@x.com", all[0].User.Email)
}

func TestAPIKeyManager_ToggleDeleteOwnership(t *testing.T) {
	t.Parallel()

	f := newKeyFixture(t)
	ctx := context.Background()

	created, err := f.mgr.CreateKey(ctx, f.owner, "dev", "")
	require.NoError(t, err)
	id := created.Key.ID

	assert.ErrorIs(t, f.mgr.ToggleKey(ctx, id, f.other), ErrForbidden)
	assert.ErrorIs(t, f.mgr.DeleteKey(ctx, id, f.other), ErrForbidden)

	require.NoError(t, f.mgr.ToggleKey(ctx, id, f.owner))
	key, err := f.keys.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, key.IsActive)

	require.NoError(t, f.mgr.ToggleKey(ctx, id, f.admin))
	key, err = f.keys.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, key.IsActive)

	require.NoError(t, f.mgr.DeleteKey(ctx, id, f.admin))
	assert.ErrorIs(t, f.mgr.ToggleKey(ctx, id, f.owner), ErrNotFound)
	assert.ErrorIs(t, f.mgr.DeleteKey(ctx, id, f.owner), ErrNotFound)
}
