package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/esp-pix/authserver/config"
	"github.com/esp-pix/authserver/internal/db"
	"github.com/esp-pix/authserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()

	cfg := config.DatabaseConfig{Driver: db.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "store.db")}
	require.NoError(t, db.MigrateUp(cfg))
	conn, err := db.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestRepositories_SQLite(t *testing.T) {
	exerciseRepositories(t, openSQLite(t))
}

// exerciseRepositories runs the same checks against any migrated database.
func exerciseRepositories(t *testing.T, conn *sql.DB) {
	ctx := context.Background()
	users := NewUserRepository(conn)
	sessions := NewSessionRepository(conn)
	keys := NewAPIKeyRepository(conn)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("users", func(t *testing.T) {
		name := "Alice"
		alice, err := users.Create(ctx, types.User{Email: "alice@x.com", Name: &name, Role: types.RoleAdmin, PasswordHash: "h", CreatedAt: base})
		require.NoError(t, err)
		assert.NotEmpty(t, alice.ID)

		_, err = users.Create(ctx, types.User{Email: "alice@x.com", Role: types.RoleUser, PasswordHash: "h"})
		assert.ErrorIs(t, err, ErrConflict)

		_, err = users.GetByEmail(ctx, "ALICE@x.com")
		assert.ErrorIs(t, err, ErrNotFound)

		got, err := users.GetByEmail(ctx, "alice@x.com")
		require.NoError(t, err)
		require.NotNil(t, got.Name)
		assert.Equal(t, "Alice", *got.Name)
		assert.True(t, base.Equal(got.CreatedAt))

		bob, err := users.Create(ctx, types.User{Email: "bob@x.com", Role: types.RoleUser, PasswordHash: "h", CreatedAt: base.Add(time.Hour)})
		require.NoError(t, err)
		list, err := users.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, bob.ID, list[0].ID)
		assert.Nil(t, list[0].Name)
	})

	t.Run("sessions", func(t *testing.T) {
		owner, err := users.GetByEmail(ctx, "bob@x.com")
		require.NoError(t, err)

		live, err := sessions.Create(ctx, types.Session{Token: "tok-live", UserID: owner.ID, ExpiresAt: base.Add(24 * time.Hour), CreatedAt: base})
		require.NoError(t, err)
		_, err = sessions.Create(ctx, types.Session{Token: "tok-old", UserID: owner.ID, ExpiresAt: base.Add(-time.Minute), CreatedAt: base.Add(-time.Hour)})
		require.NoError(t, err)
		_, err = sessions.Create(ctx, types.Session{Token: "tok-live", UserID: owner.ID, ExpiresAt: base, CreatedAt: base})
		assert.ErrorIs(t, err, ErrConflict)

		s, u, err := sessions.GetByToken(ctx, "tok-live")
		require.NoError(t, err)
		assert.Equal(t, live.ID, s.ID)
		assert.Equal(t, "bob@x.com", u.Email)
		assert.True(t, live.ExpiresAt.Equal(s.ExpiresAt))

		removed, err := sessions.DeleteExpired(ctx, base)
		require.NoError(t, err)
		assert.EqualValues(t, 1, removed)

		removed, err = sessions.DeleteByToken(ctx, "tok-live")
		require.NoError(t, err)
		assert.EqualValues(t, 1, removed)
		removed, err = sessions.DeleteByToken(ctx, "tok-live")
		require.NoError(t, err)
		assert.Zero(t, removed)

		_, _, err = sessions.GetByToken(ctx, "tok-live")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, sessions.Delete(ctx, live.ID), ErrNotFound)
	})

	t.Run("api keys", func(t *testing.T) {
		alice, err := users.GetByEmail(ctx, "alice@x.com")
		require.NoError(t, err)
		bob, err := users.GetByEmail(ctx, "bob@x.com")
		require.NoError(t, err)

		expires := base.Add(30 * 24 * time.Hour)
		first, err := keys.Create(ctx, types.APIKey{Name: "one", Key: "esp_1", UserID: alice.ID, IsActive: true, CreatedAt: base})
		require.NoError(t, err)
		second, err := keys.Create(ctx, types.APIKey{Name: "two", Key: "esp_2", UserID: bob.ID, IsActive: true, ExpiresAt: &expires, CreatedAt: base.Add(time.Minute)})
		require.NoError(t, err)
		_, err = keys.Create(ctx, types.APIKey{Name: "dup", Key: "esp_1", UserID: bob.ID, IsActive: true})
		assert.ErrorIs(t, err, ErrConflict)

		got, err := keys.GetByKey(ctx, "esp_2")
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, expires.Equal(*got.ExpiresAt))
		assert.Nil(t, got.LastUsedAt)
		assert.True(t, got.IsActive)

		all, err := keys.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, second.ID, all[0].ID)
		assert.Equal(t, "bob@x.com", all[0].Owner.Email)

		own, err := keys.List(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, own, 1)
		require.NotNil(t, own[0].Owner.Name)
		assert.Equal(t, "Alice", *own[0].Owner.Name)

		require.NoError(t, keys.SetActive(ctx, first.ID, false))
		used := base.Add(2 * time.Hour)
		require.NoError(t, keys.TouchLastUsed(ctx, first.ID, used))
		got, err = keys.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
		require.NotNil(t, got.LastUsedAt)
		assert.True(t, used.Equal(*got.LastUsedAt))

		require.NoError(t, keys.Delete(ctx, first.ID))
		assert.ErrorIs(t, keys.Delete(ctx, first.ID), ErrNotFound)
		assert.ErrorIs(t, keys.SetActive(ctx, first.ID, true), ErrNotFound)
		_, err = keys.GetByID(ctx, first.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cascade on user delete", func(t *testing.T) {
		bob, err := users.GetByEmail(ctx, "bob@x.com")
		require.NoError(t, err)
		_, err = sessions.Create(ctx, types.Session{Token: "tok-bob", UserID: bob.ID, ExpiresAt: base.Add(time.Hour)})
		require.NoError(t, err)

		require.NoError(t, users.Delete(ctx, bob.ID))
		assert.ErrorIs(t, users.Delete(ctx, bob.ID), ErrNotFound)

		_, _, err = sessions.GetByToken(ctx, "tok-bob")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = keys.GetByKey(ctx, "esp_2")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
