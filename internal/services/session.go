package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/esp-pix/authserver/config"
	"github.com/esp-pix/authserver/internal/auth"
	"github.com/esp-pix/authserver/internal/logging"
	"github.com/esp-pix/authserver/internal/store"
	"github.com/esp-pix/authserver/types"
)

const (
	DefaultSessionTTL  = 7 * 24 * time.Hour
	bootstrapAdminName = "Administrator"
)

// SessionRepository defines persistence operations for browser sessions.
type SessionRepository interface {
	Create(ctx context.Context, session types.Session) (types.Session, error)
	GetByToken(ctx context.Context, token string) (types.Session, types.User, error)
	Delete(ctx context.Context, id string) error
	DeleteByToken(ctx context.Context, token string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// EventPublisher receives auth events. Implementations must not block on failure.
type EventPublisher interface {
	Publish(ctx context.Context, event types.AuthEvent)
}

// LoginResult carries what the HTTP layer needs to set the session cookie.
type LoginResult struct {
	User      types.AuthUser
	Token     string
	ExpiresAt time.Time
}

// SessionManager issues, resolves and revokes browser sessions.
type SessionManager struct {
	users    UserRepository
	sessions SessionRepository
	hasher   *auth.Hasher
	events   EventPublisher

	ttl           time.Duration
	adminEmail    string
	adminPassword string

	decoyOnce sync.Once
	decoy     string

	now func() time.Time
}

func NewSessionManager(users UserRepository, sessions SessionRepository, hasher *auth.Hasher, events EventPublisher, cfg config.AuthConfig) *SessionManager {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		users:         users,
		sessions:      sessions,
		hasher:        hasher,
		events:        events,
		ttl:           ttl,
		adminEmail:    strings.TrimSpace(cfg.AdminEmail),
		adminPassword: cfg.AdminPassword,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Login verifies email and password and opens a new session.
// An unknown email and a wrong password produce the same public message.
func (m *SessionManager) Login(ctx context.Context, email, password string) (LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "session")
	if err := m.EnsureBootstrapAdmin(ctx); err != nil {
		l.Error("bootstrap admin", "error", err)
	}

	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Spend the same bcrypt work as a real mismatch.
			_ = m.hasher.Verify(m.decoyHash(), password)
			l.Warn("login rejected", "reason", "unknown email")
			m.events.Publish(ctx, types.AuthEvent{Type: types.EventLoginFailed, Email: email, Detail: "unknown email"})
			return LoginResult{}, fmt.Errorf("%w: %w", ErrNotFound, ErrInvalidCredentials)
		}
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	if err := m.hasher.Verify(user.PasswordHash, password); err != nil {
		l.Warn("login rejected", "reason", "password mismatch", "user_id", user.ID)
		m.events.Publish(ctx, types.AuthEvent{Type: types.EventLoginFailed, SubjectID: user.ID, Email: email, Detail: "password mismatch"})
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := auth.RandomHex(auth.SessionTokenBytes)
	if err != nil {
		return LoginResult{}, err
	}
	now := m.now()
	session, err := m.sessions.Create(ctx, types.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}

	l.Info("login", "user_id", user.ID)
	m.events.Publish(ctx, types.AuthEvent{Type: types.EventLoginSucceeded, ActorID: user.ID, Email: user.Email, At: now})

	return LoginResult{User: user.Identity(), Token: session.Token, ExpiresAt: session.ExpiresAt}, nil
}

// Logout removes every session carrying token. An empty token is a no-op.
func (m *SessionManager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	removed, err := m.sessions.DeleteByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if removed > 0 {
		m.events.Publish(ctx, types.AuthEvent{Type: types.EventLogout, Detail: fmt.Sprintf("%d session(s)", removed)})
	}
	return nil
}

// ResolveSession returns the identity bound to token. An expired session
// is deleted on the way out and reported as absent.
func (m *SessionManager) ResolveSession(ctx context.Context, token string) (types.AuthUser, bool, error) {
	if token == "" {
		return types.AuthUser{}, false, nil
	}

	session, user, err := m.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.AuthUser{}, false, nil
		}
		return types.AuthUser{}, false, fmt.Errorf("load session: %w", err)
	}

	if session.Expired(m.now()) {
		if err := m.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return types.AuthUser{}, false, fmt.Errorf("evict session: %w", err)
		}
		return types.AuthUser{}, false, nil
	}

	return user.Identity(), true, nil
}

// IsAdmin reports whether token resolves to an admin session.
func (m *SessionManager) IsAdmin(ctx context.Context, token string) (bool, error) {
	user, ok, err := m.ResolveSession(ctx, token)
	if err != nil || !ok {
		return false, err
	}
	return user.IsAdmin(), nil
}

// EnsureBootstrapAdmin creates the configured admin account if it does not exist yet.
func (m *SessionManager) EnsureBootstrapAdmin(ctx context.Context) error {
	l := logging.FromContext(ctx).With("svc", "session")
	if m.adminEmail == "" || m.adminPassword == "" {
		l.Warn("ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin bootstrap")
		return nil
	}

	if _, err := m.users.GetByEmail(ctx, m.adminEmail); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check admin: %w", err)
	}

	hash, err := hashPassword(m.hasher, m.adminPassword)
	if err != nil {
		return fmt.Errorf("ADMIN_PASSWORD: %w", err)
	}
	name := bootstrapAdminName
	admin, err := m.users.Create(ctx, types.User{
		Email:        m.adminEmail,
		Name:         &name,
		Role:         types.RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    m.now(),
	})
	if err != nil {
		// A concurrent login created it first.
		if errors.Is(err, store.ErrConflict) {
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}

	l.Info("bootstrap admin created", "user_id", admin.ID, "email", admin.Email)
	m.events.Publish(ctx, types.AuthEvent{Type: types.EventBootstrapAdmin, SubjectID: admin.ID, Email: admin.Email})
	return nil
}

// decoyHash is a hash at the configured cost that no password matches.
func (m *SessionManager) decoyHash() string {
	m.decoyOnce.Do(func() {
		secret, err := auth.RandomHex(auth.SessionTokenBytes)
		if err == nil {
			m.decoy, err = m.hasher.Hash(secret)
		}
		if err != nil {
			m.decoy = ""
		}
	})
	return m.decoy
}

// PruneExpired deletes every session that is past its expiry.
func (m *SessionManager) PruneExpired(ctx context.Context) (int64, error) {
	removed, err := m.sessions.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	m.events.Publish(ctx, types.AuthEvent{Type: types.EventSessionsPruned, Detail: fmt.Sprintf("%d session(s)", removed)})
	return removed, nil
}
